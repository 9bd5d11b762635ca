package pathhelper

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// 文件名中不允许出现的字符
const illegalFilenameChars = `<>:"/\|?*`

// 文件名最大长度（按字符计）
const maxFilenameLength = 100

// SanitizeFilename 清理标题中的非法字符，用于生成保存文件名。
// 过长的标题按字符截断，保证中文标题不会被截在多字节中间。
func SanitizeFilename(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		if r < 0x20 || strings.ContainsRune(illegalFilenameChars, r) {
			return -1
		}
		return r
	}, name)
	cleaned = strings.TrimSpace(cleaned)

	runes := []rune(cleaned)
	if len(runes) > maxFilenameLength {
		cleaned = string(runes[:maxFilenameLength])
		cleaned = strings.TrimSpace(cleaned)
	}
	if cleaned == "" {
		return "unnamed"
	}
	return cleaned
}

// 支持提取音频或转写的媒体文件扩展名
var mediaExtensions = map[string]bool{
	".mp4": true, ".mkv": true, ".avi": true, ".mov": true, ".webm": true,
	".flv": true, ".wmv": true, ".ts": true, ".m4v": true,
	".mp3": true, ".m4a": true, ".wav": true, ".flac": true, ".aac": true,
	".ogg": true, ".opus": true, ".wma": true,
}

// IsMediaFile 判断路径是否为受支持的媒体文件
func IsMediaFile(path string) bool {
	return mediaExtensions[strings.ToLower(filepath.Ext(path))]
}

// SafeJoin 把不可信的文件名拼接到根目录下，拒绝目录穿越
func SafeJoin(root, name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("文件名为空")
	}

	// 以 / 为根做一次 Clean，吃掉 .. 和多余分隔符
	cleaned := filepath.Clean("/" + filepath.ToSlash(name))
	full := filepath.Join(root, cleaned)

	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	fullAbs, err := filepath.Abs(full)
	if err != nil {
		return "", err
	}
	if fullAbs != rootAbs && !strings.HasPrefix(fullAbs, rootAbs+string(os.PathSeparator)) {
		return "", fmt.Errorf("非法的文件路径: %s", name)
	}
	return fullAbs, nil
}

// EnsureDir 确保目录存在
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0755)
}
