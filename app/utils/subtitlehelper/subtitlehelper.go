package subtitlehelper

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Segment 一条字幕片段
type Segment struct {
	Start float64 `json:"start"` // 秒
	End   float64 `json:"end"`   // 秒
	Text  string  `json:"text"`
}

// FormatTimestamp 把秒数格式化为 SRT 时间轴格式 00:00:00,000
func FormatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	millis := int64(seconds*1000 + 0.5)
	h := millis / 3600000
	m := millis % 3600000 / 60000
	s := millis % 60000 / 1000
	ms := millis % 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

// WriteSRT 把字幕片段写成 SRT 文件
func WriteSRT(segments []Segment, path string) error {
	var sb strings.Builder
	index := 0
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		index++
		sb.WriteString(fmt.Sprintf("%d\n", index))
		sb.WriteString(fmt.Sprintf("%s --> %s\n", FormatTimestamp(seg.Start), FormatTimestamp(seg.End)))
		sb.WriteString(text)
		sb.WriteString("\n\n")
	}
	return os.WriteFile(path, []byte(sb.String()), 0644)
}

// FormatTimestampVTT 把秒数格式化为 WebVTT 时间轴格式 00:00:00.000
func FormatTimestampVTT(seconds float64) string {
	return strings.Replace(FormatTimestamp(seconds), ",", ".", 1)
}

// WriteVTT 把字幕片段写成 WebVTT 文件
func WriteVTT(segments []Segment, path string) error {
	var sb strings.Builder
	sb.WriteString("WEBVTT\n\n")
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		sb.WriteString(fmt.Sprintf("%s --> %s\n", FormatTimestampVTT(seg.Start), FormatTimestampVTT(seg.End)))
		sb.WriteString(text)
		sb.WriteString("\n\n")
	}
	return os.WriteFile(path, []byte(sb.String()), 0644)
}

// WriteJSON 把字幕片段写成 JSON 文件
func WriteJSON(segments []Segment, path string) error {
	out := segments
	if out == nil {
		out = []Segment{}
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化字幕失败: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}

// WriteTXT 把字幕片段写成纯文本文件，每条片段一行
func WriteTXT(segments []Segment, path string) error {
	var sb strings.Builder
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	return os.WriteFile(path, []byte(sb.String()), 0644)
}

// SRTToTXT 把 SRT 字幕转为纯文本：跳过序号行和时间轴行，只保留台词
func SRTToTXT(srtPath, txtPath string) error {
	f, err := os.Open(srtPath)
	if err != nil {
		return fmt.Errorf("打开字幕文件失败: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || isDigits(line) || strings.Contains(line, "-->") {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("读取字幕文件失败: %w", err)
	}

	return os.WriteFile(txtPath, []byte(strings.Join(lines, "\n")+"\n"), 0644)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// NormalizeToUTF8 把字幕文件统一转为 UTF-8 编码，返回是否发生了转换。
// 支持带 BOM 的 UTF-8、UTF-16 以及 GBK。
func NormalizeToUTF8(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}

	text, changed, err := decodeSubtitleBytes(data)
	if err != nil {
		return false, err
	}
	if !changed {
		return false, nil
	}
	return true, os.WriteFile(path, []byte(text), 0644)
}

func decodeSubtitleBytes(data []byte) (string, bool, error) {
	// UTF-8，带 BOM 时去掉 BOM
	if utf8.Valid(data) {
		if bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}) {
			return string(data[3:]), true, nil
		}
		return string(data), false, nil
	}

	// UTF-16 带 BOM
	if len(data) >= 2 && (data[0] == 0xFF && data[1] == 0xFE || data[0] == 0xFE && data[1] == 0xFF) {
		win16le := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
		utf16bom := unicode.BOMOverride(win16le.NewDecoder())
		decoded, _, err := transform.Bytes(utf16bom, data)
		if err != nil {
			return "", false, fmt.Errorf("解码 UTF-16 字幕失败: %w", err)
		}
		return string(decoded), true, nil
	}

	// 其余按 GBK 处理
	decoded, _, err := transform.Bytes(simplifiedchinese.GBK.NewDecoder(), data)
	if err != nil {
		return "", false, fmt.Errorf("解码 GBK 字幕失败: %w", err)
	}
	return string(decoded), true, nil
}
