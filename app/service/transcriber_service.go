package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"subtitle-fusion/app/logger"
	"subtitle-fusion/app/utils/subtitlehelper"
)

// ErrTranscriberDisabled 本地语音识别未启用
var ErrTranscriberDisabled = errors.New("本地语音识别未启用")

// TranscriberConfig 语音识别配置
type TranscriberConfig struct {
	Enabled  bool
	Binary   string // whisper 可执行文件路径
	Model    string // 模型名称：tiny/base/small/medium/large
	Language string // 默认识别语言，空则自动检测
}

// TranscriberService 基于 whisper 命令行的语音识别服务
type TranscriberService struct {
	logger *logger.Logger
	config *TranscriberConfig

	// runCommand 可注入，测试时替换为假命令执行器
	runCommand func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewTranscriberService 创建语音识别服务
func NewTranscriberService(log *logger.Logger, cfg *TranscriberConfig) *TranscriberService {
	if cfg.Binary == "" {
		cfg.Binary = "whisper"
	}
	if cfg.Model == "" {
		cfg.Model = "base"
	}
	return &TranscriberService{
		logger: log,
		config: cfg,
		runCommand: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).CombinedOutput()
		},
	}
}

// Enabled 是否可用
func (s *TranscriberService) Enabled() bool {
	return s.config.Enabled
}

// whisperOutput whisper --output_format json 的输出结构
type whisperOutput struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

// Transcribe 识别音频文件，返回分段结果和检测到的语言。
// whisper 会在音频所在目录写出 <文件名>.json。
func (s *TranscriberService) Transcribe(ctx context.Context, audioPath, language string) ([]subtitlehelper.Segment, string, error) {
	if !s.config.Enabled {
		return nil, "", ErrTranscriberDisabled
	}
	if _, err := os.Stat(audioPath); err != nil {
		return nil, "", fmt.Errorf("音频文件不存在: %s", audioPath)
	}

	outputDir := filepath.Dir(audioPath)
	args := []string{
		audioPath,
		"--model", s.config.Model,
		"--output_dir", outputDir,
		"--output_format", "json",
		"--verbose", "False",
	}
	if language == "" {
		language = s.config.Language
	}
	if language != "" && language != "auto" {
		args = append(args, "--language", language)
	}

	s.logger.Infof("开始语音识别: %s (模型: %s)", filepath.Base(audioPath), s.config.Model)
	if output, err := s.runCommand(ctx, s.config.Binary, args...); err != nil {
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
		return nil, "", fmt.Errorf("语音识别失败: %w: %s", err, strings.TrimSpace(string(output)))
	}

	stem := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	jsonPath := filepath.Join(outputDir, stem+".json")
	segments, detected, err := loadWhisperSegments(jsonPath)
	if err != nil {
		return nil, "", err
	}

	s.logger.Infof("语音识别完成: %d 个分段, 语言: %s", len(segments), detected)
	return segments, detected, nil
}

// loadWhisperSegments 解析 whisper 输出的 JSON 文件
func loadWhisperSegments(jsonPath string) ([]subtitlehelper.Segment, string, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, "", fmt.Errorf("读取识别结果失败: %w", err)
	}

	var payload whisperOutput
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, "", fmt.Errorf("解析识别结果失败: %w", err)
	}

	segments := make([]subtitlehelper.Segment, 0, len(payload.Segments))
	for _, seg := range payload.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		segments = append(segments, subtitlehelper.Segment{
			Start: seg.Start,
			End:   seg.End,
			Text:  text,
		})
	}
	return segments, payload.Language, nil
}
