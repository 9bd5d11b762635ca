package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"subtitle-fusion/app/logger"
	"testing"
)

const sampleWhisperJSON = `{
	"text": " 你好 世界",
	"language": "zh",
	"segments": [
		{"id": 0, "seek": 0, "start": 0.0, "end": 2.5, "text": " 你好"},
		{"id": 1, "seek": 0, "start": 2.5, "end": 5.0, "text": " 世界"},
		{"id": 2, "seek": 0, "start": 5.0, "end": 6.0, "text": "   "}
	]
}`

func newTestTranscriber(t *testing.T, enabled bool, run func(ctx context.Context, name string, args ...string) ([]byte, error)) *TranscriberService {
	t.Helper()
	s := NewTranscriberService(logger.NewNop(), &TranscriberConfig{
		Enabled: enabled,
		Model:   "base",
	})
	if run != nil {
		s.runCommand = run
	}
	return s
}

func TestTranscribe(t *testing.T) {
	dir := t.TempDir()
	audioPath := filepath.Join(dir, "vid123.mp3")
	if err := os.WriteFile(audioPath, []byte("audio"), 0644); err != nil {
		t.Fatal(err)
	}

	s := newTestTranscriber(t, true, func(ctx context.Context, name string, args ...string) ([]byte, error) {
		if name != "whisper" {
			t.Errorf("命令 = %s, 期望 whisper", name)
		}
		if args[0] != audioPath {
			t.Errorf("首个参数 = %s, 期望音频路径", args[0])
		}
		if argValue(args, "--model") != "base" {
			t.Errorf("--model = %s", argValue(args, "--model"))
		}
		if argValue(args, "--output_format") != "json" {
			t.Errorf("--output_format = %s", argValue(args, "--output_format"))
		}
		if argValue(args, "--language") != "zh" {
			t.Errorf("--language = %s", argValue(args, "--language"))
		}
		// 模拟 whisper 写出结果文件
		return nil, os.WriteFile(filepath.Join(dir, "vid123.json"), []byte(sampleWhisperJSON), 0644)
	})

	segments, lang, err := s.Transcribe(context.Background(), audioPath, "zh")
	if err != nil {
		t.Fatalf("Transcribe 失败: %v", err)
	}
	if lang != "zh" {
		t.Errorf("语言 = %s, 期望 zh", lang)
	}
	if len(segments) != 2 {
		t.Fatalf("分段数量 = %d, 期望 2（空白分段应被跳过）", len(segments))
	}
	if segments[0].Text != "你好" || segments[0].Start != 0 || segments[0].End != 2.5 {
		t.Errorf("首个分段 = %+v", segments[0])
	}
	if segments[1].Text != "世界" {
		t.Errorf("第二个分段 = %+v", segments[1])
	}
}

func TestTranscribeAutoLanguage(t *testing.T) {
	dir := t.TempDir()
	audioPath := filepath.Join(dir, "clip.mp3")
	if err := os.WriteFile(audioPath, []byte("audio"), 0644); err != nil {
		t.Fatal(err)
	}

	s := newTestTranscriber(t, true, func(ctx context.Context, name string, args ...string) ([]byte, error) {
		if argValue(args, "--language") != "" {
			t.Errorf("自动检测不应传 --language: %v", args)
		}
		return nil, os.WriteFile(filepath.Join(dir, "clip.json"), []byte(sampleWhisperJSON), 0644)
	})

	_, lang, err := s.Transcribe(context.Background(), audioPath, "")
	if err != nil {
		t.Fatal(err)
	}
	if lang != "zh" {
		t.Errorf("检测语言 = %s, 期望 zh（来自识别结果）", lang)
	}
}

func TestTranscribeDisabled(t *testing.T) {
	s := newTestTranscriber(t, false, nil)
	_, _, err := s.Transcribe(context.Background(), "/tmp/a.mp3", "")
	if !errors.Is(err, ErrTranscriberDisabled) {
		t.Errorf("错误 = %v, 期望 ErrTranscriberDisabled", err)
	}
}

func TestTranscribeMissingAudio(t *testing.T) {
	s := newTestTranscriber(t, true, func(ctx context.Context, name string, args ...string) ([]byte, error) {
		t.Error("音频缺失时不应执行命令")
		return nil, nil
	})
	if _, _, err := s.Transcribe(context.Background(), filepath.Join(t.TempDir(), "missing.mp3"), ""); err == nil {
		t.Fatal("期望失败")
	}
}

func TestTranscribeCommandFailure(t *testing.T) {
	dir := t.TempDir()
	audioPath := filepath.Join(dir, "bad.mp3")
	if err := os.WriteFile(audioPath, []byte("audio"), 0644); err != nil {
		t.Fatal(err)
	}

	s := newTestTranscriber(t, true, func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte("CUDA out of memory"), errors.New("exit status 1")
	})
	_, _, err := s.Transcribe(context.Background(), audioPath, "")
	if err == nil {
		t.Fatal("期望失败")
	}
	if !strings.Contains(err.Error(), "CUDA out of memory") {
		t.Errorf("错误信息应包含命令输出: %v", err)
	}
}
