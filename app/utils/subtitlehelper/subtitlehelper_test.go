package subtitlehelper

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

func TestFormatTimestamp(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "00:00:00,000"},
		{2.5, "00:00:02,500"},
		{61.042, "00:01:01,042"},
		{3661.999, "01:01:01,999"},
		{-3, "00:00:00,000"},
	}

	for _, tt := range tests {
		if got := FormatTimestamp(tt.seconds); got != tt.want {
			t.Errorf("FormatTimestamp(%v) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestWriteSRT(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.srt")
	segments := []Segment{
		{Start: 0, End: 2.5, Text: "第一句"},
		{Start: 2.5, End: 5, Text: "  "}, // 空白片段被跳过
		{Start: 5, End: 7.2, Text: "second line"},
	}

	if err := WriteSRT(segments, path); err != nil {
		t.Fatalf("WriteSRT: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	content := string(data)

	if !strings.Contains(content, "1\n00:00:00,000 --> 00:00:02,500\n第一句\n") {
		t.Errorf("first cue malformed:\n%s", content)
	}
	if !strings.Contains(content, "00:00:05,000 --> 00:00:07,200\nsecond line\n") {
		t.Errorf("third cue malformed:\n%s", content)
	}
	if strings.Contains(content, "2\n00:00:02,500") {
		t.Error("blank segment was written")
	}
}

func TestSRTToTXT(t *testing.T) {
	dir := t.TempDir()
	srtPath := filepath.Join(dir, "in.srt")
	txtPath := filepath.Join(dir, "out.txt")

	srt := "1\n00:00:00,000 --> 00:00:02,000\n你好世界\n\n2\n00:00:02,000 --> 00:00:04,000\nhello world\n继续第二行\n\n"
	if err := os.WriteFile(srtPath, []byte(srt), 0644); err != nil {
		t.Fatalf("write srt: %v", err)
	}

	if err := SRTToTXT(srtPath, txtPath); err != nil {
		t.Fatalf("SRTToTXT: %v", err)
	}

	data, err := os.ReadFile(txtPath)
	if err != nil {
		t.Fatalf("read txt: %v", err)
	}
	got := string(data)

	if got != "你好世界\nhello world\n继续第二行\n" {
		t.Errorf("txt content = %q", got)
	}
	if strings.Contains(got, "-->") || strings.Contains(got, "00:00") {
		t.Error("timeline lines leaked into txt")
	}
}

func TestNormalizeToUTF8FromGBK(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gbk.srt")

	encoded, _, err := transform.Bytes(simplifiedchinese.GBK.NewEncoder(), []byte("中文字幕测试"))
	if err != nil {
		t.Fatalf("encode gbk: %v", err)
	}
	if err := os.WriteFile(path, encoded, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	changed, err := NormalizeToUTF8(path)
	if err != nil {
		t.Fatalf("NormalizeToUTF8: %v", err)
	}
	if !changed {
		t.Fatal("GBK file reported as unchanged")
	}

	data, _ := os.ReadFile(path)
	if string(data) != "中文字幕测试" {
		t.Errorf("normalized content = %q", string(data))
	}
}

func TestNormalizeToUTF8FromUTF16(t *testing.T) {
	path := filepath.Join(t.TempDir(), "utf16.srt")

	encoder := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder()
	encoded, _, err := transform.Bytes(encoder, []byte("字幕 subtitle"))
	if err != nil {
		t.Fatalf("encode utf16: %v", err)
	}
	if err := os.WriteFile(path, encoded, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	changed, err := NormalizeToUTF8(path)
	if err != nil {
		t.Fatalf("NormalizeToUTF8: %v", err)
	}
	if !changed {
		t.Fatal("UTF-16 file reported as unchanged")
	}

	data, _ := os.ReadFile(path)
	if string(data) != "字幕 subtitle" {
		t.Errorf("normalized content = %q", string(data))
	}
}

func TestNormalizeToUTF8AlreadyUTF8(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.srt")
	if err := os.WriteFile(path, []byte("already utf-8 中文"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	changed, err := NormalizeToUTF8(path)
	if err != nil {
		t.Fatalf("NormalizeToUTF8: %v", err)
	}
	if changed {
		t.Error("plain UTF-8 file reported as converted")
	}
}

func TestWriteVTT(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.vtt")
	segments := []Segment{
		{Start: 0, End: 2.5, Text: "第一句"},
		{Start: 61.042, End: 63, Text: "over a minute"},
	}

	if err := WriteVTT(segments, path); err != nil {
		t.Fatalf("WriteVTT: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)

	if !strings.HasPrefix(content, "WEBVTT\n\n") {
		t.Errorf("missing WEBVTT header:\n%s", content)
	}
	if !strings.Contains(content, "00:00:00.000 --> 00:00:02.500\n第一句\n") {
		t.Errorf("first cue malformed:\n%s", content)
	}
	if !strings.Contains(content, "00:01:01.042 --> 00:01:03.000\nover a minute\n") {
		t.Errorf("second cue malformed:\n%s", content)
	}
	if strings.Contains(content, ",") {
		t.Error("VTT timestamps must use dot separators")
	}
}

func TestWriteJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	segments := []Segment{
		{Start: 0, End: 1.5, Text: "你好"},
	}

	if err := WriteJSON(segments, path); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	var decoded []Segment
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("invalid json output: %v", err)
	}
	if len(decoded) != 1 || decoded[0].Text != "你好" || decoded[0].End != 1.5 {
		t.Errorf("round trip mismatch: %+v", decoded)
	}
}
