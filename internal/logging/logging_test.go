package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"invalid", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		input    string
		expected int64
		hasError bool
	}{
		{"100", 100, false},
		{"100B", 100, false},
		{"10KB", 10 << 10, false},
		{"50mb", 50 << 20, false},
		{"1GB", 1 << 30, false},
		{"0MB", 0, true},
		{"lots", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseSize(tt.input)
			if (err != nil) != tt.hasError {
				t.Fatalf("parseSize(%q) error = %v, wantErr %v", tt.input, err, tt.hasError)
			}
			if got != tt.expected {
				t.Errorf("parseSize(%q) = %d, want %d", tt.input, got, tt.expected)
			}
		})
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input    string
		expected time.Duration
		hasError bool
	}{
		{"7d", 7 * 24 * time.Hour, false},
		{"36h", 36 * time.Hour, false},
		{"xd", 0, true},
		{"soon", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseDuration(tt.input)
			if (err != nil) != tt.hasError {
				t.Fatalf("parseDuration(%q) error = %v, wantErr %v", tt.input, err, tt.hasError)
			}
			if got != tt.expected {
				t.Errorf("parseDuration(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestWithContext(t *testing.T) {
	var buf bytes.Buffer
	orig := Logger()
	setLogger(slog.New(slog.NewJSONHandler(&buf, nil)))
	defer setLogger(orig)

	ctx := ContextWithCorrelationID(context.Background(), "run-1")
	ctx = ContextWithGuild(ctx, 10)
	ctx = ContextWithUser(ctx, 20)
	ctx = ContextWithBatch(ctx, 30)
	WithContext(ctx).Info("hello")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if rec["correlation_id"] != "run-1" {
		t.Errorf("correlation_id = %v, want run-1", rec["correlation_id"])
	}
	for key, want := range map[string]float64{"guild_id": 10, "user_id": 20, "batch_id": 30} {
		if rec[key] != want {
			t.Errorf("%s = %v, want %v", key, rec[key], want)
		}
	}
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	orig := Logger()
	setLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	defer setLogger(orig)

	WithComponent("discord").Info("connected")
	if !strings.Contains(buf.String(), "component=discord") {
		t.Errorf("output %q missing component", buf.String())
	}
}

func TestInitFileOutput(t *testing.T) {
	orig := Logger()
	defer setLogger(orig)

	path := filepath.Join(t.TempDir(), "logs", "bot.log")
	if err := Init(&Config{Level: "debug", Format: "json", Output: path}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	Logger().Debug("to file")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"to file"`) {
		t.Errorf("log file = %q", data)
	}
}

func TestInitBadRotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.log")
	err := Init(&Config{Output: path, Rotation: &RotationConfig{MaxSize: "huge"}})
	if err == nil {
		t.Error("expected invalid max_size error")
	}
}

func TestRotatingWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.log")
	wc, err := newRotatingWriter(path, &RotationConfig{MaxSize: "10B", MaxBackups: 2})
	if err != nil {
		t.Fatalf("newRotatingWriter failed: %v", err)
	}
	defer func() { _ = wc.Close() }()

	for _, line := range []string{"aaaaaaaa\n", "bbbbbbbb\n", "cccccccc\n", "dddddddd\n"} {
		if _, err := wc.Write([]byte(line)); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}

	want := map[string]string{
		path:        "dddddddd\n",
		path + ".1": "cccccccc\n",
		path + ".2": "bbbbbbbb\n",
	}
	for file, content := range want {
		data, err := os.ReadFile(file)
		if err != nil {
			t.Fatalf("read %s: %v", file, err)
		}
		if string(data) != content {
			t.Errorf("%s = %q, want %q", filepath.Base(file), data, content)
		}
	}
	if _, err := os.Stat(path + ".3"); !os.IsNotExist(err) {
		t.Error("backup beyond max_backups should not exist")
	}
}

func TestRotatingWriterPrunesOldBackups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.log")
	old := path + ".1"
	if err := os.WriteFile(old, []byte("old\n"), 0644); err != nil {
		t.Fatal(err)
	}
	stale := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(old, stale, stale); err != nil {
		t.Fatal(err)
	}

	wc, err := newRotatingWriter(path, &RotationConfig{MaxAge: "1d"})
	if err != nil {
		t.Fatalf("newRotatingWriter failed: %v", err)
	}
	defer func() { _ = wc.Close() }()

	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Error("stale backup should have been pruned")
	}
}
