package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConvertBytesToHumanReadable(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KiB"},
		{524288000, "500 MiB"},
		{-1024, "-1.0 KiB"},
	}
	for _, tt := range tests {
		if got := ConvertBytesToHumanReadable(tt.bytes); got != tt.want {
			t.Errorf("ConvertBytesToHumanReadable(%d) = %q, want %q", tt.bytes, got, tt.want)
		}
	}
}

func TestDebug_WritesToConfiguredDir(t *testing.T) {
	dir := t.TempDir()
	ConfigureDebug(dir)
	defer ConfigureDebug("")

	Debug("hello %d", 42)

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one log file, got %d", len(entries))
	}
	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "hello 42") {
		t.Errorf("log file missing message: %q", string(data))
	}
}

func TestDebug_UnconfiguredIsNoop(t *testing.T) {
	ConfigureDebug("")
	Debug("dropped %s", "message")
}

func TestCleanupLogs(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 5; i++ {
		name := fmt.Sprintf("debug-20240101-00000%d.000.log", i)
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	// Unrelated files are left alone
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	ConfigureDebug(dir) // creates a sixth, newest log
	defer ConfigureDebug("")
	CleanupLogs(2)

	entries, _ := os.ReadDir(dir)
	var logs []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".log") {
			logs = append(logs, e.Name())
		}
	}
	if len(logs) != 2 {
		t.Fatalf("expected 2 logs after cleanup, got %v", logs)
	}
	if _, err := os.Stat(filepath.Join(dir, "notes.txt")); err != nil {
		t.Error("non-log file should survive cleanup")
	}
	for _, name := range logs {
		if name == "debug-20240101-000000.000.log" {
			t.Error("oldest log should have been removed")
		}
	}
}
