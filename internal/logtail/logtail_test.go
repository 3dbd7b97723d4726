package logtail

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestRead(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "test.log")

	var content strings.Builder
	var expectedAll []string
	for i := 1; i <= 10; i++ {
		line := fmt.Sprintf("Line %d", i)
		content.WriteString(line + "\n")
		expectedAll = append(expectedAll, line)
	}

	if err := os.WriteFile(logPath, []byte(content.String()), 0644); err != nil {
		t.Fatalf("failed to create test log file: %v", err)
	}

	tests := []struct {
		name     string
		maxLines int
		expected []string
	}{
		{
			name:     "read all (0)",
			maxLines: 0,
			expected: expectedAll,
		},
		{
			name:     "read all (negative)",
			maxLines: -1,
			expected: expectedAll,
		},
		{
			name:     "read partial (5)",
			maxLines: 5,
			expected: expectedAll[5:],
		},
		{
			name:     "read exactly all (10)",
			maxLines: 10,
			expected: expectedAll,
		},
		{
			name:     "read more than exists (20)",
			maxLines: 20,
			expected: expectedAll,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Read(logPath, tt.maxLines)
			if err != nil {
				t.Fatalf("Read() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Read() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestRead_MissingFile(t *testing.T) {
	got, err := Read(filepath.Join(t.TempDir(), "nope.log"), 10)
	if err != nil || got != nil {
		t.Fatalf("Read() = %v, %v; want nil, nil", got, err)
	}
}

func TestParseLine(t *testing.T) {
	line := `{"level":"warning","msg":"update queued","component":"syncer","work_order_id":"wo-1","pending":3,"error":"[TRANSPORT] execute request","time":"2026-05-01T10:20:30.5Z"}`

	got := ParseLine(line)
	if got.Level != "warning" || got.Message != "update queued" || got.Component != "syncer" {
		t.Fatalf("ParseLine() = %#v", got)
	}
	if got.Error != "[TRANSPORT] execute request" {
		t.Fatalf("Error = %q", got.Error)
	}
	want := time.Date(2026, 5, 1, 10, 20, 30, 500_000_000, time.UTC)
	if !got.Time.Equal(want) {
		t.Fatalf("Time = %v, want %v", got.Time, want)
	}
	if !reflect.DeepEqual(got.Keys, []string{"pending", "work_order_id"}) {
		t.Fatalf("Keys = %v", got.Keys)
	}
	if got.Fields["pending"] != "3" || got.Fields["work_order_id"] != "wo-1" {
		t.Fatalf("Fields = %v", got.Fields)
	}
	if got.Raw != line {
		t.Fatalf("Raw not preserved")
	}
}

func TestParseLine_PlainText(t *testing.T) {
	tests := []string{"panic: boom", "{not json"}
	for _, input := range tests {
		got := ParseLine("  " + input)
		if got.Message != input || got.Level != "" || !got.Time.IsZero() {
			t.Errorf("ParseLine(%q) = %#v", input, got)
		}
	}
}

func TestReadEntries_SkipsBlankLines(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "app.log")
	body := `{"level":"info","msg":"one"}` + "\n\n" + `{"level":"error","msg":"two"}` + "\n"
	if err := os.WriteFile(logPath, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	entries, err := ReadEntries(logPath, 10)
	if err != nil {
		t.Fatalf("ReadEntries() error = %v", err)
	}
	if len(entries) != 2 || entries[0].Message != "one" || entries[1].Level != "error" {
		t.Fatalf("ReadEntries() = %#v", entries)
	}
}
