package logging

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// readRecords parses every JSON line of the log file in dir.
func readRecords(t *testing.T, dir string) []map[string]any {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, LogFileName))
	require.NoError(t, err)

	var records []map[string]any
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		var r map[string]any
		if json.Unmarshal(sc.Bytes(), &r) == nil {
			records = append(records, r)
		}
	}
	return records
}

func hasMsg(records []map[string]any, msg string) bool {
	for _, r := range records {
		if r["msg"] == msg {
			return true
		}
	}
	return false
}

func TestInitWritesJSONLines(t *testing.T) {
	Shutdown()
	dir := t.TempDir()
	Init(Config{Debug: true, LogDir: dir})
	defer Shutdown()

	Logger().Info("poll_started", "interval_ms", 500)

	records := readRecords(t, dir)
	require.NotEmpty(t, records)
	assert.Equal(t, "poll_started", records[0]["msg"])
	assert.EqualValues(t, 500, records[0]["interval_ms"])
}

func TestInitDiscardsWithoutDebug(t *testing.T) {
	Shutdown()
	Init(Config{})
	defer Shutdown()

	require.NotNil(t, Logger())
	Logger().Info("goes_nowhere")
}

func TestForComponentBeforeInit(t *testing.T) {
	Shutdown()
	early := ForComponent(CompTmux)

	dir := t.TempDir()
	Init(Config{Debug: true, LogDir: dir})
	defer Shutdown()

	early.Warn("capture_failed", "target", "main:0.1")

	records := readRecords(t, dir)
	require.Len(t, records, 1)
	assert.Equal(t, CompTmux, records[0]["component"])
	assert.Equal(t, "main:0.1", records[0]["target"])
}

func TestLevelFilteringAndSetLevel(t *testing.T) {
	Shutdown()
	dir := t.TempDir()
	Init(Config{Debug: true, LogDir: dir, Level: "warn"})
	defer Shutdown()

	Logger().Info("filtered_out")
	Logger().Warn("kept")
	SetLevel("debug")
	Logger().Debug("now_visible")

	records := readRecords(t, dir)
	assert.False(t, hasMsg(records, "filtered_out"))
	assert.True(t, hasMsg(records, "kept"))
	assert.True(t, hasMsg(records, "now_visible"))
}

func TestDebugDefaultsToDebugLevel(t *testing.T) {
	Shutdown()
	dir := t.TempDir()
	Init(Config{Debug: true, LogDir: dir})
	defer Shutdown()

	Logger().Debug("debug_visible")
	assert.True(t, hasMsg(readRecords(t, dir), "debug_visible"))
}

func TestTextFormat(t *testing.T) {
	Shutdown()
	dir := t.TempDir()
	Init(Config{Debug: true, LogDir: dir, Format: "text"})
	defer Shutdown()

	Logger().Info("text_line")

	data, err := os.ReadFile(filepath.Join(dir, LogFileName))
	require.NoError(t, err)
	assert.Contains(t, string(data), "msg=text_line")
}

func TestDumpRingBuffer(t *testing.T) {
	Shutdown()
	dir := t.TempDir()
	Init(Config{Debug: true, LogDir: dir, RingBufferSize: 4096})
	defer Shutdown()

	Logger().Info("ring_message")

	dump := filepath.Join(dir, "dump.jsonl")
	require.NoError(t, DumpRingBuffer(dump))
	data, err := os.ReadFile(dump)
	require.NoError(t, err)
	assert.Contains(t, string(data), "ring_message")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"debug", "DEBUG"},
		{"WARN", "WARN"},
		{"warning", "WARN"},
		{"error", "ERROR"},
		{"", "INFO"},
		{"nonsense", "INFO"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in).String())
		})
	}
}
