package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlwelles/heapsizegen/generator"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, generator.DefaultOutput, cfg.Output)
	assert.Equal(t, "heapsize", cfg.Tag)
	assert.Equal(t, generator.DefaultRuntimeImport, cfg.RuntimeImport)
	assert.Equal(t, "x", cfg.Receiver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 200*time.Millisecond, cfg.Watch.Debounce)
	assert.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("MEM_RUNTIME", "example.com/mem/heapsize")
	path := writeFile(t, dir, "heapsizegen.yaml", `
output: sizes_gen.go
tag: mem
runtime_import: ${MEM_RUNTIME}
receiver: r
types: [Store, Event]
log:
  level: debug
  format: json
watch:
  debounce: 1s
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sizes_gen.go", cfg.Output)
	assert.Equal(t, "mem", cfg.Tag)
	assert.Equal(t, "example.com/mem/heapsize", cfg.RuntimeImport)
	assert.Equal(t, "r", cfg.Receiver)
	assert.Equal(t, []string{"Store", "Event"}, cfg.Types)
	assert.Equal(t, LogConfig{Level: "debug", Format: "json"}, cfg.Log)
	assert.Equal(t, time.Second, cfg.Watch.Debounce)

	popts := cfg.ParserOptions()
	assert.Equal(t, "mem", popts.Tag)
	assert.Equal(t, "sizes_gen.go", popts.Output)
	assert.Equal(t, []string{"Store", "Event"}, popts.Types)

	gopts := cfg.GeneratorOptions()
	assert.Equal(t, "sizes_gen.go", gopts.Output)
	assert.Equal(t, "example.com/mem/heapsize", gopts.RuntimeImport)
	assert.Equal(t, "r", gopts.Receiver)
}

func TestLoadMissing(t *testing.T) {
	t.Run("default file", func(t *testing.T) {
		t.Chdir(t.TempDir())
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, Default(), cfg)
	})

	t.Run("explicit file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}

func TestLoadEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, DefaultFile, "output: a_gen.go\nreceiver: a\n")
	writeFile(t, dir, ".env", "HEAPSIZEGEN_RECEIVER=b\nHEAPSIZEGEN_TYPES=A, B,,C\nHEAPSIZEGEN_LOG_LEVEL=warn\n")
	t.Setenv("HEAPSIZEGEN_LOG_LEVEL", "error")
	t.Setenv("HEAPSIZEGEN_WATCH_DEBOUNCE", "50ms")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "a_gen.go", cfg.Output)
	assert.Equal(t, "b", cfg.Receiver, ".env overrides the file")
	assert.Equal(t, []string{"A", "B", "C"}, cfg.Types)
	assert.Equal(t, "error", cfg.Log.Level, "the environment overrides .env")
	assert.Equal(t, 50*time.Millisecond, cfg.Watch.Debounce)

	_, set := os.LookupEnv("HEAPSIZEGEN_RECEIVER")
	assert.False(t, set, ".env must not leak into the process environment")
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name, yaml string
	}{
		{"syntax", "output: [unterminated"},
		{"output path", "output: gen/heapsize_gen.go"},
		{"output extension", "output: heapsize.txt"},
		{"output test file", "output: heapsize_test.go"},
		{"tag", "tag: heap-size"},
		{"receiver", "receiver: 1x"},
		{"types", "types: [\"map[string]int\"]"},
		{"log format", "log: {format: xml}"},
		{"debounce", "watch: {debounce: -1s}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), DefaultFile, tt.yaml)
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, SplitList(""))
	assert.Nil(t, SplitList(" , "))
	assert.Equal(t, []string{"A", "B"}, SplitList("A,B"))
	assert.Equal(t, []string{"A", "B"}, SplitList(" A , B ,"))
}
