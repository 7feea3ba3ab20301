package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

type sampleConfig struct {
	Addr    string        `split_words:"true" default:":8080"`
	IdleTTL time.Duration `envconfig:"IDLE_TTL" default:"30m"`
	Markers []string      `split_words:"true"`
}

func TestExportEnvironmentKeepsExistingValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	content := "WARMUPTEST_ADDR=:9090\nWARMUPTEST_END_MARKERS=[END_SESSION],[DONE]\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	t.Setenv("WARMUPTEST_ADDR", ":7070")
	t.Setenv("WARMUPTEST_MARKERS", "[END_SESSION],[DONE]")
	if err := exportEnvironment(path); err != nil {
		t.Fatalf("exportEnvironment() error = %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("WARMUPTEST_END_MARKERS") })

	if got := os.Getenv("WARMUPTEST_ADDR"); got != ":7070" {
		t.Fatalf("existing env must win, got %q", got)
	}
	if got := os.Getenv("WARMUPTEST_END_MARKERS"); got != "[END_SESSION],[DONE]" {
		t.Fatalf("env file value not exported, got %q", got)
	}

	conf, err := New[sampleConfig]("WARMUPTEST")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if conf.Addr != ":7070" || conf.IdleTTL != 30*time.Minute {
		t.Fatalf("unexpected config: %+v", conf)
	}
	if len(conf.Markers) != 2 || conf.Markers[1] != "[DONE]" {
		t.Fatalf("unexpected markers: %v", conf.Markers)
	}
}

func TestExportEnvironmentIfExistsMissingFile(t *testing.T) {
	if err := exportEnvironmentIfExists(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Fatalf("missing env file must be ignored, got %v", err)
	}
}
