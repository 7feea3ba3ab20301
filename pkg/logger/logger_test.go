package logx

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestConfigLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		conf Config
		want zerolog.Level
	}{
		{"default", Config{}, zerolog.InfoLevel},
		{"debug flag", Config{Debug: true}, zerolog.DebugLevel},
		{"explicit level wins", Config{Debug: true, Level: "WARN"}, zerolog.WarnLevel},
		{"unknown level", Config{Level: "loud"}, zerolog.InfoLevel},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.conf.level(); got != tt.want {
				t.Fatalf("level = %v, want %v", got, tt.want)
			}
		})
	}
}
