package logx

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Debug        bool   `split_words:"true" default:"false"`
	PrettyFormat bool   `split_words:"true" default:"false"`
	Level        string `split_words:"true"`
	Service      string `split_words:"true" default:"premeeting-warmup-agent"`
}

var DefaultConfig = Config{
	Service: "premeeting-warmup-agent",
}

// level resolves the configured level. An explicit LOG_LEVEL wins over LOG_DEBUG;
// unknown names fall back to info.
func (c Config) level() zerolog.Level {
	if name := strings.TrimSpace(c.Level); name != "" {
		if lvl, err := zerolog.ParseLevel(strings.ToLower(name)); err == nil {
			return lvl
		}
	}
	if c.Debug {
		return zerolog.DebugLevel
	}
	return zerolog.InfoLevel
}

// Init replaces the global logger. Components log through zerolog's global log package;
// request handlers use zerolog.Ctx, which falls back to this logger.
func Init(opts ...Config) {
	conf := DefaultConfig
	if len(opts) > 0 {
		conf = opts[0]
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.DurationFieldUnit = time.Millisecond

	var out io.Writer = os.Stdout
	if conf.PrettyFormat {
		out = zerolog.NewConsoleWriter()
	}

	ctx := zerolog.New(out).Level(conf.level()).With().Timestamp().Caller().Stack()
	if service := strings.TrimSpace(conf.Service); service != "" {
		ctx = ctx.Str("service", service)
	}
	log.Logger = ctx.Logger()
	zerolog.DefaultContextLogger = &log.Logger
}
