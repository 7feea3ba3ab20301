// Package autoload configures the global logger from LOG_* variables when imported.
package autoload

import (
	configx "github.com/tanpawarit/premeeting-warmup-agent/pkg/config"
	logx "github.com/tanpawarit/premeeting-warmup-agent/pkg/logger"
)

func init() {
	conf, err := configx.New[logx.Config]("LOG")
	if err != nil {
		logx.Init()
		return
	}
	logx.Init(*conf)
}
