// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

// Package logging builds the zap logger used by the command line tools.
package logging

import (
	"os"
	"runtime"

	"github.com/zeebo/errs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Error is a logging error class.
var Error = errs.Class("logging")

// Config configures the logger.
type Config struct {
	Level       string `toml:"level"`
	Development bool   `toml:"development"`
	Caller      bool   `toml:"caller"`
	Stack       bool   `toml:"stack"`
	Encoding    string `toml:"encoding"`
	Output      string `toml:"output"`
}

// Defaults returns the release configuration.
func Defaults() Config {
	return Config{
		Level:    "info",
		Encoding: "console",
		Output:   "stderr",
	}
}

// Validate checks the level and encoding.
func (config Config) Validate() error {
	if _, err := zapcore.ParseLevel(config.Level); err != nil {
		return Error.New("invalid level %q", config.Level)
	}
	switch config.Encoding {
	case "console", "json":
	default:
		return Error.New("invalid encoding %q, can either be 'console' or 'json'", config.Encoding)
	}
	return nil
}

// New creates a logger configured by config.
func New(config Config) (*zap.Logger, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	level, _ := zapcore.ParseLevel(config.Level)

	output := config.Output
	if output == "" {
		output = "stderr"
	}

	levelEncoder := zapcore.CapitalColorLevelEncoder
	if runtime.GOOS == "windows" || config.Encoding == "json" {
		levelEncoder = zapcore.CapitalLevelEncoder
	}

	timeKey := "T"
	if os.Getenv("ANNOSTORE_LOG_NOTIME") != "" {
		timeKey = ""
	}

	log, err := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       config.Development,
		DisableCaller:     !config.Caller,
		DisableStacktrace: !config.Stack,
		Encoding:          config.Encoding,
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        timeKey,
			LevelKey:       "L",
			NameKey:        "N",
			CallerKey:      "C",
			MessageKey:     "M",
			StacktraceKey:  "S",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    levelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{output},
		ErrorOutputPaths: []string{output},
	}.Build()
	return log, Error.Wrap(err)
}
