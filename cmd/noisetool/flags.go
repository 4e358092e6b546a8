package main

import (
	"context"
	"io"
	"os"

	"github.com/Lan-st/caffe-1/logger"
	"github.com/urfave/cli/v3"
)

var (
	logLevel  string
	logFormat string
)

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (text, json)",
			Value:       "text",
			Destination: &logFormat,
		},
	}
}

func newLogger(w io.Writer, format, level string) logger.Logger {
	if format == "json" {
		return logger.JSON(w, logger.ParseLevel(level))
	}
	return logger.Text(w, logger.ParseLevel(level))
}

// withLogger applies config defaults for the logging flags and stores the
// resulting logger in ctx.
func withLogger(ctx context.Context, cmd *cli.Command, cfg Config) context.Context {
	applyLogConfig(cmd, cfg, &logLevel, &logFormat)
	return logger.WithContext(ctx, newLogger(os.Stderr, logFormat, logLevel))
}
