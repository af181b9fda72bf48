package main

import (
	"io"
	"os"

	"github.com/damianoneill/ncdispatch/netconf/client"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const logLevelNotSet = "NOTSET"

var logLevels = map[string]log.Level{
	logLevelNotSet: log.ErrorLevel,
	"DEBUG":        log.DebugLevel,
	"INFO":         log.InfoLevel,
	"WARNING":      log.WarnLevel,
	"ERROR":        log.ErrorLevel,
	"CRITICAL":     log.FatalLevel,
}

var logLevelNames = []string{logLevelNotSet, "DEBUG", "INFO", "WARNING", "ERROR", "CRITICAL"}

// setupLogging configures the standard logger. Without a log level only errors are reported, to
// stderr. The returned function restores the logger output and closes any log file.
func setupLogging(opts *Options, stderr io.Writer) (func(), error) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true, DisableColors: true})
	log.SetLevel(logLevels[opts.LogLevel])
	log.SetOutput(stderr)

	restore := func() { log.SetOutput(os.Stderr) }
	if opts.LogLevel == logLevelNotSet || opts.LogFile == "" {
		return restore, nil
	}

	f, err := os.OpenFile(opts.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return restore, errors.Wrap(err, "open log file")
	}
	log.SetOutput(f)
	return func() {
		restore()
		_ = f.Close()
	}, nil
}

// clientTrace selects the client trace hooks for the configured log level.
func clientTrace(opts *Options) *client.ClientTrace {
	if opts.LogLevel == "DEBUG" {
		return client.DiagnosticLoggingHooks
	}
	return client.DefaultLoggingHooks
}
