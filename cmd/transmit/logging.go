package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"transmit/internal/config"
)

const logLevelEnvKey = "TRANSMIT_LOG_LEVEL"

// levelSource records which setting chose the log level.
type levelSource string

const (
	levelFromFlag    levelSource = "flag"
	levelFromEnv     levelSource = "env"
	levelFromConfig  levelSource = "config"
	levelFromDefault levelSource = "default"
)

// cliLogging is the resolved logger setup for one invocation.
type cliLogging struct {
	Level   slog.Level
	Source  levelSource
	JSON    bool
	Warning string
}

// setupCLILogging resolves the level from --log-level, TRANSMIT_LOG_LEVEL and
// the log_level setting, in that order, and installs the default logger on
// stderr. A bad flag is an error; a bad env or config value falls back to the
// default level with a warning. With --json, records are JSON too.
func setupCLILogging(command, flagLevel, configLevel string, jsonOutput bool) (cliLogging, error) {
	envLevel := os.Getenv(logLevelEnvKey)
	raw, source := selectedLogLevel(flagLevel, envLevel, configLevel)

	setup := cliLogging{Source: source, JSON: jsonOutput}
	level, err := parseLogLevel(raw)
	if err != nil {
		switch source {
		case levelFromFlag:
			return setup, fmt.Errorf("invalid --log-level %q (want debug, info, warn or error)", flagLevel)
		case levelFromEnv:
			setup.Warning = fmt.Sprintf("warning: invalid %s=%q; defaulting to %s", logLevelEnvKey, envLevel, config.DefaultLogLevel)
		case levelFromConfig:
			setup.Warning = fmt.Sprintf("warning: invalid log_level=%q; defaulting to %s", configLevel, config.DefaultLogLevel)
		}
		level, _ = parseLogLevel(config.DefaultLogLevel)
		setup.Source = levelFromDefault
	}
	setup.Level = level

	slog.SetDefault(newLogger(os.Stderr, level, jsonOutput).With("command", command))
	return setup, nil
}

func selectedLogLevel(flagLevel, envLevel, configLevel string) (string, levelSource) {
	for _, candidate := range []struct {
		raw    string
		source levelSource
	}{
		{flagLevel, levelFromFlag},
		{envLevel, levelFromEnv},
		{configLevel, levelFromConfig},
	} {
		if strings.TrimSpace(candidate.raw) != "" {
			return candidate.raw, candidate.source
		}
	}
	return "", levelFromDefault
}

var namedLevels = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// parseLogLevel accepts level names in any case or a numeric slog level.
// Empty means info.
func parseLogLevel(raw string) (slog.Level, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == "" {
		return slog.LevelInfo, nil
	}
	if level, ok := namedLevels[value]; ok {
		return level, nil
	}
	if numeric, err := strconv.Atoi(value); err == nil {
		return slog.Level(numeric), nil
	}
	return slog.LevelInfo, fmt.Errorf("invalid log level %q", raw)
}

func newLogger(w io.Writer, level slog.Level, jsonOutput bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if jsonOutput {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
