package lispcore

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/podhmo/lispcore/callstack"
	"github.com/podhmo/lispcore/evaluator"
	"github.com/podhmo/lispcore/sandbox"
	"github.com/xyproto/env/v2"
)

// Environment variables read by LoadConfig.
const (
	EnvMaxCallDepth  = "LISPCORE_MAX_CALL_DEPTH"
	EnvRunMode       = "LISPCORE_RUN_MODE"
	EnvDefaultPolicy = "LISPCORE_DEFAULT_POLICY"
	EnvLogLevel      = "LISPCORE_LOG_LEVEL"
)

// Config holds the settings shared by every unit of work an Interpreter
// runs. Options given to New override it.
type Config struct {
	// MaxCallDepth bounds the logical call stack of a unit of work.
	MaxCallDepth int

	// RunMode is the value scripts see as *run-mode*.
	RunMode string

	// DefaultPolicy decides gated primitives when no interceptor is installed.
	DefaultPolicy sandbox.Policy

	// LogLevel is the level of the default logger.
	LogLevel slog.Level
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() Config {
	return Config{
		MaxCallDepth:  callstack.DefaultMaxDepth,
		RunMode:       evaluator.DefaultRunMode,
		DefaultPolicy: sandbox.PolicyDeny,
		LogLevel:      slog.LevelError,
	}
}

// LoadConfig returns DefaultConfig overridden by the LISPCORE_* environment
// variables as they are at the time of the call. Unparsable values are
// reported rather than ignored.
func LoadConfig() (Config, error) {
	env.Load() // env caches the environment on first use
	c := DefaultConfig()
	if s := env.Str(EnvMaxCallDepth); s != "" {
		depth, err := ParseMaxCallDepth(s)
		if err != nil {
			return c, fmt.Errorf("%s: %w", EnvMaxCallDepth, err)
		}
		c.MaxCallDepth = depth
	}
	c.RunMode = env.Str(EnvRunMode, c.RunMode)

	if s := env.Str(EnvDefaultPolicy); s != "" {
		p, err := sandbox.ParsePolicy(s)
		if err != nil {
			return c, fmt.Errorf("%s: %w", EnvDefaultPolicy, err)
		}
		c.DefaultPolicy = p
	}
	if s := env.Str(EnvLogLevel); s != "" {
		level, err := ParseLogLevel(s)
		if err != nil {
			return c, fmt.Errorf("%s: %w", EnvLogLevel, err)
		}
		c.LogLevel = level
	}
	return c, nil
}

// ParseMaxCallDepth accepts a positive depth up to callstack.MaxDepthLimit.
func ParseMaxCallDepth(s string) (int, error) {
	depth, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if depth < 1 || depth > callstack.MaxDepthLimit {
		return 0, fmt.Errorf("call depth %d out of range [1, %d]", depth, callstack.MaxDepthLimit)
	}
	return depth, nil
}

// ParseLogLevel accepts the slog level names in any case.
func ParseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(strings.TrimSpace(s)))); err != nil {
		return 0, err
	}
	return level, nil
}
