// Package logging provides structured logging functionality.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Console    bool   `mapstructure:"console"`
	File       bool   `mapstructure:"file"`
	Dir        string `mapstructure:"dir"`
	MaxSize    int    `mapstructure:"max_size"` // megabytes
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:      "info",
		Console:    true,
		File:       true,
		Dir:        "live_trading_logs",
		MaxSize:    50,
		MaxBackups: 30,
		MaxAge:     90,
	}
}

// PhaseLogPath returns the log file path for one run of a phase.
func PhaseLogPath(dir, phase string, now time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("trade_%s_%s.log", phase, now.Format("2006-01-02_15-04-05")))
}

// NewLogger creates a new logger with default configuration.
func NewLogger() zerolog.Logger {
	return NewLoggerWithConfig(DefaultLogConfig(), "")
}

var levelTags = map[string]string{
	"debug": "\033[36mDBG\033[0m",
	"info":  "\033[32mINF\033[0m",
	"warn":  "\033[33mWRN\033[0m",
	"error": "\033[31mERR\033[0m",
}

// NewLoggerWithConfig builds a logger that writes to the console (stderr, so
// JSON command output stays clean) and to a rotating file. filePath overrides
// the file location; empty means Dir/strangler.log. With both sinks off the
// logger discards everything.
func NewLoggerWithConfig(cfg LogConfig, filePath string) zerolog.Logger {
	var sinks []io.Writer

	if cfg.Console {
		sinks = append(sinks, zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "15:04:05",
			FormatLevel: func(i interface{}) string {
				ll, _ := i.(string)
				if tag, ok := levelTags[ll]; ok {
					return tag
				}
				return ll
			},
		})
	}

	if cfg.File {
		if filePath == "" {
			filePath = filepath.Join(cfg.Dir, "strangler.log")
		}
		if err := os.MkdirAll(filepath.Dir(filePath), 0755); err == nil {
			sinks = append(sinks, &lumberjack.Logger{
				Filename:   filePath,
				MaxSize:    cfg.MaxSize,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAge,
				Compress:   true,
			})
		} else {
			fmt.Fprintf(os.Stderr, "log dir %s unavailable: %v\n", filepath.Dir(filePath), err)
		}
	}

	var w io.Writer
	switch len(sinks) {
	case 0:
		w = io.Discard
	case 1:
		w = sinks[0]
	default:
		w = zerolog.MultiLevelWriter(sinks...)
	}

	zerolog.SetGlobalLevel(parseLevel(cfg.Level))
	return zerolog.New(w).With().Timestamp().Logger()
}

// parseLevel maps a config level to zerolog, defaulting to info.
func parseLevel(level string) zerolog.Level {
	l, err := zerolog.ParseLevel(level)
	if err != nil || l == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return l
}

// SetDebugLevel sets the global log level to debug.
func SetDebugLevel() {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
}

// WithComponent tags the logger with a component name.
func WithComponent(logger zerolog.Logger, component string) zerolog.Logger {
	return logger.With().Str("component", component).Logger()
}

// WithPhase tags the logger with the run phase.
func WithPhase(logger zerolog.Logger, phase string) zerolog.Logger {
	return logger.With().Str("phase", phase).Logger()
}

// LogOrder logs an order event.
func LogOrder(logger zerolog.Logger, orderID, symbol, side string, size int) {
	logger.Info().
		Str("event", "order").
		Str("order_id", orderID).
		Str("symbol", symbol).
		Str("side", side).
		Int("size", size).
		Msg("Order placed")
}

// LogAPICall logs an API call.
func LogAPICall(logger zerolog.Logger, method, endpoint string, duration time.Duration, err error) {
	event := logger.Debug().
		Str("event", "api_call").
		Str("method", method).
		Str("endpoint", endpoint).
		Dur("duration", duration)

	if err != nil {
		event.Err(err).Msg("API call failed")
	} else {
		event.Msg("API call completed")
	}
}

// LogScanCandidate logs one evaluated strike pair.
func LogScanCandidate(logger zerolog.Logger, ceDist, peDist int, callBid, putBid float64, status string) {
	logger.Debug().
		Str("event", "scan_candidate").
		Int("ce_distance", ceDist).
		Int("pe_distance", peDist).
		Float64("call_bid", callBid).
		Float64("put_bid", putBid).
		Float64("combined", callBid+putBid).
		Str("status", status).
		Msg("Strike pair evaluated")
}

// LogExitDecision logs the verdict of an exit evaluation or monitor session.
func LogExitDecision(logger zerolog.Logger, trigger, breach, source string, exitCombined float64, manualReview bool) {
	event := logger.Info()
	if manualReview {
		event = logger.Warn()
	}
	event.
		Str("event", "exit_decision").
		Str("trigger", trigger).
		Str("breach", breach).
		Str("data_source", source).
		Float64("exit_combined", exitCombined).
		Bool("manual_review", manualReview).
		Msg("Exit decided")
}
