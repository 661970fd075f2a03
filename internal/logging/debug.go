package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Logger provides topic-based debug logging with minimal overhead when the
// topic is disabled. Indicator updates fire every candle, so the hot path
// must be a single bool check.
type Logger struct {
	topic   string
	enabled bool
}

var enabledTopics = make(map[string]bool)

func init() {
	// DEBUG_TOPICS selects which topics emit, eg. DEBUG_TOPICS=atr,regime,profit
	topics := os.Getenv("DEBUG_TOPICS")
	if topics == "" {
		return
	}

	if topics == "all" {
		enabledTopics["*"] = true
		configureSlog()
		return
	}

	for _, topic := range strings.Split(topics, ",") {
		topic = strings.TrimSpace(topic)
		if topic != "" {
			enabledTopics[topic] = true
		}
	}

	if len(enabledTopics) > 0 {
		configureSlog()
	}
}

// configureSlog drops the default logger to DEBUG level so topic traces
// actually reach the handler.
func configureSlog() {
	opts := &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}
	handler := slog.NewTextHandler(os.Stderr, opts)
	slog.SetDefault(slog.New(handler))
}

// New creates a topic-specific logger.
// Usage: var regimeLog = logging.New("regime")
func New(topic string) *Logger {
	enabled := enabledTopics["*"] || enabledTopics[topic]
	return &Logger{
		topic:   topic,
		enabled: enabled,
	}
}

// Debug logs a debug message if this topic is enabled.
func (l *Logger) Debug(msg string, args ...any) {
	if !l.enabled {
		return
	}
	allArgs := append([]any{"topic", l.topic}, args...)
	slog.Debug(msg, allArgs...)
}

// Info logs an info message if this topic is enabled.
func (l *Logger) Info(msg string, args ...any) {
	if !l.enabled {
		return
	}
	allArgs := append([]any{"topic", l.topic}, args...)
	slog.Info(msg, allArgs...)
}

// Warn logs a warning message if this topic is enabled.
func (l *Logger) Warn(msg string, args ...any) {
	if !l.enabled {
		return
	}
	allArgs := append([]any{"topic", l.topic}, args...)
	slog.Warn(msg, allArgs...)
}

// Enabled reports whether this topic emits. Useful to guard expensive
// argument construction.
func (l *Logger) Enabled() bool {
	return l.enabled
}
