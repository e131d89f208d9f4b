package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Logger provides topic-based logging on top of a shared zerolog writer.
// Debug lines are dropped unless the topic is enabled, everything else is always written.
type Logger struct {
	topic   string
	enabled bool
}

// Config controls the process-wide writer.
type Config struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" default:"json" validate:"oneof=json console"`
	Output string `yaml:"output" default:"stderr"`
}

var (
	mu            sync.RWMutex
	base          = zerolog.New(os.Stderr).With().Timestamp().Logger()
	enabledTopics = make(map[string]bool)
)

func init() {
	// Read DEBUG_TOPICS env var: DEBUG_TOPICS=rsi,sizing,optimizer
	topics := os.Getenv("DEBUG_TOPICS")
	if topics == "" {
		return
	}

	// Special case: "all" enables everything
	if topics == "all" {
		enabledTopics["*"] = true
		base = base.Level(zerolog.DebugLevel)
		return
	}

	for _, topic := range strings.Split(topics, ",") {
		topic = strings.TrimSpace(topic)
		if topic != "" {
			enabledTopics[topic] = true
		}
	}
}

// Setup replaces the shared writer. Loggers created before Setup pick up the new writer.
func Setup(cfg Config) error {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	if len(enabledTopics) > 0 {
		level = zerolog.DebugLevel
	}

	var out io.Writer
	switch cfg.Output {
	case "", "stderr":
		out = os.Stderr
	case "stdout":
		out = os.Stdout
	default:
		f, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("could not open log file: %w", err)
		}
		out = f
	}

	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	mu.Lock()
	base = zerolog.New(out).Level(level).With().Timestamp().Logger()
	mu.Unlock()
	return nil
}

// SetOutput swaps the writer while keeping the current level. Used by tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	base = base.Output(w)
	mu.Unlock()
}

// New creates a new topic-specific logger
// Usage: var sizingLog = logging.New("sizing")
func New(topic string) *Logger {
	enabled := enabledTopics["*"] || enabledTopics[topic]
	return &Logger{
		topic:   topic,
		enabled: enabled,
	}
}

// Debug logs a debug message if this topic is enabled
// Fast path: returns immediately if disabled (single bool check)
func (l *Logger) Debug(msg string, args ...any) {
	if !l.enabled {
		return
	}
	l.write(zerolog.DebugLevel, msg, args)
}

func (l *Logger) Info(msg string, args ...any) {
	l.write(zerolog.InfoLevel, msg, args)
}

func (l *Logger) Warn(msg string, args ...any) {
	l.write(zerolog.WarnLevel, msg, args)
}

func (l *Logger) Error(msg string, args ...any) {
	l.write(zerolog.ErrorLevel, msg, args)
}

// Enabled returns true if debug output is enabled for this topic
// Useful for expensive computations: if log.Enabled() { ... }
func (l *Logger) Enabled() bool {
	return l.enabled
}

func (l *Logger) write(level zerolog.Level, msg string, args []any) {
	mu.RLock()
	zl := base
	mu.RUnlock()

	ev := zl.WithLevel(level)
	if ev == nil {
		return
	}
	ev = ev.Str("topic", l.topic)
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		if err, isErr := args[i+1].(error); isErr {
			ev = ev.AnErr(key, err)
			continue
		}
		ev = ev.Interface(key, args[i+1])
	}
	if len(args)%2 == 1 {
		ev = ev.Interface("!BADKEY", args[len(args)-1])
	}
	ev.Msg(msg)
}
