package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type LogMode string

const (
	LogModeDebug  LogMode = "debug"
	LogModePretty LogMode = "pretty"
	LogModeInfo   LogMode = "info"
	LogModeProd   LogMode = "prod"
	LogModeTest   LogMode = "test"
)

var (
	log zerolog.Logger = zerolog.Nop()
	mu  sync.RWMutex
)

// Init sets up the pretty console logger at debug level
func Init() {
	InitWithMode(LogModePretty)
}

// InitWithMode configures the global logger for the given mode.
// prod emits JSON lines, test discards everything below error.
func InitWithMode(mode LogMode) {
	zerolog.TimeFieldFormat = time.RFC3339

	var (
		out   io.Writer = consoleWriter(os.Stdout)
		level           = zerolog.DebugLevel
	)

	switch mode {
	case LogModeDebug:
		level = zerolog.TraceLevel
	case LogModeInfo:
		level = zerolog.InfoLevel
	case LogModeProd:
		out = os.Stdout
		level = zerolog.InfoLevel
	case LogModeTest:
		out = io.Discard
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	l := zerolog.New(out).With().Timestamp().Logger()

	mu.Lock()
	log = l
	zerolog.DefaultContextLogger = &log
	mu.Unlock()
}

func consoleWriter(out io.Writer) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    false,
		FormatLevel: func(i interface{}) string {
			s, _ := i.(string)
			return colorizeLevel(s)
		},
		FormatMessage: func(i interface{}) string {
			s, _ := i.(string)
			return colorize(s, cyan)
		},
		FormatFieldName: func(i interface{}) string {
			return colorize(fmt.Sprint(i)+":", gray)
		},
		FormatFieldValue: func(i interface{}) string {
			switch v := i.(type) {
			case string:
				return colorize(v, blue)
			case json.Number:
				return colorize(v.String(), blue)
			default:
				return colorize(fmt.Sprint(v), blue)
			}
		},
	}
}

// ANSI color codes
const (
	gray  = "\x1b[37m"
	blue  = "\x1b[34m"
	cyan  = "\x1b[36m"
	red   = "\x1b[31m"
	green = "\x1b[32m"
	reset = "\x1b[0m"
)

func colorize(s, color string) string {
	return color + s + reset
}

func colorizeLevel(level string) string {
	switch level {
	case "trace":
		return colorize("TRC", gray)
	case "debug":
		return colorize("DBG", gray)
	case "info":
		return colorize("INF", green)
	case "warn":
		return colorize("WRN", cyan)
	case "error":
		return colorize("ERR", red)
	case "fatal":
		return colorize("FTL", red)
	default:
		return colorize(level, blue)
	}
}

// Get returns the logger instance
func Get() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// WithComponent returns a child logger tagged with the component name
func WithComponent(component string) zerolog.Logger {
	return Get().With().Str("component", component).Logger()
}

// Error logs an error message
func Error(err error, msg string) {
	l := Get()
	l.Error().Err(err).Msg(msg)
}

// Info logs an info message
func Info(msg string) {
	l := Get()
	l.Info().Msg(msg)
}

// Debug logs a debug message
func Debug(msg string) {
	l := Get()
	l.Debug().Msg(msg)
}
