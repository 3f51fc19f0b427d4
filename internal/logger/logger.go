package logger

import (
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Logger struct{ zerolog.Logger }

// File configures an optional rotated log file written next to stdout.
type File struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

func New(level string) *Logger {
	return NewWithFile(level, File{})
}

func NewWithFile(level string, f File) *Logger {
	return newLogger(level, os.Stdout, f)
}

// NewWriter logs to w instead of stdout, e.g. stderr for CLIs that print
// results on stdout.
func NewWriter(level string, w io.Writer) *Logger {
	return newLogger(level, w, File{})
}

func newLogger(level string, out io.Writer, f File) *Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339
	w := out
	if f.Path != "" {
		w = zerolog.MultiLevelWriter(out, &lumberjack.Logger{
			Filename:   f.Path,
			MaxSize:    orDefault(f.MaxSizeMB, 50),
			MaxBackups: orDefault(f.MaxBackups, 5),
			MaxAge:     orDefault(f.MaxAgeDays, 14),
			Compress:   true,
		})
	}
	z := zerolog.New(w).With().Timestamp().Logger().Level(lvl)
	return &Logger{z}
}

// Nop discards everything; handy in tests and CLI paths.
func Nop() *Logger { return &Logger{zerolog.Nop()} }

func (l *Logger) HTTP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		ev := l.Info()
		if sc := trace.SpanContextFromContext(r.Context()); sc.HasTraceID() {
			ev = ev.Str("trace_id", sc.TraceID().String())
		}
		ev.Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("dur", time.Since(start)).
			Msg("http")
	})
}

func orDefault(v, d int) int {
	if v <= 0 {
		return d
	}
	return v
}
