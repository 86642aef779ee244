// Package eventlog sets up the two log channels of the selfbot: App for the
// bot's own events and Client for the connection library underneath it.
// Each channel writes to a per-date file and mirrors to the console at its
// own threshold.
package eventlog

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	appFilePrefix    = "SelfBot"
	clientFilePrefix = "Discord"
	dateLayout       = "2006-01-02"

	maxSizeMB  = 100
	maxBackups = 3
	maxAgeDays = 28
)

type Options struct {
	Dir     string
	Now     func() time.Time
	Console io.Writer
	NoColor bool
}

// Logs holds both channels and the files behind them.
type Logs struct {
	App    *slog.Logger
	Client *slog.Logger

	files []*lumberjack.Logger
}

// Open creates Dir if needed and opens Dir/SelfBot<date>.log and
// Dir/Discord<date>.log for appending.
func Open(opts Options) (*Logs, error) {
	if opts.Dir == "" {
		opts.Dir = "Logs"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Console == nil {
		opts.Console = os.Stderr
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	date := opts.Now().Format(dateLayout)
	appFile := newFile(filepath.Join(opts.Dir, appFilePrefix+date+".log"))
	clientFile := newFile(filepath.Join(opts.Dir, clientFilePrefix+date+".log"))

	colored := !opts.NoColor && !color.NoColor
	console := newLineHandler(opts.Console, slog.LevelInfo, consoleTimeLayout, colored)
	// the client channel shares the console writer but only surfaces errors
	clientConsole := &lineHandler{
		mu:      console.mu,
		w:       opts.Console,
		min:     slog.LevelError,
		layout:  consoleTimeLayout,
		colored: colored,
	}

	return &Logs{
		App: slog.New(fanout{
			newLineHandler(appFile, slog.LevelInfo, fileTimeLayout, false),
			console,
		}),
		Client: slog.New(fanout{
			newLineHandler(clientFile, slog.LevelInfo, fileTimeLayout, false),
			clientConsole,
		}),
		files: []*lumberjack.Logger{appFile, clientFile},
	}, nil
}

func newFile(path string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
	}
}

// Close flushes and closes both log files.
func (l *Logs) Close() error {
	var first error
	for _, f := range l.files {
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Discard returns loggers that drop everything. Used by tests and tools
// that do not want files on disk.
func Discard() *Logs {
	l := slog.New(slog.DiscardHandler)
	return &Logs{App: l, Client: l}
}
