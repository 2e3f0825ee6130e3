// log/log.go
// Copyright(c) 2025 skypilot contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

type Logger struct {
	*slog.Logger
	LogFile string
	LogDir  string
	Start   time.Time
}

// New returns a Logger that writes JSON records to a rotating file in
// dir. If dir is empty, the user's config directory is used. Headless
// runs keep more history since there's nobody watching a window.
func New(headless bool, level string, dir string) *Logger {
	if dir == "" {
		var err error
		dir, err = os.UserConfigDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Unable to find user config dir: %v", err)
			dir = "."
		}
		dir = filepath.Join(dir, "Skypilot")
	}

	w := &lumberjack.Logger{
		Filename:   filepath.Join(dir, "skypilot.slog"),
		MaxSize:    32, // MB
		MaxBackups: 1,
	}
	if headless {
		w.MaxSize = 64
		w.MaxAge = 14
		w.MaxBackups = 0
		w.Compress = true
	}
	if level == "debug" {
		w.MaxSize = 512
	}

	l := newLogger(w, level)
	l.LogFile = w.Filename
	l.LogDir = dir

	// Start out the logs with some basic information about the system
	// we're running on and the build that's being used.
	l.Info("Hello logging", slog.Time("start", time.Now()))
	l.Info("System information",
		slog.String("GOARCH", runtime.GOARCH),
		slog.String("GOOS", runtime.GOOS),
		slog.Int("NumCPUs", runtime.NumCPU()),
		slog.Bool("race", RaceEnabled))

	var deps, settings []any
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, dep := range bi.Deps {
			deps = append(deps, slog.String(dep.Path, dep.Version))
			if dep.Replace != nil {
				deps = append(deps, slog.String("Replacement "+dep.Replace.Path, dep.Replace.Version))
			}
		}
		for _, setting := range bi.Settings {
			settings = append(settings, slog.String(setting.Key, setting.Value))
		}

		l.Info("Build",
			slog.String("Go version", bi.GoVersion),
			slog.String("Path", bi.Path),
			slog.Group("Dependencies", deps...),
			slog.Group("Settings", settings...))
	}

	return l
}

// NewWriter returns a Logger that writes to the given io.Writer; it's
// mostly useful for tests that want to inspect what was logged.
func NewWriter(w io.Writer, level string) *Logger {
	return newLogger(w, level)
}

func newLogger(w io.Writer, level string) *Logger {
	lvl := slog.LevelInfo
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info", "":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		fmt.Fprintf(os.Stderr, "%s: invalid log level", level)
	}

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	return &Logger{
		Logger: slog.New(h),
		Start:  time.Now(),
	}
}

// The leveled methods below add the caller's stack to each record. They
// accept a nil *Logger: debug and info records are dropped, while warnings
// and errors go to the default slog logger so they aren't lost.
func (l *Logger) Debug(msg string, args ...any) { l.emit(slog.LevelDebug, msg, args) }
func (l *Logger) Info(msg string, args ...any)  { l.emit(slog.LevelInfo, msg, args) }
func (l *Logger) Warn(msg string, args ...any)  { l.emit(slog.LevelWarn, msg, args) }
func (l *Logger) Error(msg string, args ...any) { l.emit(slog.LevelError, msg, args) }

// The f variants format msg with args and log it without attributes.
func (l *Logger) Debugf(msg string, args ...any) { l.emitf(slog.LevelDebug, msg, args) }
func (l *Logger) Infof(msg string, args ...any)  { l.emitf(slog.LevelInfo, msg, args) }
func (l *Logger) Warnf(msg string, args ...any)  { l.emitf(slog.LevelWarn, msg, args) }
func (l *Logger) Errorf(msg string, args ...any) { l.emitf(slog.LevelError, msg, args) }

func (l *Logger) enabled(level slog.Level) bool {
	if l == nil {
		return level >= slog.LevelWarn
	}
	return l.Logger.Enabled(context.Background(), level)
}

func (l *Logger) emitf(level slog.Level, msg string, args []any) {
	if l.enabled(level) {
		l.write(level, fmt.Sprintf(msg, args...), nil)
	}
}

func (l *Logger) emit(level slog.Level, msg string, args []any) {
	if l.enabled(level) {
		l.write(level, msg, args)
	}
}

// write is always called as Method -> emit[f] -> write, which fixes how
// many frames to skip.
func (l *Logger) write(level slog.Level, msg string, args []any) {
	args = append([]any{slog.Any("callstack", callstack(nil, 5))}, args...)
	if l == nil {
		slog.Log(context.Background(), level, msg, args...)
	} else {
		l.Logger.Log(context.Background(), level, msg, args...)
	}
}

func (l *Logger) With(args ...any) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{
		Logger:  l.Logger.With(args...),
		LogFile: l.LogFile,
		LogDir:  l.LogDir,
		Start:   l.Start,
	}
}

// CatchAndReportCrash should be deferred at the top of main and of any
// long-running goroutine. It logs the panic and writes a crash report next
// to the log file before returning the recovered value.
func (l *Logger) CatchAndReportCrash() any {
	// Janky way to check if we're running under the debugger.
	if dlv, ok := os.LookupEnv("_"); ok && strings.HasSuffix(dlv, "/dlv") {
		return nil
	}

	err := recover()
	if err != nil {
		l.Errorf("Crashed: %v", err)

		report := fmt.Sprintf("Crashed: %v\n", err)
		report += "Sys: " + runtime.GOARCH + "/" + runtime.GOOS + "\n"

		if bi, ok := debug.ReadBuildInfo(); ok {
			for _, setting := range bi.Settings {
				report += setting.Key + ": " + setting.Value + "\n"
			}
		}
		report += string(debug.Stack())

		fmt.Println(report)

		if l != nil && l.LogDir != "" {
			fn := filepath.Join(l.LogDir, "crash-"+time.Now().Format(time.RFC3339)+".txt")
			_ = os.WriteFile(fn, []byte(report), 0o600)
		}
	}

	return err
}
