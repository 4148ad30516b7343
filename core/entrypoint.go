package core

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"reflect"
	"runtime"
	"time"

	"github.com/encodeous/dvhop/perf"
	"github.com/encodeous/dvhop/state"
	"github.com/encodeous/tint"
	"github.com/google/uuid"
	slogmulti "github.com/samber/slog-multi"
)

// LogSink hands out loggers that share a console and an optional log file.
type LogSink struct {
	RunId       string
	level       slog.Level
	console     io.Writer
	file        *os.File
	fileHandler slog.Handler
}

func NewLogSink(level slog.Level, console io.Writer, logPath string) (*LogSink, error) {
	sink := &LogSink{
		RunId:   uuid.NewString(),
		level:   level,
		console: console,
	}
	if logPath != "" {
		err := os.MkdirAll(path.Dir(logPath), 0700)
		if err != nil {
			return nil, err
		}
		f, err := os.OpenFile(logPath, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0700)
		if err != nil {
			return nil, err
		}
		sink.file = f
		sink.fileHandler = slog.NewTextHandler(f, &slog.HandlerOptions{Level: level}).
			WithAttrs([]slog.Attr{slog.String("run", sink.RunId)})
	}
	return sink, nil
}

// Logger returns a logger whose console lines are prefixed with prefix.
func (l *LogSink) Logger(prefix string) *slog.Logger {
	handlers := make([]slog.Handler, 0)
	handlers = append(handlers,
		tint.NewHandler(l.console, &tint.Options{
			Level:        l.level,
			AddSource:    false,
			CustomPrefix: prefix,
			ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
				if attr.Key == "time" {
					return slog.Attr{}
				}
				return attr
			},
		}))
	if l.fileHandler != nil {
		handlers = append(handlers, l.fileHandler.WithAttrs([]slog.Attr{slog.String("node", prefix)}))
	}
	return slog.New(slogmulti.Fanout(handlers...))
}

func (l *LogSink) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// StartNode initialises the modules of a node. It must run on the node's event loop.
func StartNode(s *state.State) error {
	s.Log.Debug("init modules")
	for _, module := range s.Modules {
		if err := module.Init(s); err != nil {
			return fmt.Errorf("init %T: %w", module, err)
		}
	}
	s.Log.Debug("init modules complete")
	return nil
}

// RunDispatch runs a dispatched task on the node. An error cancels the node.
func RunDispatch(s *state.State, fun func(*state.State) error) error {
	start := time.Now()
	err := fun(s)
	if err != nil {
		s.Log.Error("error occurred during dispatch: ", "error", err)
		s.Cancel(err)
	}
	elapsed := time.Since(start)
	perf.DispatchLatency.Add(float64(elapsed.Microseconds()))
	perf.EventsPerSecond.Add(1)
	if elapsed > state.SlowDispatch {
		s.Log.Warn("dispatch took a long time!", "fun", runtime.FuncForPC(reflect.ValueOf(fun).Pointer()).Name(), "elapsed", elapsed)
	}
	return err
}

func Stop(s *state.State) {
	if s.Stopping.Swap(true) {
		return // don't stop twice
	}
	s.Cancel(context.Canceled)
	s.Log.Debug("cleaning up modules")
	for _, module := range s.Modules {
		err := module.Cleanup(s)
		if err != nil {
			s.Log.Error("error occurred during Stop: ", "module", fmt.Sprintf("%T", module), "error", err)
		}
	}
	s.Log.Debug("stopped", "reason", context.Cause(s.Context))
}
