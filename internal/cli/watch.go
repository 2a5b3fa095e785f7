package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/snc/internal/engine"
)

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <file>...",
		Short: "Recompile documents whenever they are saved",
		Long: `Compile each file once, then watch it and compile a new revision every
time it is written. Saves that arrive while a compile is running are
coalesced: only the latest text of each document is compiled next.

Press Ctrl-C to stop.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(rootOpts, args, cmd)
		},
	}
	return cmd
}

func runWatch(opts *RootOptions, files []string, cmd *cobra.Command) error {
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}
	ctx := cmd.Context()

	s, err := openStack(ctx, opts, cmd)
	if err != nil {
		return out.Fail(ExitCommandError, CodeConfig, "failed to start", err)
	}
	defer s.Close()

	dw, err := newDocumentWatcher(files, s.engine, s.logger)
	if err != nil {
		return out.Fail(ExitCommandError, CodeInput, "failed to watch documents", err)
	}
	defer dw.Close()

	for path := range dw.names {
		dw.submit(path)
	}

	done := make(chan error, 1)
	go func() {
		done <- s.engine.Run(ctx, updateHandler(out, opts.Verbose))
	}()

	if !out.JSON() {
		fmt.Fprintf(cmd.OutOrStdout(), "Watching %d document(s). Press Ctrl-C to stop.\n", len(dw.names))
	}
	dw.loop(ctx)

	s.engine.Stop()
	if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "engine error", err)
	}
	s.logger.Info("watch stopped")
	return nil
}

// updateHandler prints each finished update: text summaries, or one JSON
// response per line.
func updateHandler(out *OutputFormatter, verbose bool) engine.Handler {
	enc := json.NewEncoder(out.Writer)
	return func(name string, res *engine.UpdateResult, err error) {
		if out.JSON() {
			resp := CLIResponse{Status: "ok", Data: res}
			if err != nil {
				resp = CLIResponse{Status: "error", Error: &CLIError{Code: CodeFailed, Message: err.Error(), Details: res}}
			}
			_ = enc.Encode(resp)
			return
		}
		if err != nil {
			fmt.Fprintf(out.Writer, "✗ %s\n  %v\n", name, err)
			return
		}
		writeUpdateText(out.Writer, res, verbose)
	}
}

// documentWatcher submits a new revision whenever a watched file is
// written. Parent directories are watched so editors that replace files
// on save are seen too.
type documentWatcher struct {
	watcher *fsnotify.Watcher
	engine  *engine.Engine
	logger  *zap.Logger
	names   map[string]string // absolute path -> document name
}

func newDocumentWatcher(files []string, e *engine.Engine, logger *zap.Logger) (*documentWatcher, error) {
	if err := checkDocumentNames(files); err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	dw := &documentWatcher{watcher: fw, engine: e, logger: logger, names: make(map[string]string)}

	dirs := make(map[string]bool)
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			fw.Close()
			return nil, err
		}
		if _, err := os.Stat(abs); err != nil {
			fw.Close()
			return nil, err
		}
		dw.names[abs] = documentName(abs)
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := fw.Add(dir); err != nil {
			fw.Close()
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
		logger.Debug("watching directory", zap.String("dir", dir))
	}
	return dw, nil
}

func (w *documentWatcher) Close() error {
	return w.watcher.Close()
}

// loop forwards file events until ctx is done or the watcher fails.
func (w *documentWatcher) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if _, watched := w.names[filepath.Clean(event.Name)]; !watched {
				continue
			}
			w.logger.Debug("document changed",
				zap.String("file", event.Name),
				zap.String("operation", event.Op.String()))
			w.submit(filepath.Clean(event.Name))
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("file watcher error", zap.Error(err))
		}
	}
}

func (w *documentWatcher) submit(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		w.logger.Warn("document not readable", zap.String("file", path), zap.Error(err))
		return
	}
	if !w.engine.Submit(w.names[path], string(data)) {
		w.logger.Debug("update dropped: engine stopped", zap.String("file", path))
	}
}
