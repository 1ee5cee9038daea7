package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/lexandro/buildwatch/classify"
	"github.com/lexandro/buildwatch/config"
	"github.com/lexandro/buildwatch/copytask"
	"github.com/lexandro/buildwatch/fscache"
	"github.com/lexandro/buildwatch/ignore"
	"github.com/lexandro/buildwatch/index"
	"github.com/lexandro/buildwatch/listener"
	"github.com/lexandro/buildwatch/rebuild"
	"github.com/lexandro/buildwatch/server"
	"github.com/lexandro/buildwatch/tools"
	"github.com/lexandro/buildwatch/watcher"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type sessionOptions struct {
	withIndex bool
	serveMCP  bool
	noColor   bool
	stdout    io.Writer
	stderr    io.Writer
	// extra builders run after the built-in ones.
	builders []rebuild.Builder
}

// session wires the event source, listener, cache and build queue for one root.
type session struct {
	cfg       config.Config
	opts      sessionOptions
	logger    *slog.Logger
	startTime time.Time

	ignore   *ignore.Matcher
	cache    *fscache.Cache
	index    *index.SourceIndex
	queue    *rebuild.Queue
	listener *listener.Listener
	watcher  *watcher.Watcher
}

func newSession(cfg config.Config, opts sessionOptions, logger *slog.Logger) (*session, error) {
	s := &session{cfg: cfg, opts: opts, logger: logger, startTime: time.Now()}
	if s.opts.stdout == nil {
		s.opts.stdout = io.Discard
	}
	if s.opts.stderr == nil {
		s.opts.stderr = io.Discard
	}

	s.ignore = ignore.NewMatcher(ignore.MatcherOptions{
		RootDir:        cfg.RootDir,
		CustomPatterns: cfg.Exclude,
	})
	s.cache = fscache.New(fscache.Options{
		Ignore:          s.ignore,
		MaxContentBytes: cfg.MaxFileSize,
		Logger:          logger,
	})

	copyTasks, err := copytask.NewMatcher(filepath.ToSlash(cfg.RootDir), cfg.CopyTasks)
	if err != nil {
		return nil, fmt.Errorf("copy tasks: %w", err)
	}

	builders := rebuild.Multi{}
	if opts.withIndex {
		s.index, err = index.NewSourceIndex(index.Options{
			RootDir:     cfg.RootDir,
			Reader:      s.cache,
			Ignore:      s.ignore,
			MaxFileSize: cfg.MaxFileSize,
			Logger:      logger,
			Filter:      classify.IsRelevantFile,
		})
		if err != nil {
			return nil, err
		}
		builders = append(builders, s.index)
	}
	builders = append(builders, rebuild.NewPrinter(s.opts.stdout, cfg.RootDir, opts.noColor))
	if cfg.BuildCommand != "" {
		cmd, err := rebuild.NewCommandBuilder(cfg.BuildCommand, cfg.RootDir, s.opts.stdout, s.opts.stderr, logger)
		if err != nil {
			s.closeIndex()
			return nil, err
		}
		builders = append(builders, cmd)
	}
	builders = append(builders, opts.builders...)
	s.queue = rebuild.NewQueue(builders, logger)

	s.listener, err = listener.New(listener.Config{
		ConfigPath: filepath.ToSlash(cfg.BuildConfig),
		RootDir:    filepath.ToSlash(cfg.RootDir),
		Logger:     logger,
		CopyTasks:  copyTasks,
		Delay:      cfg.Delay,
	}, s.cache, s.queue)
	if err != nil {
		s.closeIndex()
		return nil, err
	}

	s.watcher, err = watcher.NewWatcher(cfg.RootDir, s.ignore, logger)
	if err != nil {
		s.closeIndex()
		return nil, fmt.Errorf("starting file watcher: %w", err)
	}
	return s, nil
}

// Run blocks until ctx is cancelled or, in MCP mode, the client disconnects.
func (s *session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.queue.Start(ctx)

	if s.index != nil {
		result, err := s.index.Reindex(ctx)
		if err != nil {
			return fmt.Errorf("initial indexing: %w", err)
		}
		s.logger.Info("initial indexing complete",
			"files", result.Files,
			"totalSize", result.Bytes,
			"duration", result.Duration,
		)
	}

	sources := []listener.Source{s.watcher}
	if s.index != nil && s.cfg.ReconcileInterval > 0 {
		sources = append(sources, &reconciler{
			rootDir:  s.cfg.RootDir,
			index:    s.index,
			ignore:   s.ignore,
			interval: s.cfg.ReconcileInterval,
			logger:   s.logger,
		})
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.listener.Subscribe(ctx, listener.Merge(sources...))
	}()
	s.logger.Info("watching", "root", s.cfg.RootDir, "dirs", s.watcher.WatchedDirCount())

	var err error
	if s.opts.serveMCP {
		s.logger.Info("MCP server starting on stdio")
		err = s.mcpServer().Run(ctx, &mcp.StdioTransport{})
		cancel()
	}
	<-done
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("MCP server: %w", err)
	}
	return ctx.Err()
}

func (s *session) mcpServer() *mcp.Server {
	h := server.Handlers{
		Status: &tools.StatusHandler{
			Listener:  s.listener,
			Queue:     s.queue,
			Cache:     s.cache,
			Watcher:   s.watcher,
			Index:     s.index,
			StartTime: s.startTime,
			RootDir:   s.cfg.RootDir,
			Logger:    s.logger,
		},
		Rebuild: &tools.RebuildHandler{Trigger: s.queue, Logger: s.logger},
	}
	if s.index != nil {
		h.Search = &tools.SearchHandler{Index: s.index, Logger: s.logger}
		h.Files = &tools.FilesHandler{Index: s.index, Logger: s.logger}
		h.Read = &tools.ReadHandler{Index: s.index, Logger: s.logger}
	}
	return server.Setup(h)
}

// Close stops scheduling first so no cycle fires into a closed queue.
func (s *session) Close() {
	s.listener.Close()
	if err := s.watcher.Close(); err != nil {
		s.logger.Warn("closing watcher", "error", err)
	}
	s.queue.Close()
	s.closeIndex()
}

func (s *session) closeIndex() {
	if s.index == nil {
		return
	}
	if err := s.index.Close(); err != nil {
		s.logger.Warn("closing index", "error", err)
	}
}
