package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/five82/fieldtech/internal/apperr"
	"github.com/five82/fieldtech/internal/attachments"
	"github.com/five82/fieldtech/internal/backend"
	"github.com/five82/fieldtech/internal/config"
	"github.com/five82/fieldtech/internal/connectivity"
	"github.com/five82/fieldtech/internal/logging"
	"github.com/five82/fieldtech/internal/metrics"
	"github.com/five82/fieldtech/internal/queue"
	"github.com/five82/fieldtech/internal/session"
	"github.com/five82/fieldtech/internal/state"
	"github.com/five82/fieldtech/internal/syncer"
	"github.com/five82/fieldtech/internal/ui"
)

// Options configure the fieldtech application.
type Options struct {
	ConfigPath string
	// Offline forces offline mode regardless of config.
	Offline bool
	// LogToStderr sends logs to stderr instead of the log file.
	LogToStderr bool
}

// Env is the wired application shared by the TUI and the CLI commands.
type Env struct {
	Config      config.Config
	Logger      *logrus.Logger
	Client      *backend.Client
	Auth        *session.Holder
	Cache       *state.Store
	Engine      *syncer.Engine
	Monitor     *connectivity.Monitor
	Attachments *attachments.Service
	Metrics     *metrics.Metrics

	// Warnings collects recoverable startup problems (an unreadable queue or
	// session file) for the UI to show.
	Warnings []error

	logCloser io.Closer
}

// Open loads configuration and builds every component. Recoverable problems
// end up in Env.Warnings; anything else is returned.
func Open(opts Options) (*Env, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if opts.Offline {
		cfg.Offline = true
	}

	logOpts := logging.Options{Level: cfg.LogLevel, Path: cfg.LogPath()}
	if opts.LogToStderr {
		logOpts.Path = ""
	}
	logger, closer, err := logging.New(logOpts)
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}

	env := &Env{Config: cfg, Logger: logger, logCloser: closer, Metrics: metrics.New()}

	env.Client, err = backend.NewClient(cfg.APIURL, cfg.AnonKey, backend.WithTimeout(cfg.RequestTimeout))
	if err != nil {
		_ = closer.Close()
		return nil, fmt.Errorf("init backend client: %w", err)
	}

	env.Auth, err = session.NewHolder(session.NewStore(cfg.SessionPath()))
	if err != nil {
		logger.WithError(err).Warn("saved session unreadable, signing out")
		env.Warnings = append(env.Warnings, err)
	}

	env.Cache = &state.Store{}
	env.Engine, err = syncer.New(queue.NewStore(cfg.QueuePath()), env.Client, env.Cache, syncer.Options{
		QueueOnUnauthorized: cfg.QueueOnUnauthorized,
		Logger:              logger,
		Metrics:             env.Metrics,
	})
	if err != nil {
		env.Warnings = append(env.Warnings, err)
	}

	env.Monitor = connectivity.NewMonitor(env.Client, logger)
	env.Monitor.SetForcedOffline(cfg.Offline)

	env.Attachments, err = attachments.NewService(env.Client, attachments.Options{
		MaxDimension: cfg.MaxPhotoDimension,
		Logger:       logger,
	})
	if err != nil {
		_ = closer.Close()
		return nil, fmt.Errorf("init attachments: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"api_url":  env.Client.BaseURL(),
		"data_dir": cfg.DataDir,
		"offline":  cfg.Offline,
		"pending":  env.Engine.PendingCount(),
	}).Info("fieldtech started")
	return env, nil
}

// Close releases files and caches. It is safe to call more than once.
func (e *Env) Close() error {
	if e == nil {
		return nil
	}
	if e.Attachments != nil {
		e.Attachments.Close()
		e.Attachments = nil
	}
	if e.logCloser != nil {
		closer := e.logCloser
		e.logCloser = nil
		return closer.Close()
	}
	return nil
}

// Token returns the signed-in technician's bearer token.
func (e *Env) Token() (string, error) {
	tok, ok := e.Auth.Token()
	if !ok {
		return "", apperr.New(apperr.Unauthorized, "not signed in; run `fieldtech login`")
	}
	return tok, nil
}

// Online probes the backend once and reports whether writes should be tried.
func (e *Env) Online(ctx context.Context) bool {
	online, _ := e.Monitor.Check(ctx)
	return online
}

// SignOutOnUnauthorized clears the saved session when err is a 401.
func (e *Env) SignOutOnUnauthorized(err error) {
	if !apperr.IsUnauthorized(err) {
		return
	}
	if clearErr := e.Auth.Clear(); clearErr != nil {
		e.Logger.WithError(clearErr).Warn("could not remove saved session")
	}
}

// Run opens the application and blocks in the TUI until the user quits or
// ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	env, err := Open(opts)
	if err != nil {
		return err
	}
	defer func() { _ = env.Close() }()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if addr := env.Config.MetricsAddr; addr != "" {
		go func() {
			if err := env.Metrics.Serve(ctx, addr, env.Logger); err != nil {
				env.Logger.WithError(err).Error("metrics server stopped")
			}
		}()
	}

	poller := NewPoller(env.Engine, env.Monitor, env.Auth, env.Config.PollInterval, env.Logger)
	poller.OnUnauthorized = env.SignOutOnUnauthorized
	poller.Start(ctx)

	err = ui.Run(ui.Options{
		Context:      ctx,
		Engine:       env.Engine,
		Cache:        env.Cache,
		Monitor:      env.Monitor,
		Auth:         env.Auth,
		SignIn:       env.Client,
		Attachments:  env.Attachments,
		LogPath:      env.Config.LogPath(),
		ThemeName:    env.Config.Theme,
		PrefsPath:    env.Config.PrefsPath(),
		RefreshEvery: time.Second,
		Warnings:     env.Warnings,
		Logger:       env.Logger,
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
