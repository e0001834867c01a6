// Package app wires all radaemon subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects the
// receive pipeline and the HTTP surface, Run executes until the context is
// cancelled, and Shutdown tears everything down in order.
//
// For testing, inject mock collaborators via functional options. When an
// option is not provided, New builds real backends from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kv9n/radaemon/internal/config"
	"github.com/kv9n/radaemon/internal/observe"
	"github.com/kv9n/radaemon/internal/receiver"
	"github.com/kv9n/radaemon/internal/web"
	"github.com/kv9n/radaemon/pkg/audio"
	"github.com/kv9n/radaemon/pkg/modem"
	"github.com/kv9n/radaemon/pkg/modem/rade"
	"github.com/kv9n/radaemon/pkg/vocoder"
	"github.com/kv9n/radaemon/pkg/vocoder/fargan"
)

const (
	// captureRate is the modem's radio-side sample rate.
	captureRate = 8000

	// playbackRate matches the vocoder's native synthesis rate.
	playbackRate = 16000

	// shutdownTimeout bounds the HTTP drain on exit.
	shutdownTimeout = 10 * time.Second
)

// App owns the receive pipeline and the HTTP surface.
type App struct {
	cfg    *config.Config
	collab receiver.Collaborators
	met    *observe.Metrics

	rx  *receiver.Receiver
	web *web.Server

	// closers are called during Shutdown, after the pipeline is closed.
	closers []func() error

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithCollaborators injects pipeline collaborators instead of building real
// backends from the config.
func WithCollaborators(c receiver.Collaborators) Option {
	return func(a *App) { a.collab = c }
}

// WithMetrics overrides the metrics instance shared by the pipeline and the
// HTTP middleware.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.met = m }
}

// New creates an App by wiring the pipeline and HTTP server together. Real
// audio and engine backends are built from cfg unless collaborators were
// injected.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}
	if a.met == nil {
		a.met = observe.DefaultMetrics()
	}

	if a.collab.OpenSource == nil {
		if err := a.initBackends(); err != nil {
			return nil, fmt.Errorf("app: init backends: %w", err)
		}
	}

	a.rx = receiver.New(a.collab, receiver.WithMetrics(a.met))
	a.rx.SetGainDB(cfg.Audio.InputGainDB)

	webOpts := []web.Option{
		web.WithMetrics(a.met),
		web.WithCheckers(web.Checker{
			Name: "receiver",
			Check: func(context.Context) error {
				if !a.rx.Telemetry().Running() {
					return errors.New("receive worker not running")
				}
				return nil
			},
		}),
	}
	if cfg.Recording.Dir != "" {
		webOpts = append(webOpts, web.WithRecordingDir(cfg.Recording.Dir))
	}
	a.web = web.New(cfg.Server.ListenAddr, a.rx, webOpts...)

	return a, nil
}

// initBackends builds the real collaborator factories from the config: a WAV
// file or PortAudio capture source, a PortAudio playback sink, and the native
// modem and vocoder engines.
func (a *App) initBackends() error {
	var openSource func() (audio.Source, error)
	if file := a.cfg.Audio.WavFile; file != "" {
		openSource = func() (audio.Source, error) {
			return audio.NewFileSource(file, captureRate)
		}
	} else {
		if err := audio.Initialize(); err != nil {
			return err
		}
		a.closers = append(a.closers, audio.Terminate)
		device := a.cfg.Audio.InputDevice
		openSource = func() (audio.Source, error) {
			return audio.OpenCapture(device, captureRate)
		}
	}

	a.collab = receiver.Collaborators{
		OpenSource: openSource,
		OpenSink: func() (audio.Sink, error) {
			return audio.OpenPlayback(playbackRate)
		},
		OpenModem: func() (modem.Modem, error) {
			return rade.Open()
		},
		OpenVocoder: func() (vocoder.Vocoder, error) {
			return fargan.New(), nil
		},
	}
	return nil
}

// Receiver exposes the pipeline for tests and the main package.
func (a *App) Receiver() *receiver.Receiver { return a.rx }

// Run opens the pipeline, starts the receive worker and the HTTP server, and
// blocks until ctx is cancelled or a subsystem fails. The pipeline worker
// ending on its own (a drained input file) does not stop the application;
// the status surface stays available.
func (a *App) Run(ctx context.Context) error {
	if err := a.rx.Open(); err != nil {
		return err
	}
	if err := a.rx.Start(ctx); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	if a.cfg.Server.ListenAddr != "" {
		g.Go(a.web.Serve)
		g.Go(func() error {
			<-ctx.Done()
			drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := a.web.Shutdown(drainCtx); err != nil {
				slog.Warn("http shutdown", "err", err)
			}
			return ctx.Err()
		})
	} else {
		g.Go(func() error {
			<-ctx.Done()
			return ctx.Err()
		})
	}

	slog.Info("app running", "listen_addr", a.cfg.Server.ListenAddr)
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Shutdown tears down the pipeline and releases platform resources. Safe to
// call more than once.
func (a *App) Shutdown() error {
	var err error
	a.stopOnce.Do(func() {
		slog.Info("shutting down")
		err = a.rx.Close()
		for _, closer := range a.closers {
			if cerr := closer(); cerr != nil {
				slog.Warn("closer error", "err", cerr)
			}
		}
		slog.Info("shutdown complete")
	})
	return err
}
