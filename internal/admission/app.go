// Package admission wires application dependencies.
package admission

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Application holds core components for the service.
type Application struct {
	Config       *Config
	Tiers        *TierTable
	Costs        *EndpointCostTable
	Registry     *PrincipalRegistry
	Ledger       *QuotaLedger
	ViolationLog *ViolationLog
	Recorder     *BufferedViolationRecorder
	Evaluator    *Evaluator
	AdminHandler *AdminHandler
	Sweeper      *Sweeper

	ready         atomic.Bool
	httpTransport *HTTPTransport
	logger        Logger
	metrics       Metrics
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}

// NewApplication validates configuration and prepares the application.
func NewApplication(cfg *Config) (*Application, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = NewZerologLogger(os.Stderr)
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NewPrometheusMetrics()
	}
	if cfg.EnableAuth && cfg.AdminToken == "" {
		return nil, Wrap(CodeConfiguration, "admin auth enabled without a token", nil)
	}

	tiers, err := NewTierTable(cfg.TierOverrides)
	if err != nil {
		return nil, err
	}
	costs, err := NewEndpointCostTable(cfg.EndpointCosts, tiers)
	if err != nil {
		return nil, err
	}

	registry := NewPrincipalRegistry(tiers, cfg.Registry, time.Now)
	ledger := NewQuotaLedger(cfg.Registry.Shards)
	violations := NewViolationLog(cfg.ViolationRetention)
	recorder := NewBufferedViolationRecorder(violations, cfg.ViolationBuffer)
	evaluator := NewEvaluator(registry, costs, ledger, recorder, metrics, time.Now)
	admin := NewAdminHandler(registry, evaluator, violations, cfg.ViolationTopN, time.Now, logger, metrics)
	sweeper := NewSweeper(registry, ledger, metrics, cfg.SweepInterval)

	app := &Application{
		Config:       cfg,
		Tiers:        tiers,
		Costs:        costs,
		Registry:     registry,
		Ledger:       ledger,
		ViolationLog: violations,
		Recorder:     recorder,
		Evaluator:    evaluator,
		AdminHandler: admin,
		Sweeper:      sweeper,
		logger:       logger,
		metrics:      metrics,
	}

	if cfg.EnableHTTP {
		transport := NewHTTPTransport(cfg.HTTPListenAddr, app.Ready)
		if err := transport.ServeAdmission(app.Evaluator); err != nil {
			return nil, err
		}
		if err := transport.ServeAdmin(app.AdminHandler); err != nil {
			return nil, err
		}
		transport.logger = logger
		transport.enableAuth = cfg.EnableAuth
		transport.adminToken = cfg.AdminToken
		transport.maxBodyBytes = cfg.MaxBodyBytes
		transport.readTimeout = cfg.HTTPReadTimeout
		transport.writeTimeout = cfg.HTTPWriteTimeout
		transport.idleTimeout = cfg.HTTPIdleTimeout
		if prom, ok := metrics.(*PrometheusMetrics); ok {
			transport.promRegistry = prom.Registry()
		}
		app.httpTransport = transport
	}

	return app, nil
}

// Start begins background work for the application.
func (app *Application) Start(ctx context.Context) error {
	if app == nil {
		return errors.New("application is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	app.cancel = cancel

	if app.Recorder != nil {
		app.wg.Add(1)
		go func() {
			defer app.wg.Done()
			_ = app.Recorder.Start(ctx)
		}()
	}
	if app.Sweeper != nil {
		app.wg.Add(1)
		go func() {
			defer app.wg.Done()
			_ = app.Sweeper.Start(ctx)
		}()
	}
	if app.httpTransport != nil {
		app.wg.Add(1)
		go func() {
			defer app.wg.Done()
			if err := app.httpTransport.Start(); err != nil {
				app.logger.Error("http transport stopped", map[string]any{"error": err.Error()})
			}
		}()
	}

	app.ready.Store(true)

	return nil
}

// Shutdown stops background work for the application.
func (app *Application) Shutdown(ctx context.Context) error {
	if app == nil {
		return errors.New("application is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	app.ready.Store(false)
	if app.httpTransport != nil {
		_ = app.httpTransport.Shutdown(ctx)
	}
	if app.cancel != nil {
		app.cancel()
	}
	done := make(chan struct{})
	go func() {
		app.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ready reports whether the application has completed startup.
func (app *Application) Ready() bool {
	if app == nil {
		return false
	}
	return app.ready.Load()
}
