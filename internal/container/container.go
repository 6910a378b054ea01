package container

import (
	"gomvdist/adapters/api"
	"gomvdist/adapters/genz"
	"gomvdist/app"
	"gomvdist/internal"
	"gomvdist/internal/config"
	"gomvdist/internal/errors"
	"gomvdist/internal/gate"
	"gomvdist/ports"
)

// Container holds all application dependencies
type Container struct {
	Config *config.Config
	Logger *internal.Logger

	// Routine is the single integration routine instance of the process.
	Routine ports.RoutinePort
	Gate    *gate.Gate

	DistributionService *app.DistributionService
}

// Option customizes container construction
type Option func(*Container)

// WithRoutine swaps the integration routine, e.g. for a recording stand-in
func WithRoutine(r ports.RoutinePort) Option {
	return func(c *Container) { c.Routine = r }
}

// WithLogger overrides the logger derived from the configuration
func WithLogger(l *internal.Logger) Option {
	return func(c *Container) { c.Logger = l }
}

// New creates a new dependency injection container
func New(cfg *config.Config, opts ...Option) (*Container, error) {
	if cfg == nil {
		return nil, errors.ConfigInvalid("config cannot be nil")
	}

	c := &Container{
		Config: cfg,
		Gate:   gate.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.Logger == nil {
		c.Logger = internal.NewLogger(internal.ParseLogLevel(cfg.LogLevel))
	}
	if c.Routine == nil {
		c.Routine = genz.New()
	}

	c.DistributionService = app.NewDistributionService(c.Routine,
		app.WithGate(c.Gate),
		app.WithLogger(c.Logger),
		app.WithDefaults(cfg.Integration),
		app.WithBatchWorkers(cfg.Batch.Workers),
	)

	c.Logger.Debug("container ready: max_evaluations=%d abs_tolerance=%g rel_tolerance=%g workers=%d",
		cfg.Integration.MaxEvaluations, cfg.Integration.AbsoluteTolerance,
		cfg.Integration.RelativeTolerance, cfg.Batch.Workers)

	return c, nil
}

// HTTPServer builds the HTTP adapter over the container's service
func (c *Container) HTTPServer() *api.Server {
	return api.NewServer(c.DistributionService, c.Logger)
}
