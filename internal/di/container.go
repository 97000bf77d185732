package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/casalink/api/internal/platform/config"
	"github.com/casalink/api/internal/repositories"
	"github.com/casalink/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	Shortlists   services.ShortlistService
	HireRequests services.HireRequestService
	Contracts    services.ContractService
	Engagement   services.EngagementService
	System       services.SystemService
}

// Infrastructure carries cross-cutting collaborators that are constructed
// outside the container (transport clients, payment gateways, loggers).
type Infrastructure struct {
	Events   services.EngagementEventPublisher
	Payments services.UnlockPaymentVerifier
	Logger   *zap.Logger
}

// Container wires repositories, services, and shared infrastructure for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// NewContainer constructs the runtime dependencies. Production wiring will provide real
// implementations, while tests can supply in-memory registries.
func NewContainer(ctx context.Context, cfg config.Config, reg repositories.Registry, infra Infrastructure) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}

	svc, err := buildServices(ctx, reg, cfg, infra)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Services:     svc,
	}, nil
}

// Close releases resources such as repository clients, background workers, or caches.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(_ context.Context, reg repositories.Registry, cfg config.Config, infra Infrastructure) (Services, error) {
	var svc Services

	logger := infra.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	shortlistRepo := reg.Shortlists()
	requestRepo := reg.HireRequests()
	contractRepo := reg.Contracts()
	pairRepo := reg.Pairs()

	if shortlistRepo != nil {
		shortlistSvc, err := services.NewShortlistService(services.ShortlistServiceDeps{
			Shortlists:      shortlistRepo,
			Events:          infra.Events,
			Payments:        infra.Payments,
			Clock:           time.Now,
			Logger:          zapEventLogger(logger.Named("shortlist")),
			LockDuration:    cfg.Shortlist.LockDuration,
			LockMaxDuration: cfg.Shortlist.LockMaxDuration,
			RequirePayment:  cfg.Features.RequireUnlockPayment,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build shortlist service: %w", err)
		}
		svc.Shortlists = shortlistSvc
	}

	if requestRepo != nil {
		requestSvc, err := services.NewHireRequestService(services.HireRequestServiceDeps{
			Requests:     requestRepo,
			Shortlists:   shortlistRepo,
			Events:       infra.Events,
			Clock:        time.Now,
			Logger:       zapEventLogger(logger.Named("hire_request")),
			ResponseTTL:  cfg.Requests.ResponseTTL,
			LockDuration: cfg.Shortlist.LockDuration,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build hire request service: %w", err)
		}
		svc.HireRequests = requestSvc
	}

	if contractRepo != nil && requestRepo != nil {
		contractSvc, err := services.NewContractService(services.ContractServiceDeps{
			Contracts:  contractRepo,
			Requests:   requestRepo,
			Shortlists: shortlistRepo,
			Events:     infra.Events,
			Clock:      time.Now,
			Logger:     zapEventLogger(logger.Named("contract")),
		})
		if err != nil {
			return Services{}, fmt.Errorf("build contract service: %w", err)
		}
		svc.Contracts = contractSvc
	}

	if pairRepo != nil && shortlistRepo != nil && requestRepo != nil {
		engagementSvc, err := services.NewEngagementService(services.EngagementServiceDeps{
			Pairs:      pairRepo,
			Shortlists: shortlistRepo,
			Requests:   requestRepo,
			Clock:      time.Now,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build engagement service: %w", err)
		}
		svc.Engagement = engagementSvc
	}

	if healthRepo := reg.Health(); healthRepo != nil {
		systemSvc, err := services.NewSystemService(services.SystemServiceDeps{
			HealthRepository: healthRepo,
			Clock:            time.Now,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build system service: %w", err)
		}
		svc.System = systemSvc
	}

	return svc, nil
}

func zapEventLogger(logger *zap.Logger) func(ctx context.Context, event string, fields map[string]any) {
	return func(_ context.Context, event string, fields map[string]any) {
		zFields := make([]zap.Field, 0, len(fields)+1)
		zFields = append(zFields, zap.String("event", event))
		for k, v := range fields {
			zFields = append(zFields, zap.Any(k, v))
		}
		logger.Debug("service log", zFields...)
	}
}
