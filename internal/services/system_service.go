package services

import (
	"context"
	"errors"
	"time"

	domain "github.com/casalink/api/internal/domain"
	"github.com/casalink/api/internal/repositories"
)

// BuildInfo captures runtime metadata exposed via health endpoints.
type BuildInfo struct {
	Version     string
	CommitSHA   string
	Environment string
	StartedAt   time.Time
}

// SystemServiceDeps bundles collaborators required to construct a system service.
type SystemServiceDeps struct {
	HealthRepository repositories.HealthRepository
	Clock            func() time.Time
}

type systemService struct {
	healthRepo repositories.HealthRepository
	clock      func() time.Time
}

var _ SystemService = (*systemService)(nil)

// NewSystemService assembles the system utility service providing readiness reports.
func NewSystemService(deps SystemServiceDeps) (SystemService, error) {
	if deps.HealthRepository == nil {
		return nil, errors.New("system service: health repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	return &systemService{
		healthRepo: deps.HealthRepository,
		clock: func() time.Time {
			return clock().UTC()
		},
	}, nil
}

func (s *systemService) HealthReport(ctx context.Context) (domain.SystemHealthReport, error) {
	if ctx == nil {
		return domain.SystemHealthReport{}, errors.New("system service: context is required")
	}

	checks, err := s.healthRepo.Check(ctx)
	if err != nil {
		return domain.SystemHealthReport{}, err
	}
	if checks == nil {
		checks = map[string]domain.SystemHealthCheck{}
	}

	return domain.SystemHealthReport{
		Status:      deriveStatus(checks),
		Checks:      checks,
		GeneratedAt: s.clock(),
	}, nil
}

func deriveStatus(checks map[string]domain.SystemHealthCheck) string {
	for _, check := range checks {
		if check.Status != domain.HealthStatusOK && check.Status != "" {
			return domain.HealthStatusDegraded
		}
	}
	return domain.HealthStatusOK
}
