// Package service provides sample persistence and the bounded sampling pass
package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"datalens/internal/core/schema"
	perr "datalens/internal/platform/errors"
	"datalens/internal/platform/logger"
	ptime "datalens/internal/platform/time"
	"datalens/internal/services/samples/repo"
)

// Service implements domain.WriterPort and domain.QueryPort
type Service struct {
	storage *repo.CH
	log     logger.Logger
	now     func() time.Time
}

// New constructs the samples service with a required CH repo
func New(storage *repo.CH) *Service {
	return &Service{
		storage: storage,
		log:     *logger.Named("samples"),
		now:     ptime.NowUTC,
	}
}

// Write implements domain.WriterPort
func (s *Service) Write(ctx context.Context, sample schema.Sample) error {
	if sample.Collection == "" {
		return perr.New(perr.ErrorCodeInvalidArgument, "samples: collection is required")
	}
	if sample.ScanRunID == uuid.Nil {
		return perr.New(perr.ErrorCodeInvalidArgument, "samples: scan run id is required")
	}
	if sample.CapturedAt.IsZero() {
		sample.CapturedAt = s.now().UTC()
	}
	return s.storage.Write(ctx, sample)
}

// Latest implements domain.QueryPort
func (s *Service) Latest(ctx context.Context, collection string) (schema.Sample, bool, error) {
	return s.storage.Latest(ctx, collection)
}

// ForRun implements domain.QueryPort
func (s *Service) ForRun(ctx context.Context, collection string, runID uuid.UUID) (schema.Sample, bool, error) {
	return s.storage.ForRun(ctx, collection, runID)
}
