package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"datalens/internal/core/schema"
	"datalens/internal/core/shape"
	"datalens/internal/platform/logger"
	ptime "datalens/internal/platform/time"
	"datalens/internal/services/samples/domain"
)

// SamplerConfig bounds the sampling pass
type SamplerConfig struct {
	// Concurrency is the semaphore width against the data store; sampling
	// must never threaten its operational capacity
	Concurrency int
}

// Sampler draws privacy-safe shapes for resolved collections. Each
// collection isolates its own failure: a degraded pass records an empty
// sample and the run continues
type Sampler struct {
	source     domain.Source
	writer     domain.WriterPort
	classifier shape.Classifier
	cfg        SamplerConfig
	log        logger.Logger

	now func() time.Time
}

// NewSampler constructs a sampling pass driver
func NewSampler(source domain.Source, writer domain.WriterPort, classifier shape.Classifier, cfg SamplerConfig) *Sampler {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 2
	}
	return &Sampler{
		source:     source,
		writer:     writer,
		classifier: classifier,
		cfg:        cfg,
		log:        *logger.Named("sampler"),
		now:        ptime.NowUTC,
	}
}

// SampleCollections implements domain.SamplerPort. Collections are sampled
// concurrently under the semaphore; cancellation stops new work while
// in-flight collections finish
func (s *Sampler) SampleCollections(ctx context.Context, runID uuid.UUID, collections []string) domain.SampleStats {
	names := dedupe(collections)
	if len(names) == 0 {
		return domain.SampleStats{}
	}

	known := s.knownCollections(ctx)

	var (
		mu    sync.Mutex
		stats domain.SampleStats
		wg    sync.WaitGroup
		sem   = make(chan struct{}, s.cfg.Concurrency)
	)
loop:
	for _, name := range names {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			break loop
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			defer func() { <-sem }()

			outcome := s.sampleOne(ctx, runID, name, known)
			mu.Lock()
			switch outcome {
			case outcomeSampled:
				stats.Sampled++
			case outcomeDegraded:
				stats.Degraded++
			case outcomeSkipped:
				stats.Skipped++
			}
			mu.Unlock()
		}(name)
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		s.log.Warn().Err(err).Msg("sampling cancelled before all collections started")
	}
	return stats
}

type outcome int

const (
	outcomeSampled outcome = iota
	outcomeDegraded
	outcomeSkipped
)

func (s *Sampler) sampleOne(ctx context.Context, runID uuid.UUID, name string, known map[string]bool) outcome {
	if known != nil && !known[name] {
		s.log.Debug().Str("collection", name).Msg("resolved collection absent from data store")
		return outcomeSkipped
	}

	sample := schema.Sample{
		Collection: name,
		ScanRunID:  runID,
		CapturedAt: s.now().UTC(),
	}

	docs, err := s.source.Sample(ctx, name)
	if err != nil {
		s.log.Warn().Str("collection", name).Err(err).Msg("sampling degraded")
		s.write(ctx, sample)
		return outcomeDegraded
	}
	sample.FieldShapes = shape.Reduce(docs, s.classifier)

	if !s.write(ctx, sample) {
		return outcomeDegraded
	}
	s.log.Debug().Str("collection", name).Int("fields", len(sample.FieldShapes)).Msg("collection sampled")
	return outcomeSampled
}

func (s *Sampler) write(ctx context.Context, sample schema.Sample) bool {
	if err := s.writer.Write(ctx, sample); err != nil {
		s.log.Warn().Str("collection", sample.Collection).Err(err).Msg("sample write failed")
		return false
	}
	return true
}

// knownCollections lists the store's collections for existence checks; a
// listing failure disables the check rather than the pass
func (s *Sampler) knownCollections(ctx context.Context) map[string]bool {
	names, err := s.source.Collections(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("listing collections failed, sampling without existence check")
		return nil
	}
	known := make(map[string]bool, len(names))
	for _, n := range names {
		known[n] = true
	}
	return known
}

func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
