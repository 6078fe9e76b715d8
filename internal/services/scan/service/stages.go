package service

import (
	"context"
	"errors"
	"sort"
	"sync"

	"datalens/internal/adapters/gitrepo"
	"datalens/internal/core/extract"
	"datalens/internal/core/lang"
	"datalens/internal/core/parse"
	"datalens/internal/core/policy"
	"datalens/internal/core/relate"
	"datalens/internal/core/resolve"
	"datalens/internal/core/schema"
	"datalens/internal/modkit/scope"
	"datalens/internal/platform/logger"
	"datalens/internal/services/scan/domain"
)

// fileResult is one extraction unit's output. A skipped file carries no
// facts and only bumps the run's skip counter
type fileResult struct {
	path    string
	ext     extract.Extraction
	batch   schema.Batch
	skipped bool
}

// inference is everything the resolving stage hands to sampling and commit
type inference struct {
	edges       []schema.Edge
	collections []string
	seen        []schema.FactID
}

func (s *Service) plan(ctx context.Context, src domain.Source, pol *policy.Policy, run *schema.ScanRun, opts domain.Options) ([]string, error) {
	ctx = scope.WithStage(ctx, string(schema.StagePlanning))

	var (
		paths   []string
		removed []string
		err     error
	)
	if run.Mode == schema.ModeIncremental {
		paths, removed, err = s.planIncremental(ctx, src, run, opts)
	} else {
		paths, err = src.Files(ctx)
	}
	if err != nil {
		return nil, err
	}

	files := make([]string, 0, len(paths))
	for _, p := range paths {
		l := lang.Detect(p)
		if !l.Known() || !pol.AllowsLanguage(l) || !pol.Allows(p) {
			continue
		}
		files = append(files, p)
	}
	logger.C(ctx).Info().
		Str("repo", run.Repository).
		Str("commit", run.CommitSHA).
		Int("planned", len(files)).
		Int("listed", len(paths)).
		Int("removed", len(removed)).
		Msg("scan planned")
	return files, nil
}

// planIncremental diffs against the last successful run (or an explicit
// baseline). A missing or unknown baseline widens to the full tree rather
// than failing the run
func (s *Service) planIncremental(ctx context.Context, src domain.Source, run *schema.ScanRun, opts domain.Options) (changed, removed []string, err error) {
	log := logger.C(ctx)

	base := opts.BaselineSHA
	if base == "" {
		prior, ok, err := s.history.Baseline(ctx, run.Repository)
		if err != nil {
			return nil, nil, err
		}
		if ok {
			base = prior.CommitSHA
		}
	}
	if base == "" {
		log.Info().Msg("no successful baseline run, scanning the full tree")
		paths, err := src.Files(ctx)
		return paths, nil, err
	}

	changed, removed, err = src.Changed(ctx, base)
	if errors.Is(err, gitrepo.ErrBaseMissing) {
		log.Warn().Str("baseline", base).Msg("baseline commit not in repository, scanning the full tree")
		paths, ferr := src.Files(ctx)
		return paths, nil, ferr
	}
	if err != nil {
		return nil, nil, err
	}
	log.Debug().Str("baseline", base).Int("changed", len(changed)).Int("removed", len(removed)).Msg("incremental diff")
	return changed, removed, nil
}

func (s *Service) extract(ctx context.Context, src domain.Source, run *schema.ScanRun, files []string) ([]fileResult, error) {
	ctx = scope.WithStage(ctx, string(schema.StageExtracting))

	results := make([]fileResult, len(files))
	sem := make(chan struct{}, s.cfg.Workers)
	var wg sync.WaitGroup
loop:
	for i := range files {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			break loop
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = s.extractOne(ctx, src, run, files[i])
		}(i)
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	kept := make([]fileResult, 0, len(results))
	for _, r := range results {
		if r.skipped {
			run.FilesSkipped++
			continue
		}
		run.FilesScanned++
		kept = append(kept, r)
	}
	logger.C(ctx).Debug().Int("files", run.FilesScanned).Int("skipped", run.FilesSkipped).Msg("extraction finished")
	return kept, nil
}

func (s *Service) extractOne(ctx context.Context, src domain.Source, run *schema.ScanRun, path string) fileResult {
	r := fileResult{path: path}

	data, err := src.ReadFile(path)
	if err != nil {
		logger.C(ctx).Warn().Err(err).Str("file", path).Str("commit", run.CommitSHA).Msg("read failed, file skipped")
		r.skipped = true
		return r
	}
	res, err := s.parser.Parse(ctx, parse.File{Path: path, Language: lang.Detect(path), Content: data})
	if err != nil {
		logger.C(ctx).Warn().Err(err).Str("file", path).Str("commit", run.CommitSHA).Msg("parse failed, file skipped")
		r.skipped = true
		return r
	}
	r.ext = extract.Facts(res, extract.Meta{
		Repository: run.Repository,
		FilePath:   path,
		CommitSHA:  run.CommitSHA,
		CapturedAt: s.now().UTC(),
	})
	return r
}

// resolveAll binds every operation, seeds the relationship arena and builds
// the per-file commit batches
func (s *Service) resolveAll(ctx context.Context, pol *policy.Policy, run *schema.ScanRun, extracted []fileResult) (inference, error) {
	ctx = scope.WithStage(ctx, string(schema.StageResolving))
	log := logger.C(ctx)

	resolver := resolve.New(pol.HopLimit)
	arena := relate.NewArena()
	collections := make(map[string]bool)
	var out inference

	for i := range extracted {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		fr := &extracted[i]

		recs := make(map[string]schema.RecordShape, len(fr.ext.Records))
		for _, rec := range fr.ext.Records {
			recs[rec.Provenance.SymbolName] = rec
			arena.AddRecord(rec)
			out.seen = append(out.seen, rec.ID)
		}

		resolutions := make([]schema.Resolution, 0, len(fr.ext.Ops))
		for _, op := range fr.ext.Ops {
			var bound *schema.RecordShape
			if op.BoundTypeSymbol != "" {
				if rec, ok := recs[op.BoundTypeSymbol]; ok {
					bound = &rec
				}
			}
			res := resolver.Resolve(op, fr.ext.Scopes[op.Enclosing()], bound)
			if res.Method == schema.MethodUnresolved {
				run.Unresolved++
			}
			if res.Resolved() && res.Confidence >= pol.Sampler.MinConfidence {
				collections[res.Collection] = true
			}
			resolutions = append(resolutions, res)
			arena.AddOp(op, res)
			out.seen = append(out.seen, op.ID)
		}

		fr.batch = schema.Batch{
			Repository:  run.Repository,
			FilePath:    fr.path,
			CommitSHA:   run.CommitSHA,
			Records:     fr.ext.Records,
			Ops:         fr.ext.Ops,
			Resolutions: resolutions,
		}
	}

	res := arena.Infer(out.seen)
	out.edges = res.Edges
	run.LowConfEdges = len(res.Low)
	for _, e := range res.Low {
		log.Info().
			Str("from_id", e.From.String()).
			Str("to_id", e.To.String()).
			Str("kind", string(e.Kind)).
			Float64("confidence", e.Confidence).
			Msg("edge below confidence floor, reported only")
	}

	for name := range collections {
		out.collections = append(out.collections, name)
	}
	sort.Strings(out.collections)

	records, ops := arena.Size()
	log.Debug().
		Int("records", records).
		Int("ops", ops).
		Int("edges", len(out.edges)).
		Int("unresolved", run.Unresolved).
		Msg("resolution finished")
	return out, nil
}

// sample runs the bounded sampling pass. Store-level unavailability degrades
// to a skipped pass; it never fails the run
func (s *Service) sample(ctx context.Context, pol *policy.Policy, run *schema.ScanRun, collections []string) error {
	if run.Mode == schema.ModeIntegrity {
		return nil
	}
	if s.sampler == nil || !pol.Sampler.Enabled || len(collections) == 0 {
		logger.C(ctx).Debug().Int("collections", len(collections)).Msg("sampling skipped")
		return nil
	}
	ctx = scope.WithStage(ctx, string(schema.StageSampling))
	log := logger.C(ctx)

	sampler, release, err := s.sampler(ctx, pol)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn().Err(err).Msg("document store unavailable, sampling skipped")
		return nil
	}
	defer release()

	stats := sampler.SampleCollections(ctx, run.ID, collections)
	if err := ctx.Err(); err != nil {
		return err
	}
	log.Info().
		Int("sampled", stats.Sampled).
		Int("degraded", stats.Degraded).
		Int("skipped", stats.Skipped).
		Msg("sampling finished")
	return nil
}

// commit applies per-file batches. A batch whose conflict outlives the merge
// retry budget is dropped with a warning and counted as a skipped file; the
// run itself continues
func (s *Service) commit(ctx context.Context, pol *policy.Policy, run *schema.ScanRun, extracted []fileResult, inf inference) error {
	ctx = scope.WithStage(ctx, string(schema.StageCommitting))
	log := logger.C(ctx)

	if run.Mode == schema.ModeIntegrity {
		drifted, err := s.facts.FlagDrift(ctx, run.Repository, inf.seen)
		if err != nil {
			return err
		}
		run.Drifted = drifted
		if drifted > 0 {
			log.Warn().Int("drifted", drifted).Msg("facts no longer backed by source")
		}
		return nil
	}

	for i := range extracted {
		if err := ctx.Err(); err != nil {
			return err
		}
		fr := &extracted[i]
		if fr.batch.Empty() {
			continue
		}
		stats, err := s.facts.Merge(ctx, run.ID, fr.batch)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn().Err(err).Str("file", fr.path).Msg("file batch failed, facts for this file not committed")
			run.FilesScanned--
			run.FilesSkipped++
			continue
		}
		run.FactsAdded += stats.Added
	}

	if len(inf.edges) > 0 {
		if err := s.facts.MergeEdges(ctx, run.ID, inf.edges); err != nil {
			return err
		}
	}

	if run.Mode == schema.ModeFull {
		retired, err := s.facts.RecordMisses(ctx, run.ID, run.Repository, inf.seen, pol.RetirementMisses)
		if err != nil {
			return err
		}
		run.FactsRetired = retired
	}
	return nil
}
