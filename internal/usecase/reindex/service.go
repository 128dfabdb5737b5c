package reindex

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/postdex/internal/domain"
	dombatch "github.com/kailas-cloud/postdex/internal/domain/batch"
	"github.com/kailas-cloud/postdex/internal/domain/document"
	"github.com/kailas-cloud/postdex/internal/domain/schema"
	"github.com/kailas-cloud/postdex/internal/logger"
	"github.com/kailas-cloud/postdex/internal/metrics"
	"github.com/kailas-cloud/postdex/internal/usecase/builder"
	"github.com/kailas-cloud/postdex/internal/usecase/iterator"
)

// Defaults for bulk runs.
const (
	DefaultWorkers  = 4
	DefaultPageSize = iterator.DefaultPageSize
)

// Service writes builder output to the engine, one entity at a time or in
// bulk over a tenant.
type Service struct {
	builders Builders
	engine   Engine
	source   iterator.Source
	cursors  CursorStore
	docType  string
	filter   iterator.Filter
	workers  int
	pageSize int
	limiter  *rate.Limiter
}

// New creates a reindex service for schema.DocTypePost documents.
func New(builders Builders, engine Engine, source iterator.Source, cursors CursorStore) *Service {
	return &Service{
		builders: builders,
		engine:   engine,
		source:   source,
		cursors:  cursors,
		docType:  schema.DocTypePost,
		workers:  DefaultWorkers,
		pageSize: DefaultPageSize,
	}
}

// WithWorkers sets the bulk worker count.
func (s *Service) WithWorkers(n int) *Service {
	if n > 0 {
		s.workers = n
	}
	return s
}

// WithPageSize sets how many ids are read and checkpointed together.
func (s *Service) WithPageSize(n int) *Service {
	if n > 0 {
		s.pageSize = n
	}
	return s
}

// WithRateLimit caps bulk runs at perSecond entities with the given burst.
// A non-positive rate removes the cap.
func (s *Service) WithRateLimit(perSecond float64, burst int) *Service {
	if perSecond <= 0 {
		s.limiter = nil
		return s
	}
	if burst <= 0 {
		burst = 1
	}
	s.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	return s
}

// WithFilter sets the status filter used by bulk runs.
func (s *Service) WithFilter(f iterator.Filter) *Service {
	s.filter = f
	return s
}

// Report summarizes a bulk run. Failures holds only the failed items.
type Report struct {
	TenantID int64
	Summary  dombatch.Summary
	Failures []dombatch.Result
	Coupled  int
	Cursor   iterator.Cursor
	Duration time.Duration
}

// PutSchema builds the index schema for opts and submits it.
func (s *Service) PutSchema(ctx context.Context, opts schema.Options) (schema.Index, error) {
	idx, err := schema.Build(opts)
	if err != nil {
		return schema.Index{}, fmt.Errorf("build schema: %w", err)
	}
	if err := s.engine.PutIndexSettings(ctx, idx); err != nil {
		return schema.Index{}, fmt.Errorf("put index settings: %w", err)
	}
	return idx, nil
}

// Sync rebuilds one entity and then, once, each entity coupled to it.
func (s *Service) Sync(ctx context.Context, tenantID, entityID int64) ([]dombatch.Result, error) {
	b, err := s.builders.Get(s.docType)
	if err != nil {
		return nil, err
	}
	res, coupled := s.syncOne(ctx, b, builder.Ref{TenantID: tenantID, EntityID: entityID})
	results := []dombatch.Result{res}
	for _, id := range coupled {
		r, _ := s.syncOne(ctx, b, builder.Ref{TenantID: tenantID, EntityID: id})
		results = append(results, r)
	}
	return results, nil
}

// Apply writes a narrow change as a partial update. When the builder has no
// narrow path, or the engine cannot patch, the entity is rebuilt instead.
func (s *Service) Apply(ctx context.Context, tenantID, entityID int64, ev builder.Event) (dombatch.Result, error) {
	b, err := s.builders.Get(s.docType)
	if err != nil {
		return dombatch.Result{}, err
	}
	ref := builder.Ref{TenantID: tenantID, EntityID: entityID}
	log := logger.ForEntity(ctx, tenantID, entityID, zap.String("field", ev.Field))

	p, err := b.Update(ref, ev)
	if err == nil {
		err = s.engine.ApplyPartialUpdate(ctx, b.Type(), b.ID(ref), p)
		if err == nil {
			metrics.PartialUpdatesTotal.WithLabelValues(ev.Field, "patch").Inc()
			return dombatch.NewOK(b.ID(ref)), nil
		}
	}
	if !errors.Is(err, domain.ErrNotImplemented) && !errors.Is(err, domain.ErrNotFound) {
		log.Warn("Partial update failed", zap.String("stage", domain.StageUpdate), zap.Error(err))
		return dombatch.NewError(b.ID(ref), err), nil
	}

	log.Debug("Partial update unavailable, rebuilding", zap.Error(err))
	metrics.PartialUpdatesTotal.WithLabelValues(ev.Field, "rebuild").Inc()
	res, _ := s.syncOne(ctx, b, ref)
	return res, nil
}

// Run reindexes every enumerated entity of a tenant, resuming from the saved
// cursor. The cursor is saved after each fully processed page. Entities
// coupled to built documents but not enumerated in this run are rebuilt
// once at the end.
func (s *Service) Run(ctx context.Context, tenantID int64) (Report, error) {
	b, err := s.builders.Get(s.docType)
	if err != nil {
		return Report{}, err
	}
	start := time.Now()
	log := logger.ForTenant(ctx, tenantID)

	metrics.ReindexRunsInFlight.Inc()
	defer metrics.ReindexRunsInFlight.Dec()

	cur, err := s.cursors.Load(tenantID)
	if err != nil {
		return Report{}, fmt.Errorf("load cursor: %w", err)
	}
	if cur.Done {
		cur = iterator.Cursor{TenantID: tenantID}
	}
	if cur.Consumed > 0 {
		log.Info("Resuming reindex", zap.Int64("after", cur.After), zap.Int("consumed", cur.Consumed))
	}
	it := iterator.New(s.source, s.filter, cur, s.pageSize)

	type outcome struct {
		id      int64
		res     dombatch.Result
		coupled []int64
	}
	jobs := make(chan int64, s.workers*2)
	outcomes := make(chan outcome, s.workers*2)
	var wg sync.WaitGroup
	for range s.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				ref := builder.Ref{TenantID: tenantID, EntityID: id}
				if err := s.wait(ctx); err != nil {
					outcomes <- outcome{id: id, res: dombatch.NewError(b.ID(ref), err)}
					continue
				}
				res, coupled := s.syncOne(ctx, b, ref)
				outcomes <- outcome{id: id, res: res, coupled: coupled}
			}
		}()
	}
	defer func() {
		close(jobs)
		wg.Wait()
	}()

	report := Report{TenantID: tenantID}
	seen := make(map[int64]struct{})
	pending := make(map[int64]struct{})
	record := func(r dombatch.Result) {
		metrics.ReindexItemsTotal.WithLabelValues(string(r.Status())).Inc()
		switch r.Status() {
		case dombatch.StatusOK:
			report.Summary.OK++
		case dombatch.StatusSkipped:
			report.Summary.Skipped++
		case dombatch.StatusError:
			report.Summary.Failed++
			report.Failures = append(report.Failures, r)
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			report.Cursor = it.Cursor()
			return report, err
		}
		prev := it.Cursor()
		ids, err := it.Next(ctx)
		if err != nil {
			report.Cursor = prev
			return report, err
		}
		if len(ids) == 0 {
			break
		}
		go func(ids []int64) {
			for _, id := range ids {
				jobs <- id
			}
		}(ids)
		for range ids {
			o := <-outcomes
			seen[o.id] = struct{}{}
			delete(pending, o.id)
			for _, c := range o.coupled {
				if _, done := seen[c]; !done {
					pending[c] = struct{}{}
				}
			}
			record(o.res)
		}
		// An interrupted page stays unsaved so a resumed run rebuilds it.
		if err := ctx.Err(); err != nil {
			report.Cursor = prev
			log.Info("Reindex interrupted",
				zap.Int64("after", prev.After),
				zap.Int("consumed", prev.Consumed),
				zap.Error(err),
			)
			return report, err
		}
		if err := s.cursors.Save(it.Cursor()); err != nil {
			log.Warn("Cursor save failed", zap.Error(err))
		}
	}

	for id := range pending {
		if _, done := seen[id]; done {
			continue
		}
		r, _ := s.syncOne(ctx, b, builder.Ref{TenantID: tenantID, EntityID: id})
		record(r)
		report.Coupled++
	}

	report.Cursor = it.Cursor()
	report.Duration = time.Since(start)
	log.Info("Reindex finished",
		zap.Int("ok", report.Summary.OK),
		zap.Int("skipped", report.Summary.Skipped),
		zap.Int("failed", report.Summary.Failed),
		zap.Int("coupled", report.Coupled),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}

func (s *Service) wait(ctx context.Context) error {
	if s.limiter == nil {
		return nil
	}
	return s.limiter.Wait(ctx)
}

// syncOne builds ref and writes the outcome: the document, or a delete for
// a rejection. It returns the ids coupled to the document.
func (s *Service) syncOne(ctx context.Context, b builder.DocBuilder, ref builder.Ref) (dombatch.Result, []int64) {
	id := b.ID(ref)
	log := logger.ForEntity(ctx, ref.TenantID, ref.EntityID)

	res, err := b.Build(ctx, ref)
	if err != nil {
		log.Warn("Build failed", zap.Error(err))
		return dombatch.NewError(id, err), nil
	}
	if res.Rejected() {
		if err := s.engine.DeleteDocument(ctx, b.Type(), id); err != nil {
			log.Warn("Delete failed", zap.String("stage", domain.StageWrite), zap.Error(err))
			return dombatch.NewError(id, domain.NewBuildError(ref.TenantID, ref.EntityID, domain.StageWrite, err)), nil
		}
		// Attachments follow their parent out of the index as well.
		cs, err := b.CoupledDocuments(ctx, ref)
		if err != nil {
			log.Warn("Coupled lookup failed", zap.String("stage", domain.StageCoupled), zap.Error(err))
		}
		return dombatch.NewSkipped(id, res.Rejection), coupledIDs(b.Type(), cs)
	}
	if err := s.engine.PutDocument(ctx, res.Document); err != nil {
		log.Warn("Write failed", zap.String("stage", domain.StageWrite), zap.Error(err))
		return dombatch.NewError(id, domain.NewBuildError(ref.TenantID, ref.EntityID, domain.StageWrite, err)), nil
	}
	return dombatch.NewOK(id), coupledIDs(b.Type(), res.Coupled)
}

func coupledIDs(docType string, cs []document.Coupled) []int64 {
	var ids []int64
	for _, c := range cs {
		if c.Type == docType {
			ids = append(ids, c.IDs...)
		}
	}
	return ids
}
