package builder

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/postdex/internal/domain"
	"github.com/kailas-cloud/postdex/internal/domain/document"
	"github.com/kailas-cloud/postdex/internal/domain/entity"
	"github.com/kailas-cloud/postdex/internal/domain/schema"
	"github.com/kailas-cloud/postdex/internal/extract"
	"github.com/kailas-cloud/postdex/internal/logger"
	"github.com/kailas-cloud/postdex/internal/metrics"
)

// DefaultStatusBlacklist holds the transient statuses never indexed.
var DefaultStatusBlacklist = []entity.Status{entity.StatusAutoDraft}

// Dependent entity type whose documents follow their parent.
const coupledChildType = entity.TypeAttachment

// PostBuilder builds "post" documents for every post-like entity type.
type PostBuilder struct {
	store      ContentStore
	extractors []extract.Extractor
	derivers   []extract.Deriver
	namespace  extract.Namespace
	required   map[string]bool
	blacklist  map[entity.Status]bool
	disabled   map[int64]bool
	mapping    schema.DocumentMapping
	indexMedia bool
}

// NewPostBuilder validates that the extractors and derivers own disjoint
// fields. The core group is required; every other group is best-effort.
func NewPostBuilder(
	store ContentStore, extractors []extract.Extractor, derivers []extract.Deriver,
) (*PostBuilder, error) {
	owners := make(map[string][]string, len(extractors)+len(derivers))
	for _, x := range extractors {
		if _, dup := owners[x.Name()]; dup {
			return nil, fmt.Errorf("extractor %q listed twice: %w", x.Name(), domain.ErrInvalidSchema)
		}
		owners[x.Name()] = x.Owns()
	}
	for _, d := range derivers {
		if _, dup := owners[d.Name()]; dup {
			return nil, fmt.Errorf("deriver %q shadows a producer: %w", d.Name(), domain.ErrInvalidSchema)
		}
		owners[d.Name()] = d.Owns()
	}
	ns, err := extract.NewNamespace(owners)
	if err != nil {
		return nil, err
	}

	b := &PostBuilder{
		store:      store,
		extractors: extractors,
		derivers:   derivers,
		namespace:  ns,
		required:   map[string]bool{extract.NameCore: true},
		mapping:    schema.GetMappings(schema.Options{})[schema.DocTypePost],
		indexMedia: true,
	}
	b.WithStatusBlacklist(DefaultStatusBlacklist)
	return b, nil
}

// WithStatusBlacklist replaces the statuses that are never indexed. An
// empty list restores the default.
func (b *PostBuilder) WithStatusBlacklist(statuses []entity.Status) *PostBuilder {
	if len(statuses) == 0 {
		statuses = DefaultStatusBlacklist
	}
	b.blacklist = make(map[entity.Status]bool, len(statuses))
	for _, s := range statuses {
		b.blacklist[s] = true
	}
	return b
}

// WithDisabledTenants switches indexing off for the given tenants regardless
// of their own setting.
func (b *PostBuilder) WithDisabledTenants(ids []int64) *PostBuilder {
	b.disabled = make(map[int64]bool, len(ids))
	for _, id := range ids {
		b.disabled[id] = true
	}
	return b
}

// WithIndexMedia toggles embedded-media extraction.
func (b *PostBuilder) WithIndexMedia(on bool) *PostBuilder {
	b.indexMedia = on
	return b
}

// WithMapping sets the mapping dynamic fields are conformed against.
func (b *PostBuilder) WithMapping(m schema.DocumentMapping) *PostBuilder {
	b.mapping = m
	return b
}

// Blacklist returns the statuses excluded from indexing, sorted.
func (b *PostBuilder) Blacklist() []entity.Status {
	out := make([]entity.Status, 0, len(b.blacklist))
	for s := range b.blacklist {
		out = append(out, s)
	}
	slices.Sort(out)
	return out
}

// Type returns the document type.
func (b *PostBuilder) Type() string { return schema.DocTypePost }

// ID returns the document id for ref.
func (b *PostBuilder) ID(ref Ref) string {
	return document.ID(schema.DocTypePost, ref.TenantID, ref.EntityID)
}

// IsIndexable reports whether ref passes the indexing policy. A false
// result carries the rejection; err is reserved for store failures.
func (b *PostBuilder) IsIndexable(ctx context.Context, ref Ref) (bool, *Rejection, error) {
	_, _, rej, err := b.load(ctx, ref)
	if err != nil {
		return false, nil, err
	}
	return rej == nil, rej, nil
}

// load runs the policy checks and returns what they fetched.
func (b *PostBuilder) load(ctx context.Context, ref Ref) (entity.Tenant, *entity.Entity, *Rejection, error) {
	if b.disabled[ref.TenantID] {
		return entity.Tenant{}, nil, reject(domain.ErrIndexingDisabled, "tenant %d", ref.TenantID), nil
	}
	tenant, err := b.store.FetchTenant(ctx, ref.TenantID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return entity.Tenant{}, nil, reject(domain.ErrNotFound, "tenant %d", ref.TenantID), nil
	case err != nil:
		return entity.Tenant{}, nil, nil, domain.NewBuildError(ref.TenantID, ref.EntityID, domain.StageIndexable, err)
	case !tenant.IndexingEnabled:
		return tenant, nil, reject(domain.ErrIndexingDisabled, "tenant %d", ref.TenantID), nil
	}

	e, err := b.store.FetchEntity(ctx, ref.TenantID, ref.EntityID)
	switch {
	case errors.Is(err, domain.ErrNotFound) || (err == nil && e == nil):
		return tenant, nil, reject(domain.ErrNotFound, "entity %d", ref.EntityID), nil
	case err != nil:
		return tenant, nil, nil, domain.NewBuildError(ref.TenantID, ref.EntityID, domain.StageLoad, err)
	}
	if e.Type == entity.TypeRevision {
		return tenant, e, reject(domain.ErrNotIndexable, "type %s", e.Type), nil
	}

	status, err := b.store.FetchStatus(ctx, ref.TenantID, ref.EntityID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return tenant, nil, reject(domain.ErrNotFound, "entity %d", ref.EntityID), nil
	case err != nil:
		return tenant, nil, nil, domain.NewBuildError(ref.TenantID, ref.EntityID, domain.StageIndexable, err)
	}
	if b.blacklist[status] {
		return tenant, e, reject(domain.ErrNotIndexable, "status %s", status), nil
	}
	return tenant, e, nil, nil
}

// Build produces the document for ref, or a rejection. Coupled references
// are attached to successful results; they are not built here.
func (b *PostBuilder) Build(ctx context.Context, ref Ref) (Result, error) {
	start := time.Now()
	res, err := b.build(ctx, ref)
	metrics.BuildDuration.WithLabelValues(schema.DocTypePost).Observe(time.Since(start).Seconds())
	switch {
	case err != nil:
		metrics.BuildsTotal.WithLabelValues(schema.DocTypePost, "error").Inc()
	case res.Rejected():
		metrics.BuildsTotal.WithLabelValues(schema.DocTypePost, "rejected").Inc()
	default:
		metrics.BuildsTotal.WithLabelValues(schema.DocTypePost, "built").Inc()
	}
	return res, err
}

func (b *PostBuilder) build(ctx context.Context, ref Ref) (Result, error) {
	log := logger.ForEntity(ctx, ref.TenantID, ref.EntityID)

	tenant, e, rej, err := b.load(ctx, ref)
	if err != nil {
		return Result{}, err
	}
	if rej != nil {
		return Result{Ref: ref, Rejection: rej}, nil
	}

	meta, err := b.store.FetchMetadata(ctx, ref.TenantID, ref.EntityID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return Result{}, domain.NewBuildError(ref.TenantID, ref.EntityID, domain.StageLoad, err)
	}
	ent := *e
	if meta != nil {
		ent.Meta = meta
	}

	in := extract.Input{
		Tenant:     tenant,
		Entity:     &ent,
		Lang:       extract.ResolveLang(tenant, &ent),
		IndexMedia: b.indexMedia,
	}

	groups := make(map[string]extract.Fields, len(b.extractors)+len(b.derivers))
	for _, x := range b.extractors {
		f, err := x.Extract(ctx, in)
		if err != nil {
			if b.required[x.Name()] {
				return Result{}, domain.NewBuildError(ref.TenantID, ref.EntityID, domain.StageExtract,
					fmt.Errorf("%s: %w", x.Name(), err))
			}
			log.Warn("Extractor failed, group skipped",
				zap.String("stage", domain.StageExtract),
				zap.String("extractor", x.Name()),
				zap.Error(err),
			)
			metrics.ExtractorFailuresTotal.WithLabelValues(x.Name()).Inc()
			continue
		}
		groups[x.Name()] = f
	}
	if _, ok := groups[extract.NameCore]; !ok && b.required[extract.NameCore] {
		return Result{}, domain.NewBuildError(ref.TenantID, ref.EntityID, domain.StageExtract,
			fmt.Errorf("no core extractor configured: %w", domain.ErrInvalidSchema))
	}

	// Derivers read the extracted groups, so they run after every extractor.
	for _, d := range b.derivers {
		f, err := d.Derive(ctx, in, groups)
		if err != nil {
			log.Warn("Deriver failed, group skipped",
				zap.String("stage", domain.StageExtract),
				zap.String("extractor", d.Name()),
				zap.Error(err),
			)
			metrics.ExtractorFailuresTotal.WithLabelValues(d.Name()).Inc()
			continue
		}
		groups[d.Name()] = f
	}

	fields, err := b.merge(groups)
	if err != nil {
		return Result{}, domain.NewBuildError(ref.TenantID, ref.EntityID, domain.StageMerge, err)
	}

	dropped := b.mapping.Conform(fields)
	for _, path := range dropped {
		tpl, _ := b.mapping.Resolve(path)
		metrics.FieldsDroppedTotal.WithLabelValues(tpl.Name).Inc()
	}
	if len(dropped) > 0 {
		log.Debug("Dynamic fields dropped", zap.Strings("paths", dropped))
	}

	doc, err := document.New(schema.DocTypePost, ref.TenantID, ref.EntityID, fields)
	if err != nil {
		return Result{}, domain.NewBuildError(ref.TenantID, ref.EntityID, domain.StageMerge, err)
	}

	coupled, err := b.coupled(ctx, ref, &ent)
	if err != nil {
		return Result{}, err
	}
	return Result{Ref: ref, Document: &doc, Coupled: coupled, Dropped: dropped}, nil
}

// merge joins the groups. Every key must belong to the group that wrote it.
func (b *PostBuilder) merge(groups map[string]extract.Fields) (map[string]any, error) {
	out := make(map[string]any)
	for name, f := range groups {
		if err := b.namespace.Check(name, f); err != nil {
			return nil, err
		}
		for k, v := range f {
			if isEmpty(v) {
				continue
			}
			if _, dup := out[k]; dup {
				return nil, fmt.Errorf("field %q written twice: %w", k, domain.ErrInvalidSchema)
			}
			out[k] = v
		}
	}
	return out, nil
}

// isEmpty reports containers with nothing in them. Zero scalars are values.
func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case map[string]any:
		return len(x) == 0
	case []map[string]any:
		return len(x) == 0
	case []string:
		return len(x) == 0
	case []int64:
		return len(x) == 0
	case []float64:
		return len(x) == 0
	case []bool:
		return len(x) == 0
	case []any:
		return len(x) == 0
	}
	return false
}

// CoupledDocuments lists the attachments of ref, whatever their status.
func (b *PostBuilder) CoupledDocuments(ctx context.Context, ref Ref) ([]document.Coupled, error) {
	e, err := b.store.FetchEntity(ctx, ref.TenantID, ref.EntityID)
	if errors.Is(err, domain.ErrNotFound) || (err == nil && e == nil) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.NewBuildError(ref.TenantID, ref.EntityID, domain.StageCoupled, err)
	}
	return b.coupled(ctx, ref, e)
}

func (b *PostBuilder) coupled(ctx context.Context, ref Ref, e *entity.Entity) ([]document.Coupled, error) {
	if e.Type == coupledChildType || e.Type == entity.TypeRevision {
		return nil, nil
	}
	ids, err := b.store.FetchChildren(ctx, ref.TenantID, ref.EntityID, coupledChildType)
	if err != nil {
		return nil, domain.NewBuildError(ref.TenantID, ref.EntityID, domain.StageCoupled, err)
	}
	c, ok := document.NewCoupled(schema.DocTypePost, ids)
	if !ok {
		return nil, nil
	}
	return []document.Coupled{c}, nil
}
