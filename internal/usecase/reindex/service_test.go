package reindex

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/kailas-cloud/postdex/internal/domain"
	dombatch "github.com/kailas-cloud/postdex/internal/domain/batch"
	"github.com/kailas-cloud/postdex/internal/domain/document"
	"github.com/kailas-cloud/postdex/internal/domain/document/patch"
	"github.com/kailas-cloud/postdex/internal/domain/schema"
	"github.com/kailas-cloud/postdex/internal/usecase/builder"
	"github.com/kailas-cloud/postdex/internal/usecase/iterator"
)

// --- mocks ---

type mockEngine struct {
	mu      sync.Mutex
	puts    []string
	deletes []string
	patches []string

	putIndexSettingsFn   func(ctx context.Context, idx schema.Index) error
	putDocumentFn        func(ctx context.Context, doc *document.Document) error
	applyPartialUpdateFn func(ctx context.Context, docType, id string, p patch.Patch) error
}

func (m *mockEngine) PutIndexSettings(ctx context.Context, idx schema.Index) error {
	if m.putIndexSettingsFn != nil {
		return m.putIndexSettingsFn(ctx, idx)
	}
	return nil
}

func (m *mockEngine) PutDocument(ctx context.Context, doc *document.Document) error {
	if m.putDocumentFn != nil {
		if err := m.putDocumentFn(ctx, doc); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.puts = append(m.puts, doc.ID())
	m.mu.Unlock()
	return nil
}

func (m *mockEngine) ApplyPartialUpdate(ctx context.Context, docType, id string, p patch.Patch) error {
	if m.applyPartialUpdateFn != nil {
		if err := m.applyPartialUpdateFn(ctx, docType, id, p); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.patches = append(m.patches, id+":"+p.Path())
	m.mu.Unlock()
	return nil
}

func (m *mockEngine) DeleteDocument(_ context.Context, _, id string) error {
	m.mu.Lock()
	m.deletes = append(m.deletes, id)
	m.mu.Unlock()
	return nil
}

func (m *mockEngine) sortedPuts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := slices.Clone(m.puts)
	slices.Sort(out)
	return out
}

// fakeBuilder builds a one-field document per entity. Rejected ids produce a
// rejection, failing ids an error, and coupled maps parent to child ids.
type fakeBuilder struct {
	rejected map[int64]bool
	failing  map[int64]bool
	coupled  map[int64][]int64

	mu     sync.Mutex
	builds map[int64]int

	updateFn func(ref builder.Ref, ev builder.Event) (patch.Patch, error)
}

func (f *fakeBuilder) Type() string { return schema.DocTypePost }

func (f *fakeBuilder) ID(ref builder.Ref) string {
	return document.ID(schema.DocTypePost, ref.TenantID, ref.EntityID)
}

func (f *fakeBuilder) IsIndexable(context.Context, builder.Ref) (bool, *builder.Rejection, error) {
	return true, nil, nil
}

func (f *fakeBuilder) Build(_ context.Context, ref builder.Ref) (builder.Result, error) {
	f.mu.Lock()
	if f.builds == nil {
		f.builds = make(map[int64]int)
	}
	f.builds[ref.EntityID]++
	f.mu.Unlock()

	if f.failing[ref.EntityID] {
		return builder.Result{}, errors.New("boom")
	}
	if f.rejected[ref.EntityID] {
		return builder.Result{Ref: ref, Rejection: &builder.Rejection{Reason: domain.ErrNotIndexable}}, nil
	}
	doc, err := document.New(schema.DocTypePost, ref.TenantID, ref.EntityID, map[string]any{"post_id": ref.EntityID})
	if err != nil {
		return builder.Result{}, err
	}
	res := builder.Result{Ref: ref, Document: &doc}
	if c, ok := document.NewCoupled(schema.DocTypePost, f.coupled[ref.EntityID]); ok {
		res.Coupled = []document.Coupled{c}
	}
	return res, nil
}

func (f *fakeBuilder) CoupledDocuments(_ context.Context, ref builder.Ref) ([]document.Coupled, error) {
	if c, ok := document.NewCoupled(schema.DocTypePost, f.coupled[ref.EntityID]); ok {
		return []document.Coupled{c}, nil
	}
	return nil, nil
}

func (f *fakeBuilder) Update(ref builder.Ref, ev builder.Event) (patch.Patch, error) {
	if f.updateFn != nil {
		return f.updateFn(ref, ev)
	}
	return patch.New(ev.Field, ev.Value)
}

func (f *fakeBuilder) buildCount(id int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.builds[id]
}

type fakeBuilders struct{ b builder.DocBuilder }

func (f fakeBuilders) Get(docType string) (builder.DocBuilder, error) {
	if f.b == nil || docType != f.b.Type() {
		return nil, domain.ErrUnknownDocType
	}
	return f.b, nil
}

type memSource struct {
	ids []int64
	err error
}

func (m *memSource) EnumerateIDs(_ context.Context, _ int64, _ iterator.Filter, after int64, offset, limit int) ([]int64, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []int64
	for _, id := range m.ids {
		if id <= after {
			continue
		}
		if offset > 0 {
			offset--
			continue
		}
		out = append(out, id)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

type memCursors struct {
	mu    sync.Mutex
	saved map[int64]iterator.Cursor
	saves int
}

func (m *memCursors) Load(tenantID int64) (iterator.Cursor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.saved[tenantID]; ok {
		return c, nil
	}
	return iterator.Cursor{TenantID: tenantID}, nil
}

func (m *memCursors) Save(c iterator.Cursor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saved == nil {
		m.saved = make(map[int64]iterator.Cursor)
	}
	m.saved[c.TenantID] = c
	m.saves++
	return nil
}

func seq(from, to int64) []int64 {
	var out []int64
	for i := from; i <= to; i++ {
		out = append(out, i)
	}
	return out
}

func docIDs(tenant int64, ids ...int64) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, document.ID(schema.DocTypePost, tenant, id))
	}
	slices.Sort(out)
	return out
}

func newTestService(b *fakeBuilder, eng *mockEngine, src *memSource, cur *memCursors) *Service {
	return New(fakeBuilders{b: b}, eng, src, cur).WithWorkers(3).WithPageSize(4)
}

// --- Run ---

func TestRun_IndexesEveryEntity(t *testing.T) {
	b := &fakeBuilder{}
	eng := &mockEngine{}
	cur := &memCursors{}
	svc := newTestService(b, eng, &memSource{ids: seq(1, 10)}, cur)

	rep, err := svc.Run(context.Background(), 1)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Summary != (dombatch.Summary{OK: 10}) {
		t.Errorf("summary = %+v", rep.Summary)
	}
	if got, want := eng.sortedPuts(), docIDs(1, seq(1, 10)...); !slices.Equal(got, want) {
		t.Errorf("puts = %v, want %v", got, want)
	}
	if !rep.Cursor.Done || rep.Cursor.Consumed != 10 {
		t.Errorf("cursor = %+v", rep.Cursor)
	}
	// Pages of 4: 4, 4, 2.
	if cur.saves != 3 {
		t.Errorf("saves = %d, want 3", cur.saves)
	}
	if !cur.saved[1].Done {
		t.Error("final saved cursor not done")
	}
}

func TestRun_RejectedAreDeleted(t *testing.T) {
	b := &fakeBuilder{rejected: map[int64]bool{2: true, 5: true}}
	eng := &mockEngine{}
	svc := newTestService(b, eng, &memSource{ids: seq(1, 6)}, &memCursors{})

	rep, err := svc.Run(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Summary != (dombatch.Summary{OK: 4, Skipped: 2}) {
		t.Errorf("summary = %+v", rep.Summary)
	}
	got := slices.Clone(eng.deletes)
	slices.Sort(got)
	if want := docIDs(1, 2, 5); !slices.Equal(got, want) {
		t.Errorf("deletes = %v, want %v", got, want)
	}
}

func TestRun_FailuresDoNotStopRun(t *testing.T) {
	b := &fakeBuilder{failing: map[int64]bool{3: true}}
	eng := &mockEngine{}
	svc := newTestService(b, eng, &memSource{ids: seq(1, 5)}, &memCursors{})

	rep, err := svc.Run(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Summary != (dombatch.Summary{OK: 4, Failed: 1}) {
		t.Errorf("summary = %+v", rep.Summary)
	}
	if len(rep.Failures) != 1 || rep.Failures[0].ID() != document.ID(schema.DocTypePost, 1, 3) {
		t.Errorf("failures = %v", rep.Failures)
	}
}

func TestRun_WriteErrorIsBuildError(t *testing.T) {
	b := &fakeBuilder{}
	eng := &mockEngine{putDocumentFn: func(_ context.Context, doc *document.Document) error {
		if doc.EntityID() == 2 {
			return errors.New("engine down")
		}
		return nil
	}}
	svc := newTestService(b, eng, &memSource{ids: seq(1, 3)}, &memCursors{})

	rep, err := svc.Run(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(rep.Failures) != 1 {
		t.Fatalf("failures = %v", rep.Failures)
	}
	var be *domain.BuildError
	if !errors.As(rep.Failures[0].Err(), &be) || be.Stage != domain.StageWrite || be.EntityID != 2 {
		t.Errorf("err = %v", rep.Failures[0].Err())
	}
}

func TestRun_ResumesFromSavedCursor(t *testing.T) {
	b := &fakeBuilder{}
	eng := &mockEngine{}
	cur := &memCursors{saved: map[int64]iterator.Cursor{
		1: {TenantID: 1, After: 6, Consumed: 6},
	}}
	svc := newTestService(b, eng, &memSource{ids: seq(1, 9)}, cur)

	rep, err := svc.Run(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := eng.sortedPuts(), docIDs(1, 7, 8, 9); !slices.Equal(got, want) {
		t.Errorf("puts = %v, want %v", got, want)
	}
	if rep.Cursor.Consumed != 9 {
		t.Errorf("consumed = %d", rep.Cursor.Consumed)
	}
}

func TestRun_DoneCursorRestarts(t *testing.T) {
	b := &fakeBuilder{}
	eng := &mockEngine{}
	cur := &memCursors{saved: map[int64]iterator.Cursor{
		1: {TenantID: 1, After: 3, Consumed: 3, Done: true},
	}}
	svc := newTestService(b, eng, &memSource{ids: seq(1, 3)}, cur)

	if _, err := svc.Run(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	if got := len(eng.sortedPuts()); got != 3 {
		t.Errorf("puts = %d, want 3", got)
	}
}

func TestRun_CoupledRebuiltOnce(t *testing.T) {
	// 1 and 2 both point at 50, which is outside the enumerated set. 3 is
	// coupled to 4, which the run reaches on its own.
	b := &fakeBuilder{coupled: map[int64][]int64{1: {50}, 2: {50}, 3: {4}}}
	eng := &mockEngine{}
	svc := newTestService(b, eng, &memSource{ids: seq(1, 6)}, &memCursors{})

	rep, err := svc.Run(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Coupled != 1 || rep.Summary.OK != 7 {
		t.Errorf("coupled = %d, summary = %+v", rep.Coupled, rep.Summary)
	}
	if n := b.buildCount(50); n != 1 {
		t.Errorf("coupled entity built %d times", n)
	}
	if n := b.buildCount(4); n != 1 {
		t.Errorf("enumerated coupled entity built %d times", n)
	}
}

func TestRun_SourceError(t *testing.T) {
	svc := newTestService(&fakeBuilder{}, &mockEngine{}, &memSource{err: errors.New("db down")}, &memCursors{})
	if _, err := svc.Run(context.Background(), 1); err == nil {
		t.Error("expected error")
	}
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc := newTestService(&fakeBuilder{}, &mockEngine{}, &memSource{ids: seq(1, 3)}, &memCursors{})
	if _, err := svc.Run(ctx, 1); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v", err)
	}
}

func TestRun_InterruptedPageIsRetriedOnResume(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	eng := &mockEngine{putDocumentFn: func(ctx context.Context, doc *document.Document) error {
		if doc.EntityID() == 6 {
			cancel()
		}
		return ctx.Err()
	}}
	cur := &memCursors{}
	first := &fakeBuilder{}
	svc := New(fakeBuilders{b: first}, eng, &memSource{ids: seq(1, 8)}, cur).WithWorkers(1).WithPageSize(4)

	rep, err := svc.Run(ctx, 7)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if rep.Summary != (dombatch.Summary{OK: 5, Failed: 3}) {
		t.Errorf("summary = %+v", rep.Summary)
	}
	// Only the first page is checkpointed.
	if saved := cur.saved[7]; saved.After != 4 || saved.Consumed != 4 || cur.saves != 1 {
		t.Fatalf("saved = %+v after %d saves", saved, cur.saves)
	}
	if rep.Cursor.After != 4 {
		t.Errorf("reported cursor = %+v", rep.Cursor)
	}

	resumed := &fakeBuilder{}
	eng.putDocumentFn = nil
	svc = New(fakeBuilders{b: resumed}, eng, &memSource{ids: seq(1, 8)}, cur).WithWorkers(1).WithPageSize(4)
	rep, err = svc.Run(context.Background(), 7)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	for id := int64(1); id <= 8; id++ {
		want := 0
		if id > 4 {
			want = 1
		}
		if n := resumed.buildCount(id); n != want {
			t.Errorf("entity %d built %d times on resume, want %d", id, n, want)
		}
	}
	if !rep.Cursor.Done || rep.Cursor.Consumed != 8 {
		t.Errorf("cursor = %+v", rep.Cursor)
	}
}

func TestRun_RejectedParentResyncsAttachments(t *testing.T) {
	b := &fakeBuilder{rejected: map[int64]bool{1: true}, coupled: map[int64][]int64{1: {40}}}
	eng := &mockEngine{}
	svc := newTestService(b, eng, &memSource{ids: seq(1, 2)}, &memCursors{})

	rep, err := svc.Run(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Coupled != 1 || b.buildCount(40) != 1 {
		t.Errorf("coupled = %d, builds of 40 = %d", rep.Coupled, b.buildCount(40))
	}
}

func TestRun_RateLimited(t *testing.T) {
	eng := &mockEngine{}
	svc := newTestService(&fakeBuilder{}, eng, &memSource{ids: seq(1, 6)}, &memCursors{}).
		WithRateLimit(1000, 2)

	rep, err := svc.Run(context.Background(), 1)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Summary != (dombatch.Summary{OK: 6}) {
		t.Errorf("summary = %+v", rep.Summary)
	}
}

func TestRun_RateLimitBeyondDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// One token up front, the next one far past the deadline.
	svc := newTestService(&fakeBuilder{}, &mockEngine{}, &memSource{ids: seq(1, 3)}, &memCursors{}).
		WithRateLimit(0.001, 1)

	rep, err := svc.Run(ctx, 1)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Summary != (dombatch.Summary{OK: 1, Failed: 2}) {
		t.Errorf("summary = %+v", rep.Summary)
	}
}

func TestRun_UnknownDocType(t *testing.T) {
	svc := New(fakeBuilders{}, &mockEngine{}, &memSource{}, &memCursors{})
	if _, err := svc.Run(context.Background(), 1); !errors.Is(err, domain.ErrUnknownDocType) {
		t.Errorf("err = %v", err)
	}
}

// --- Sync ---

func TestSync_IncludesCoupled(t *testing.T) {
	b := &fakeBuilder{coupled: map[int64][]int64{10: {11, 12}, 11: {13}}}
	eng := &mockEngine{}
	svc := newTestService(b, eng, &memSource{}, &memCursors{})

	results, err := svc.Sync(context.Background(), 1, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("results = %v", results)
	}
	// One level only: 13 is not followed.
	if got, want := eng.sortedPuts(), docIDs(1, 10, 11, 12); !slices.Equal(got, want) {
		t.Errorf("puts = %v, want %v", got, want)
	}
}

func TestSync_Rejected(t *testing.T) {
	b := &fakeBuilder{rejected: map[int64]bool{10: true}}
	eng := &mockEngine{}
	svc := newTestService(b, eng, &memSource{}, &memCursors{})

	results, err := svc.Sync(context.Background(), 1, 10)
	if err != nil {
		t.Fatal(err)
	}
	if results[0].Status() != dombatch.StatusSkipped || !errors.Is(results[0].Err(), domain.ErrNotIndexable) {
		t.Errorf("result = %v %v", results[0].Status(), results[0].Err())
	}
	if !slices.Equal(eng.deletes, docIDs(1, 10)) {
		t.Errorf("deletes = %v", eng.deletes)
	}
}

func TestSync_RejectedParentResyncsAttachments(t *testing.T) {
	b := &fakeBuilder{
		rejected: map[int64]bool{10: true, 12: true},
		coupled:  map[int64][]int64{10: {11, 12}},
	}
	eng := &mockEngine{}
	svc := newTestService(b, eng, &memSource{}, &memCursors{})

	results, err := svc.Sync(context.Background(), 1, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("results = %v", results)
	}
	if got := eng.sortedPuts(); !slices.Equal(got, docIDs(1, 11)) {
		t.Errorf("puts = %v", got)
	}
	got := slices.Clone(eng.deletes)
	slices.Sort(got)
	if want := docIDs(1, 10, 12); !slices.Equal(got, want) {
		t.Errorf("deletes = %v, want %v", got, want)
	}
}

// --- Apply ---

func TestApply(t *testing.T) {
	notImpl := func(builder.Ref, builder.Event) (patch.Patch, error) {
		return patch.Patch{}, fmt.Errorf("wrap: %w", domain.ErrNotImplemented)
	}
	tests := []struct {
		name        string
		updateFn    func(builder.Ref, builder.Event) (patch.Patch, error)
		engineErr   error
		wantStatus  dombatch.ItemStatus
		wantPatches int
		wantPuts    int
	}{
		{name: "patched", wantStatus: dombatch.StatusOK, wantPatches: 1},
		{name: "builder has no narrow path", updateFn: notImpl, wantStatus: dombatch.StatusOK, wantPuts: 1},
		{name: "engine cannot patch", engineErr: domain.ErrNotImplemented, wantStatus: dombatch.StatusOK, wantPuts: 1},
		{name: "document missing", engineErr: domain.ErrNotFound, wantStatus: dombatch.StatusOK, wantPuts: 1},
		{name: "engine failure", engineErr: errors.New("timeout"), wantStatus: dombatch.StatusError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &fakeBuilder{updateFn: tt.updateFn}
			eng := &mockEngine{applyPartialUpdateFn: func(context.Context, string, string, patch.Patch) error {
				return tt.engineErr
			}}
			svc := newTestService(b, eng, &memSource{}, &memCursors{})

			res, err := svc.Apply(context.Background(), 1, 7, builder.Event{Field: "like_count", Value: 3})
			if err != nil {
				t.Fatal(err)
			}
			if res.Status() != tt.wantStatus {
				t.Errorf("status = %v (%v)", res.Status(), res.Err())
			}
			if len(eng.patches) != tt.wantPatches || len(eng.puts) != tt.wantPuts {
				t.Errorf("patches = %v, puts = %v", eng.patches, eng.puts)
			}
		})
	}
}

// --- PutSchema ---

func TestPutSchema(t *testing.T) {
	var got schema.Index
	eng := &mockEngine{putIndexSettingsFn: func(_ context.Context, idx schema.Index) error {
		got = idx
		return nil
	}}
	svc := newTestService(&fakeBuilder{}, eng, &memSource{}, &memCursors{})

	idx, err := svc.PutSchema(context.Background(), schema.Options{Lang: "de", Name: "blog"})
	if err != nil {
		t.Fatal(err)
	}
	if got.Config.Name != "blog" || idx.Config.Lang != "de" {
		t.Errorf("submitted = %+v", got.Config)
	}
}

func TestPutSchema_EngineError(t *testing.T) {
	eng := &mockEngine{putIndexSettingsFn: func(context.Context, schema.Index) error { return errors.New("refused") }}
	svc := newTestService(&fakeBuilder{}, eng, &memSource{}, &memCursors{})
	if _, err := svc.PutSchema(context.Background(), schema.DefaultOptions()); err == nil {
		t.Error("expected error")
	}
}
