package extract

import (
	"context"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/kailas-cloud/postdex/internal/domain/schema"
)

// DefaultMetaAllow lists protected keys indexed by default: the featured
// media id and the previous slug used to keep old links working.
var DefaultMetaAllow = []string{"_thumbnail_id", "_wp_old_slug"}

// MaxMetaValueLen bounds a single indexed metadata value.
const MaxMetaValueLen = 4096

// MetaFilter decides which metadata keys are indexed. Deny wins over Allow.
// Keys starting with '_' are protected and need an explicit Allow entry.
type MetaFilter struct {
	Allow []string
	Deny  []string
}

// NewMetaFilter returns a filter whose allow-list always includes
// DefaultMetaAllow.
func NewMetaFilter(allow, deny []string) MetaFilter {
	merged := append([]string{}, DefaultMetaAllow...)
	for _, k := range allow {
		if !contains(merged, k) {
			merged = append(merged, k)
		}
	}
	return MetaFilter{Allow: merged, Deny: append([]string{}, deny...)}
}

// Indexable reports whether key passes the filter.
func (f MetaFilter) Indexable(key string) bool {
	if key == "" || contains(f.Deny, key) {
		return false
	}
	if strings.HasPrefix(key, "_") {
		return contains(f.Allow, key)
	}
	return true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Meta emits meta.<key>.{value, long, boolean, double}. A typed sub-field
// holds only the values that parse as that type and is omitted when none do.
type Meta struct {
	Filter MetaFilter
}

func (Meta) Name() string   { return NameMeta }
func (Meta) Owns() []string { return []string{"meta"} }

func (m Meta) Extract(_ context.Context, in Input) (Fields, error) {
	byKey := map[string][]string{}
	for _, e := range in.Entity.Meta {
		if !m.Filter.Indexable(e.Key) {
			continue
		}
		v := strings.TrimSpace(e.Value)
		if v == "" {
			continue
		}
		v = truncate(v, MaxMetaValueLen)
		k := fieldKey(e.Key)
		byKey[k] = append(byKey[k], v)
	}
	if len(byKey) == 0 {
		return Fields{}, nil
	}

	out := make(map[string]any, len(byKey))
	for key, values := range byKey {
		out[key] = typedMeta(values)
	}
	return Fields{"meta": out}, nil
}

func typedMeta(values []string) map[string]any {
	sort.Strings(values)
	var (
		longs   []int64
		doubles []float64
		bools   []bool
	)
	for _, v := range values {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			longs = append(longs, n)
		}
		if d, err := strconv.ParseFloat(v, 64); err == nil && !math.IsNaN(d) && !math.IsInf(d, 0) {
			doubles = append(doubles, d)
		}
		if b, ok := schema.ParseBool(v); ok {
			bools = append(bools, b)
		}
	}
	g := map[string]any{"value": values}
	if len(longs) > 0 {
		g["long"] = longs
	}
	if len(doubles) > 0 {
		g["double"] = doubles
	}
	if len(bools) > 0 {
		g["boolean"] = bools
	}
	return g
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
