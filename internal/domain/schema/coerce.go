package schema

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/postdex/internal/domain"
	"github.com/kailas-cloud/postdex/internal/domain/mapping"
)

// TimeLayout is the Go layout matching mapping.DateFormat.
const TimeLayout = "2006-01-02T15:04:05"

// ValueKind is the kind a value written to f must have. Every multi_field in
// the mapping library indexes one string under several analyses.
func ValueKind(f mapping.Field) mapping.Kind {
	if f.Type == mapping.KindMultiField {
		return mapping.KindString
	}
	return f.Type
}

// Coerce converts v to the representation required by kind. Values that
// cannot be represented return an error wrapping domain.ErrSchemaMismatch.
func Coerce(kind mapping.Kind, v any) (any, error) {
	switch kind {
	case mapping.KindString:
		return coerceString(v)
	case mapping.KindShort:
		return coerceInt(v, math.MinInt16, math.MaxInt16)
	case mapping.KindInteger, mapping.KindTokenCount:
		return coerceInt(v, math.MinInt32, math.MaxInt32)
	case mapping.KindLong:
		return coerceInt(v, math.MinInt64, math.MaxInt64)
	case mapping.KindDouble:
		return coerceDouble(v)
	case mapping.KindBoolean:
		return coerceBool(v)
	case mapping.KindDate:
		return coerceDate(v)
	}
	return v, nil
}

// ClampToWidth saturates n to the range of an integer kind, so counters
// never overflow their field.
func ClampToWidth(kind mapping.Kind, n int64) int64 {
	var lo, hi int64
	switch kind {
	case mapping.KindShort:
		lo, hi = math.MinInt16, math.MaxInt16
	case mapping.KindInteger:
		lo, hi = math.MinInt32, math.MaxInt32
	default:
		return n
	}
	return max(lo, min(hi, n))
}

func mismatch(kind string, v any) error {
	return fmt.Errorf("%v (%T) is not a %s: %w", v, v, kind, domain.ErrSchemaMismatch)
}

func coerceString(v any) (any, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case bool:
		return strconv.FormatBool(x), nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	}
	return nil, mismatch("string", v)
}

func coerceInt(v any, lo, hi int64) (any, error) {
	var n int64
	switch x := v.(type) {
	case int:
		n = int64(x)
	case int16:
		n = int64(x)
	case int32:
		n = int64(x)
	case int64:
		n = x
	case float64:
		if x != math.Trunc(x) || x < math.MinInt64 || x > math.MaxInt64 {
			return nil, mismatch("integer", v)
		}
		n = int64(x)
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return nil, mismatch("integer", v)
		}
		n = parsed
	default:
		return nil, mismatch("integer", v)
	}
	if n < lo || n > hi {
		return nil, mismatch(fmt.Sprintf("integer in [%d, %d]", lo, hi), v)
	}
	return n, nil
}

func coerceDouble(v any) (any, error) {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, mismatch("double", v)
		}
		return x, nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, mismatch("double", v)
		}
		return f, nil
	}
	return nil, mismatch("double", v)
}

// ParseBool accepts the spellings metadata commonly uses for flags.
func ParseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on":
		return true, true
	case "false", "0", "no", "off":
		return false, true
	}
	return false, false
}

func coerceBool(v any) (any, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case int:
		if x == 0 || x == 1 {
			return x == 1, nil
		}
	case int64:
		if x == 0 || x == 1 {
			return x == 1, nil
		}
	case string:
		if b, ok := ParseBool(x); ok {
			return b, nil
		}
	}
	return nil, mismatch("boolean", v)
}

func coerceDate(v any) (any, error) {
	switch x := v.(type) {
	case time.Time:
		return x.Format(TimeLayout), nil
	case string:
		if _, err := time.Parse(TimeLayout, x); err == nil {
			return x, nil
		}
	}
	return nil, mismatch("date", v)
}

// Conform coerces every leaf under a dynamic namespace to its template kind,
// in place. Leaves that cannot be coerced are removed, as are containers
// left empty by removal. Fixed properties are not touched. Returns the
// removed paths in sorted order.
func (m DocumentMapping) Conform(fields map[string]any) []string {
	var dropped []string
	m.conform("", fields, &dropped)
	sort.Strings(dropped)
	return dropped
}

func (m DocumentMapping) conform(prefix string, fields map[string]any, dropped *[]string) {
	for key, v := range fields {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		if _, fixed := m.FieldAt(path); fixed {
			continue
		}
		switch child := v.(type) {
		case map[string]any:
			m.conform(path, child, dropped)
			if len(child) == 0 {
				delete(fields, key)
			}
			continue
		case []map[string]any:
			kept := child[:0]
			for _, item := range child {
				m.conform(path, item, dropped)
				if len(item) > 0 {
					kept = append(kept, item)
				}
			}
			if len(kept) == 0 {
				delete(fields, key)
			} else {
				fields[key] = kept
			}
			continue
		}
		tpl, ok := m.Resolve(path)
		if !ok {
			continue
		}
		out, keep := conformLeaf(ValueKind(tpl.Mapping), v)
		if !keep {
			delete(fields, key)
			*dropped = append(*dropped, path)
			continue
		}
		fields[key] = out
	}
}

func conformLeaf(kind mapping.Kind, v any) (any, bool) {
	switch list := v.(type) {
	case []any:
		out := make([]any, 0, len(list))
		for _, item := range list {
			if c, err := Coerce(kind, item); err == nil {
				out = append(out, c)
			}
		}
		return out, len(out) > 0
	case []string:
		out := make([]any, 0, len(list))
		for _, item := range list {
			if c, err := Coerce(kind, item); err == nil {
				out = append(out, c)
			}
		}
		return out, len(out) > 0
	case []int64:
		out := make([]any, 0, len(list))
		for _, item := range list {
			if c, err := Coerce(kind, item); err == nil {
				out = append(out, c)
			}
		}
		return out, len(out) > 0
	case []float64:
		out := make([]any, 0, len(list))
		for _, item := range list {
			if c, err := Coerce(kind, item); err == nil {
				out = append(out, c)
			}
		}
		return out, len(out) > 0
	case []bool:
		out := make([]any, 0, len(list))
		for _, item := range list {
			if c, err := Coerce(kind, item); err == nil {
				out = append(out, c)
			}
		}
		return out, len(out) > 0
	}
	c, err := Coerce(kind, v)
	if err != nil {
		return nil, false
	}
	return c, true
}
