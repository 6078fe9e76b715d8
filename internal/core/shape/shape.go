// Package shape reduces sampled documents to structural field shapes. Only
// types, lengths and format signatures leave this package; literal values
// never do, and flagged fields keep their type alone
package shape

import (
	"sort"
	"time"
	"unicode/utf8"

	"datalens/internal/core/schema"
)

// maxDepth stops descent into pathological nesting; deeper values still
// count as their container type
const maxDepth = 8

// Classifier flags personal data by field name and by value format
type Classifier interface {
	ByName(path string) (category string, ok bool)
	ByFormat(value string) (sig, category string, ok bool)
}

// Scalar is a pre-typed value from a store adapter: the reducer records Kind
// and Size without inspecting the raw value further. Size < 0 means no
// meaningful length
type Scalar struct {
	Kind string
	Size int
}

// Reduce folds a bounded set of sampled documents into one field-shape list,
// sorted by path. A field absent from some documents counts as nullable;
// flagged fields are redacted down to their type
func Reduce(docs []map[string]any, c Classifier) []schema.FieldShape {
	if len(docs) == 0 {
		return nil
	}

	r := &reducer{c: c, acc: make(map[string]*stats)}
	for _, doc := range docs {
		r.seen = make(map[string]bool, len(doc))
		for k, v := range doc {
			r.observe(k, v, 0)
		}
	}

	shapes := make([]schema.FieldShape, 0, len(r.acc))
	for path, st := range r.acc {
		fs := schema.FieldShape{Path: path, Type: st.dominantType(), Redacted: st.flagged}
		if !st.flagged {
			fs.Nullable = st.nulls || st.present < len(docs)
			if st.hasLen {
				fs.Length = &schema.LengthRange{Min: st.min, Max: st.max}
			}
			fs.Format = st.dominantFormat()
		}
		shapes = append(shapes, fs)
	}
	sort.Slice(shapes, func(i, j int) bool { return shapes[i].Path < shapes[j].Path })
	return shapes
}

type reducer struct {
	c    Classifier
	acc  map[string]*stats
	seen map[string]bool // paths visited in the current document
}

type stats struct {
	types    map[string]int
	formats  map[string]int
	present  int
	nulls    bool
	min, max int
	hasLen   bool
	flagged  bool
}

func (r *reducer) stat(path string) *stats {
	st, ok := r.acc[path]
	if !ok {
		st = &stats{types: make(map[string]int), formats: make(map[string]int)}
		if _, hit := r.c.ByName(path); hit {
			st.flagged = true
		}
		r.acc[path] = st
	}
	if !r.seen[path] {
		r.seen[path] = true
		st.present++
	}
	return st
}

func (r *reducer) observe(path string, v any, depth int) {
	st := r.stat(path)
	switch x := v.(type) {
	case nil:
		st.nulls = true
	case string:
		st.types["string"]++
		st.addLen(utf8.RuneCountInString(x))
		if sig, cat, ok := r.c.ByFormat(x); ok {
			st.formats[sig]++
			if cat != "" {
				st.flagged = true
			}
		}
	case bool:
		st.types["bool"]++
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		st.types["int"]++
	case float32, float64:
		st.types["double"]++
	case time.Time:
		st.types["datetime"]++
	case []byte:
		st.types["binary"]++
		st.addLen(len(x))
	case Scalar:
		st.types[x.Kind]++
		if x.Size >= 0 {
			st.addLen(x.Size)
		}
	case map[string]any:
		st.types["object"]++
		if depth < maxDepth {
			for k, vv := range x {
				r.observe(path+"."+k, vv, depth+1)
			}
		}
	case []any:
		st.types["array"]++
		st.addLen(len(x))
		if depth < maxDepth {
			for _, vv := range x {
				r.observe(path+"[]", vv, depth+1)
			}
		}
	default:
		st.types["other"]++
	}
}

func (st *stats) addLen(n int) {
	if !st.hasLen || n < st.min {
		st.min = n
	}
	if !st.hasLen || n > st.max {
		st.max = n
	}
	st.hasLen = true
}

// dominantType picks the most observed non-null type; ties break
// lexicographically so output is stable. Fields seen only as null report null
func (st *stats) dominantType() string {
	best, bestN := "", 0
	for typ, n := range st.types {
		if n > bestN || (n == bestN && (best == "" || typ < best)) {
			best, bestN = typ, n
		}
	}
	if best == "" {
		return "null"
	}
	return best
}

func (st *stats) dominantFormat() string {
	best, bestN := "", 0
	for sig, n := range st.formats {
		if n > bestN || (n == bestN && (best == "" || sig < best)) {
			best, bestN = sig, n
		}
	}
	return best
}
