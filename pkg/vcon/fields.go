package vcon

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"vcon/pkg/optional"
)

// problems accumulates field type errors across a whole document so a
// caller can report all of them rather than the first.
type problems struct {
	errs []error
}

func (p *problems) add(err error) {
	p.errs = append(p.errs, err)
}

func (p *problems) messages() []string {
	out := make([]string, 0, len(p.errs))
	for _, err := range p.errs {
		out = append(out, err.Error())
	}
	return out
}

// err summarizes the collected problems, nil when there are none.
func (p *problems) err() error {
	switch len(p.errs) {
	case 0:
		return nil
	case 1:
		return p.errs[0]
	default:
		return fmt.Errorf("%w (and %d more)", p.errs[0], len(p.errs)-1)
	}
}

// fieldReader extracts typed fields from a decoded object. Type errors are
// recorded with their path; keys never read, and keys whose value had the
// wrong type, are available as extras for lossless round trips.
type fieldReader struct {
	path  string
	src   *Dict
	seen  map[string]bool
	bad   map[string]bool
	probs *problems
}

func newFieldReader(path string, src *Dict, probs *problems) *fieldReader {
	return &fieldReader{path: path, src: src, seen: make(map[string]bool), bad: make(map[string]bool), probs: probs}
}

func (r *fieldReader) fail(key, want string, got any) {
	delete(r.seen, key)
	r.bad[key] = true
	r.probs.add(fmt.Errorf("%s.%s: expected %s, got %s", r.path, key, want, jsonKind(got)))
}

func (r *fieldReader) failed(key string) bool {
	return r.bad[key]
}

// lookup returns the value for key; JSON null counts as absent.
func (r *fieldReader) lookup(key string) (any, bool) {
	r.seen[key] = true
	v, ok := r.src.Get(key)
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

func (r *fieldReader) str(key string) optional.Value[string] {
	v, ok := r.lookup(key)
	if !ok {
		return optional.None[string]()
	}
	s, ok := v.(string)
	if !ok {
		r.fail(key, "string", v)
		return optional.None[string]()
	}
	return optional.Some(s)
}

func (r *fieldReader) integer(key string) optional.Value[int] {
	v, ok := r.lookup(key)
	if !ok {
		return optional.None[int]()
	}
	n, ok := toInt(v)
	if !ok {
		r.fail(key, "integer", v)
		return optional.None[int]()
	}
	return optional.Some(n)
}

func (r *fieldReader) float(key string) optional.Value[float64] {
	v, ok := r.lookup(key)
	if !ok {
		return optional.None[float64]()
	}
	f, ok := toFloat(v)
	if !ok {
		r.fail(key, "number", v)
		return optional.None[float64]()
	}
	return optional.Some(f)
}

func (r *fieldReader) ints(key string) optional.Value[[]int] {
	v, ok := r.lookup(key)
	if !ok {
		return optional.None[[]int]()
	}
	out, ok := toInts(v)
	if !ok {
		r.fail(key, "array of integers", v)
		return optional.None[[]int]()
	}
	return optional.Some(out)
}

func (r *fieldReader) object(key string) *Dict {
	v, ok := r.lookup(key)
	if !ok {
		return nil
	}
	obj, ok := v.(*Dict)
	if !ok {
		r.fail(key, "object", v)
		return nil
	}
	return obj
}

// objects reads an array of objects. A non-object item is recorded and
// replaced by an empty object so later indices keep their positions.
func (r *fieldReader) objects(key string) []*Dict {
	v, ok := r.lookup(key)
	if !ok {
		return nil
	}
	arr, ok := v.([]any)
	if !ok {
		r.fail(key, "array of objects", v)
		return nil
	}
	out := make([]*Dict, 0, len(arr))
	for i, item := range arr {
		obj, ok := item.(*Dict)
		if !ok {
			r.probs.add(fmt.Errorf("%s.%s[%d]: expected object, got %s", r.path, key, i, jsonKind(item)))
			obj = NewDict()
		}
		out = append(out, obj)
	}
	return out
}

// raw returns a dynamic value as a deep copy.
func (r *fieldReader) raw(key string) optional.Value[any] {
	v, ok := r.lookup(key)
	if !ok {
		return optional.None[any]()
	}
	return optional.Some(deepCopy(v))
}

// extras returns a copy of every non-null key that was never looked up.
func (r *fieldReader) extras() *Dict {
	var out *Dict
	r.src.Range(func(k string, v any) bool {
		if r.seen[k] || v == nil {
			return true
		}
		if out == nil {
			out = NewDict()
		}
		out.Set(k, deepCopy(v))
		return true
	})
	return out
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return intFrom64(i)
		}
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return intFromFloat(f)
	case int:
		return n, true
	case int64:
		return intFrom64(n)
	case float64:
		return intFromFloat(n)
	default:
		return 0, false
	}
}

func intFrom64(i int64) (int, bool) {
	if i < math.MinInt || i > math.MaxInt {
		return 0, false
	}
	return int(i), true
}

// intFromFloat accepts whole numbers such as 2.0 or 1e3 within the int range.
func intFromFloat(f float64) (int, bool) {
	if f != math.Trunc(f) || f < math.MinInt || f >= math.MaxInt {
		return 0, false
	}
	return int(f), true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func toInts(v any) ([]int, bool) {
	switch arr := v.(type) {
	case []int:
		return append([]int{}, arr...), true
	case []any:
		out := make([]int, 0, len(arr))
		for _, item := range arr {
			n, ok := toInt(item)
			if !ok {
				return nil, false
			}
			out = append(out, n)
		}
		return out, true
	default:
		return nil, false
	}
}

// jsonValue converts a typed field value into decoded JSON form.
func jsonValue(v any) any {
	switch x := v.(type) {
	case int:
		return json.Number(strconv.Itoa(x))
	case int64:
		return json.Number(strconv.FormatInt(x, 10))
	case float64:
		data, err := json.Marshal(x)
		if err != nil {
			return x
		}
		return json.Number(data)
	case []int:
		out := make([]any, len(x))
		for i, n := range x {
			out[i] = jsonValue(n)
		}
		return out
	default:
		return v
	}
}

// put emits v under key when present.
func put[T any](d *Dict, key string, v optional.Value[T]) {
	if x, ok := v.Get(); ok {
		d.Set(key, jsonValue(x))
	}
}

func putInts(d *Dict, key string, v optional.Value[[]int]) {
	if x, ok := v.Get(); ok {
		d.Set(key, jsonValue(x))
	}
}

func putRaw(d *Dict, key string, v optional.Value[any]) {
	if x, ok := v.Get(); ok {
		d.Set(key, deepCopy(x))
	}
}

func putExtras(d *Dict, extras *Dict) {
	extras.Range(func(k string, v any) bool {
		if !d.Has(k) {
			d.Set(k, deepCopy(v))
		}
		return true
	})
}

// dynamic canonicalizes a caller-supplied dynamic value.
func dynamic(v any) (optional.Value[any], error) {
	if v == nil {
		return optional.None[any](), nil
	}
	c, err := canonicalize(v)
	if err != nil {
		return optional.None[any](), err
	}
	return optional.Some(c), nil
}
