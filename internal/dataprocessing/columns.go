package dataprocessing

import (
	"strings"
	"sync"
)

// ColumnMatcher decides whether a header names a semantic field.
type ColumnMatcher interface {
	MatchHeader(header string) bool
}

// Exact matches a header equal to the value after trimming, ignoring case.
type Exact string

func (e Exact) MatchHeader(header string) bool {
	return strings.EqualFold(strings.TrimSpace(header), strings.TrimSpace(string(e)))
}

// Contains matches a header containing the value, ignoring case.
type Contains string

func (c Contains) MatchHeader(header string) bool {
	return strings.Contains(strings.ToLower(header), strings.ToLower(string(c)))
}

// ContainsAll matches a header containing every value, ignoring case.
type ContainsAll []string

func (c ContainsAll) MatchHeader(header string) bool {
	h := strings.ToLower(header)
	for _, part := range c {
		if !strings.Contains(h, strings.ToLower(part)) {
			return false
		}
	}
	return len(c) > 0
}

// ContainsAny matches a header containing at least one value, ignoring case.
type ContainsAny []string

func (c ContainsAny) MatchHeader(header string) bool {
	h := strings.ToLower(header)
	for _, part := range c {
		if strings.Contains(h, strings.ToLower(part)) {
			return true
		}
	}
	return false
}

// MatchFunc adapts a plain predicate.
type MatchFunc func(header string) bool

func (f MatchFunc) MatchHeader(header string) bool { return f(header) }

// ColumnSpec is an ordered list of matchers for one semantic field.
//
// By default matchers take priority: the first matcher that hits any header
// wins. With HeaderMajor set, headers take priority: the first header that
// any matcher accepts wins, which is how issuer-code aliases are resolved.
type ColumnSpec struct {
	Field       string
	Matchers    []ColumnMatcher
	HeaderMajor bool
}

// Resolve returns the header selected for the field.
func (s ColumnSpec) Resolve(headers []string) (string, bool) {
	if s.HeaderMajor {
		for _, h := range headers {
			for _, m := range s.Matchers {
				if m.MatchHeader(h) {
					return h, true
				}
			}
		}
		return "", false
	}
	for _, m := range s.Matchers {
		for _, h := range headers {
			if m.MatchHeader(h) {
				return h, true
			}
		}
	}
	return "", false
}

// Aliases builds a header-major spec of Contains matchers.
func Aliases(field string, aliases ...string) ColumnSpec {
	ms := make([]ColumnMatcher, len(aliases))
	for i, a := range aliases {
		ms[i] = Contains(a)
	}
	return ColumnSpec{Field: field, Matchers: ms, HeaderMajor: true}
}

// ColumnResolver caches resolved columns for one header set.
type ColumnResolver struct {
	headers []string

	mu    sync.Mutex
	cache map[string]resolvedColumn
}

type resolvedColumn struct {
	header string
	ok     bool
}

// NewColumnResolver creates a resolver over headers.
func NewColumnResolver(headers []string) *ColumnResolver {
	return &ColumnResolver{
		headers: append([]string(nil), headers...),
		cache:   make(map[string]resolvedColumn),
	}
}

// Headers returns the resolver's header set.
func (r *ColumnResolver) Headers() []string { return r.headers }

// Resolve evaluates spec once and caches the answer under spec.Field.
func (r *ColumnResolver) Resolve(spec ColumnSpec) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rc, ok := r.cache[spec.Field]; ok && spec.Field != "" {
		return rc.header, rc.ok
	}
	h, ok := spec.Resolve(r.headers)
	if spec.Field != "" {
		r.cache[spec.Field] = resolvedColumn{header: h, ok: ok}
	}
	return h, ok
}
