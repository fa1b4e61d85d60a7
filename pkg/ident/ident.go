// Package ident allocates collision-free node and edge identifiers.
//
// An [Allocator] holds the reserved-id set of one merge batch. Every id it
// hands out is added to that set, so later calls in the same batch can
// never collide with it:
//
//	a := ident.New(existingIDs)
//	id := a.Allocate("input") // "input", or "input_1f3c9a2b" when taken
//
// Allocators are not safe for concurrent use. Create one per batch.
package ident

import (
	"maps"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// tokenLen is how many characters of a fresh token are appended to a
// colliding candidate.
const tokenLen = 8

// maxTokenAttempts bounds the fresh tokens tried for one id before a
// counter is appended to the last token.
const maxTokenAttempts = 8

// Option configures an [Allocator].
type Option func(*Allocator)

// WithGenerator replaces the random token source. Tests use it to make
// generated ids deterministic.
func WithGenerator(gen func() string) Option {
	return func(a *Allocator) { a.gen = gen }
}

// Allocator issues identifiers that are unique within its reserved set.
type Allocator struct {
	reserved map[string]struct{}
	memo     map[string]string
	gen      func() string
}

// New creates an allocator seeded with reserved ids.
func New(reserved []string, opts ...Option) *Allocator {
	a := &Allocator{
		reserved: make(map[string]struct{}, len(reserved)),
		memo:     make(map[string]string),
		gen:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.Reserve(reserved...)
	return a
}

// Allocate returns the final id for a candidate id. The candidate itself is
// returned when it is free; otherwise a short random suffix is appended
// until the result is free. The result is reserved, and repeated calls with
// the same candidate return the same id.
func (a *Allocator) Allocate(candidate string) string {
	if id, ok := a.memo[candidate]; ok {
		return id
	}
	id := a.Claim(candidate)
	a.memo[candidate] = id
	return id
}

// Claim is Allocate without memoization: each call reserves a new id.
// Edge ids use it since two edges declaring the same id must still end up
// distinct.
func (a *Allocator) Claim(candidate string) string {
	if candidate == "" {
		return a.Fresh("node")
	}
	id := candidate
	if a.IsReserved(id) {
		id = a.suffixed(candidate)
	}
	a.reserve(id)
	return id
}

// Fresh reserves and returns a new id of the form prefix_token.
func (a *Allocator) Fresh(prefix string) string {
	id := a.suffixed(prefix)
	a.reserve(id)
	return id
}

// suffixed returns a free base_token id. When the generator keeps
// producing taken tokens it falls back to base_token_2, base_token_3 and
// so on, which always terminates since the reserved set is finite.
func (a *Allocator) suffixed(base string) string {
	var tok string
	for range maxTokenAttempts {
		tok = a.token()
		if id := base + "_" + tok; !a.IsReserved(id) {
			return id
		}
	}
	for n := 2; ; n++ {
		if id := base + "_" + tok + "_" + strconv.Itoa(n); !a.IsReserved(id) {
			return id
		}
	}
}

// Reserve marks ids as taken. Empty ids are ignored.
func (a *Allocator) Reserve(ids ...string) {
	for _, id := range ids {
		if id != "" {
			a.reserve(id)
		}
	}
}

// IsReserved reports whether id is taken.
func (a *Allocator) IsReserved(id string) bool {
	_, ok := a.reserved[id]
	return ok
}

// Mapping returns a copy of the candidate to final id assignments made by
// Allocate.
func (a *Allocator) Mapping() map[string]string {
	return maps.Clone(a.memo)
}

func (a *Allocator) reserve(id string) { a.reserved[id] = struct{}{} }

func (a *Allocator) token() string {
	t := strings.ReplaceAll(a.gen(), "-", "")
	if len(t) > tokenLen {
		t = t[:tokenLen]
	}
	return t
}
