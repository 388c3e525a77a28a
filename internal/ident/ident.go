// Package ident generates sortable unique entity ids.
//
// An id is a 26-character ULID: a 10-character Crockford base-32 encoding of
// the creation millisecond followed by 16 random characters, optionally
// prefixed with a type tag ("mem_01J8...").  Ids created at increasing
// timestamps sort lexicographically in creation order; same-millisecond ids
// are ordered only by their random suffix.
package ident

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ErrInvalidIdentifier is returned when an id cannot be decoded.
var ErrInvalidIdentifier = errors.New("invalid identifier")

// Generator produces entity ids. Safe for concurrent use.
type Generator struct {
	mu      sync.Mutex
	entropy *rand.Rand
}

// NewGenerator creates a Generator seeded from the current time.
func NewGenerator() *Generator {
	return &Generator{entropy: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// Generate returns a new id. A non-empty prefix is prepended with an
// underscore separator, e.g. Generate("mem") -> "mem_01J8Z...".
func (g *Generator) Generate(prefix string) string {
	g.mu.Lock()
	id := ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
	g.mu.Unlock()

	if prefix == "" {
		return id.String()
	}
	return prefix + "_" + id.String()
}

var defaultGen = NewGenerator()

// Generate returns a new id from the package-level generator.
func Generate(prefix string) string {
	return defaultGen.Generate(prefix)
}

// TimestampOf decodes the creation time embedded in an id, after stripping
// an optional "prefix_" tag. It returns ErrInvalidIdentifier when the id is
// too short or contains characters outside the encoding alphabet.
func TimestampOf(id string) (time.Time, error) {
	raw := id
	if i := strings.LastIndexByte(raw, '_'); i >= 0 {
		raw = raw[i+1:]
	}

	u, err := ulid.ParseStrict(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %v", ErrInvalidIdentifier, id, err)
	}
	return ulid.Time(u.Time()).UTC(), nil
}
