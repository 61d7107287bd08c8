package order

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// IDGenerator mints human-readable order identifiers of the form
// <prefix>-DDMMYYYY-NNNN, e.g. NIRANJI-05032026-4821. The format is
// guaranteed; global uniqueness is not: the store's unique constraint is
// the authority, and callers retry on ErrDuplicateOrderID. With a 4-digit
// suffix two same-day orders collide with probability 1/9000, so the retry
// loop matters.
type IDGenerator struct {
	prefix string
	now    func() time.Time
	intN   func(n int) int
}

// GeneratorOption customizes an IDGenerator, mainly for tests.
type GeneratorOption func(*IDGenerator)

// WithClock overrides the wall clock used for the date component.
func WithClock(now func() time.Time) GeneratorOption {
	return func(g *IDGenerator) { g.now = now }
}

// WithRand overrides the random source used for the numeric suffix.
func WithRand(intN func(n int) int) GeneratorOption {
	return func(g *IDGenerator) { g.intN = intN }
}

// NewIDGenerator creates a generator with the given brand prefix.
func NewIDGenerator(prefix string, opts ...GeneratorOption) *IDGenerator {
	g := &IDGenerator{
		prefix: prefix,
		now:    time.Now,
		intN:   rand.IntN,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate returns a fresh order id. The suffix is uniformly drawn from
// [1000, 9999].
func (g *IDGenerator) Generate() string {
	date := g.now().Format("02012006")
	suffix := 1000 + g.intN(9000)
	return fmt.Sprintf("%s-%s-%04d", g.prefix, date, suffix)
}
