package util

import (
	"math/rand/v2"
	"purrbin/pkg/domain"
	"sync"
	"time"
)

const SlugAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// SlugGenerator draws slugs from one PCG source. A whole slug is produced
// under a single lock so concurrent callers never interleave.
type SlugGenerator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewSlugGenerator() *SlugGenerator {
	now := uint64(time.Now().UnixNano())
	return NewSlugGeneratorSeed(now)
}
func NewSlugGeneratorSeed(seed uint64) *SlugGenerator {
	return &SlugGenerator{
		rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}
func (g *SlugGenerator) Generate(length int) domain.Slug {
	if length <= 0 {
		return ""
	}
	buf := make([]byte, length)
	g.mu.Lock()
	for i := range buf {
		buf[i] = SlugAlphabet[g.rng.IntN(len(SlugAlphabet))]
	}
	g.mu.Unlock()
	return domain.Slug(buf)
}

// ValidSlug reports whether s has the given length and only uses SlugAlphabet.
// A length <= 0 accepts any non-empty slug.
func ValidSlug(s string, length int) bool {
	if s == "" || len(s) > 64 {
		return false
	}
	if length > 0 && len(s) != length {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'z') {
			return false
		}
	}
	return true
}
