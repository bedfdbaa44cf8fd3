package cache

import (
	"bytes"
	"context"
	"errors"
	"purrbin/pkg/domain"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LRU keeps recently served pastes in memory. Pastes larger than maxEntry
// bytes are never cached, and entries are trimmed to their length so a
// cached paste never pins a larger read or ingest buffer.
type LRU struct {
	c        *lru.Cache[domain.Slug, []byte]
	mu       sync.Mutex
	maxEntry int
}

func NewLRU(size, maxEntry int) (*LRU, error) {
	if size <= 0 {
		return nil, errors.New("cache size must be positive")
	}
	if size > 100000 {
		return nil, errors.New("cache size too large")
	}
	c, err := lru.New[domain.Slug, []byte](size)
	if err != nil {
		return nil, err
	}
	return &LRU{c: c, maxEntry: maxEntry}, nil
}
func (l *LRU) Get(ctx context.Context, slug domain.Slug) ([]byte, bool) {
	select {
	case <-ctx.Done():
		return nil, false
	default:
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.c.Get(slug)
}
func (l *LRU) Set(slug domain.Slug, data []byte) {
	if l.maxEntry > 0 && len(data) > l.maxEntry {
		l.Delete(slug)
		return
	}
	if cap(data) != len(data) {
		data = bytes.Clone(data)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.c.Add(slug, data)
}
func (l *LRU) Delete(slug domain.Slug) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.c.Remove(slug)
}
func (l *LRU) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.c.Len()
}
