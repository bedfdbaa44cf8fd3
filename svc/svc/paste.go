package svc

import (
	"context"
	"io"
	"purrbin/cfg"
	"purrbin/metrics"
	"purrbin/pkg/domain"
	"purrbin/svc/cache"
	"purrbin/svc/ingest"
	"purrbin/svc/util"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
)

type Paste struct {
	store    Store
	lru      *cache.LRU
	commit   *Committer
	cfg      *cfg.Cfg
	mem      *semaphore.Weighted
	reads    singleflight.Group
	shutdown atomic.Bool
	opWg     sync.WaitGroup
}

// NewPaste wires the create and read paths. lru may be nil to disable the
// read cache.
func NewPaste(st Store, lru *cache.LRU, committer *Committer, c *cfg.Cfg) *Paste {
	if st == nil || committer == nil || c == nil {
		panic("paste service: nil dependency (store, committer, or cfg)")
	}
	budget := c.MaxBufferedBytes
	if budget < int64(c.MaxPasteSize) {
		budget = int64(c.MaxPasteSize)
	}
	return &Paste{
		store:  st,
		lru:    lru,
		commit: committer,
		cfg:    c,
		mem:    semaphore.NewWeighted(budget),
	}
}

// Create drains body, stores it under a new slug and returns the paste.
// Nothing is written unless the body was read to the end.
func (p *Paste) Create(ctx context.Context, body io.Reader) (*domain.Paste, error) {
	if p.shutdown.Load() {
		return nil, domain.ErrShuttingDown
	}
	p.opWg.Add(1)
	defer p.opWg.Done()

	reserve := int64(p.cfg.MaxPasteSize)
	if !p.mem.TryAcquire(reserve) {
		metrics.PasteRejected.WithLabelValues("overloaded").Inc()
		return nil, domain.ErrOverloaded
	}
	defer p.mem.Release(reserve)
	metrics.InFlight.Inc()
	defer metrics.InFlight.Dec()

	acc := ingest.New(p.cfg.MaxPasteSize)
	err := ingest.Drain(ctx, body, acc, ingest.Options{
		ChunkSize:      p.cfg.ReadChunkSize,
		RejectOversize: p.cfg.OversizePolicy == cfg.OversizeReject,
	})
	if err != nil {
		if errors.Is(err, domain.ErrPasteTooLarge) {
			metrics.PasteRejected.WithLabelValues("too_large").Inc()
			util.Info().
				Str("request_id", util.GetRequestID(ctx)).
				Int("limit", p.cfg.MaxPasteSize).
				Msg("oversized paste rejected")
			return nil, err
		}
		metrics.IngestAborted.Inc()
		util.Warn().
			Err(err).
			Str("request_id", util.GetRequestID(ctx)).
			Int("received", acc.Written()).
			Msg("ingest aborted before commit")
		return nil, err
	}

	data := acc.Bytes()
	paste, err := p.commit.Commit(ctx, data)
	if err != nil {
		util.Error().
			Err(err).
			Str("request_id", util.GetRequestID(ctx)).
			Int("size", len(data)).
			Msg("commit failed")
		return nil, err
	}
	paste.Dropped = acc.Dropped()
	paste.Truncated = acc.Truncated()
	if paste.Truncated {
		metrics.PasteTruncated.Inc()
		util.Info().
			Str("slug", paste.Slug.String()).
			Int("kept", paste.Size).
			Int64("dropped", paste.Dropped).
			Msg("paste truncated to size limit")
	}
	if p.lru != nil {
		p.lru.Set(paste.Slug, data)
	}
	if e := util.Debug(); e.Enabled() {
		e.Str("slug", paste.Slug.String()).
			Int("size", paste.Size).
			Int("chunks", acc.Chunks()).
			Str("preview", util.RedactPasteContent(data)).
			Msg("paste committed")
	}
	return paste, nil
}

// Get returns the stored bytes of a paste. Concurrent misses on the same
// slug share one disk read.
func (p *Paste) Get(ctx context.Context, slug string) ([]byte, error) {
	if !util.ValidSlug(slug, 0) {
		return nil, domain.ErrPasteNotFound
	}
	s := domain.Slug(slug)
	if p.lru != nil {
		if data, ok := p.lru.Get(ctx, s); ok {
			metrics.CacheHits.Inc()
			metrics.PasteRetrieved.Inc()
			return data, nil
		}
		metrics.CacheMisses.Inc()
	}
	// the read is shared, so one caller going away must not fail the others
	readCtx := context.WithoutCancel(ctx)
	v, err, _ := p.reads.Do(slug, func() (interface{}, error) {
		return p.store.Get(readCtx, s)
	})
	if err != nil {
		if errors.Is(err, domain.ErrPasteNotFound) {
			return nil, domain.ErrPasteNotFound
		}
		return nil, errors.Wrapf(domain.ErrStorage, "get %s: %v", slug, err)
	}
	data := v.([]byte)
	if p.lru != nil {
		p.lru.Set(s, data)
	}
	metrics.PasteRetrieved.Inc()
	return data, nil
}

// Ready reports whether new pastes can be accepted.
func (p *Paste) Ready() error {
	if p.shutdown.Load() {
		return domain.ErrShuttingDown
	}
	return p.store.Probe()
}

// Shutdown stops accepting pastes and waits up to timeout for the ones in
// flight to finish.
func (p *Paste) Shutdown(timeout time.Duration) {
	p.shutdown.Store(true)
	done := make(chan struct{})
	go func() {
		p.opWg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		util.Warn().Msg("in-flight pastes didn't finish in time")
	}
	util.Debug().Msg("paste service shutdown complete")
}
