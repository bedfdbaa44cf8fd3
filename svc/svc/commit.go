package svc

import (
	"context"
	"purrbin/metrics"
	"purrbin/pkg/domain"
	"purrbin/svc/store"
	"purrbin/svc/util"
	"time"

	"github.com/pkg/errors"
)

const maxSlugAttempts = 5

// reservedSlugs name routes served next to GET /{slug}; a paste stored
// under one of them could never be read back.
var reservedSlugs = []domain.Slug{"health", "ready", "metrics", "debug"}

// Store is the part of the paste directory the service needs.
type Store interface {
	Put(ctx context.Context, slug domain.Slug, data []byte, overwrite bool) (bool, error)
	PutNew(ctx context.Context, data []byte, next func() domain.Slug, attempts int) (domain.Slug, error)
	Get(ctx context.Context, slug domain.Slug) ([]byte, error)
	Probe() error
}

// Committer turns a finished body into a stored paste and its URL.
type Committer struct {
	store     Store
	gen       *util.SlugGenerator
	domain    string
	slugLen   int
	overwrite bool
	reserved  map[domain.Slug]bool
}

func NewCommitter(s Store, gen *util.SlugGenerator, domainPrefix string, slugLen int, overwrite bool) *Committer {
	if s == nil || gen == nil {
		panic("committer: nil dependency (store or slug generator)")
	}
	c := &Committer{
		store:     s,
		gen:       gen,
		domain:    domainPrefix,
		slugLen:   slugLen,
		overwrite: overwrite,
		reserved:  make(map[domain.Slug]bool),
	}
	c.Reserve(reservedSlugs...)
	return c
}

// Reserve keeps the given slugs from ever being handed out.
func (c *Committer) Reserve(slugs ...domain.Slug) {
	for _, s := range slugs {
		c.reserved[s] = true
	}
}

// next draws a slug, skipping reserved ones.
func (c *Committer) next() domain.Slug {
	for {
		s := c.gen.Generate(c.slugLen)
		if !c.reserved[s] {
			return s
		}
	}
}

// Commit writes data under a fresh slug. In overwrite mode a collision
// replaces the older paste; otherwise the data is written once and linked
// under up to maxSlugAttempts slugs until one is free.
func (c *Committer) Commit(ctx context.Context, data []byte) (*domain.Paste, error) {
	var (
		slug     domain.Slug
		replaced bool
		err      error
	)
	if c.overwrite {
		slug = c.next()
		replaced, err = c.store.Put(ctx, slug, data, true)
	} else {
		drawn := 0
		slug, err = c.store.PutNew(ctx, data, func() domain.Slug {
			drawn++
			s := c.next()
			if drawn > 1 {
				metrics.SlugCollisions.Inc()
				util.Debug().Int("attempt", drawn).Msg("slug taken, drawing another")
			}
			return s
		}, maxSlugAttempts)
		if err == store.ErrExists {
			metrics.SlugCollisions.Inc()
			metrics.CommitFailures.Inc()
			return nil, errors.WithStack(domain.ErrSlugExhausted)
		}
	}
	if err != nil {
		metrics.CommitFailures.Inc()
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, errors.Wrapf(domain.ErrIngestAborted, "commit: %v", err)
		}
		return nil, errors.Wrapf(domain.ErrStorage, "commit: %v", err)
	}
	if replaced {
		metrics.SlugCollisions.Inc()
		util.Warn().Str("slug", slug.String()).Msg("slug collision, previous paste replaced")
	}
	metrics.PasteCommitted.Inc()
	metrics.PasteBytes.Add(float64(len(data)))
	metrics.PasteSize.Observe(float64(len(data)))
	return &domain.Paste{
		Slug:      slug,
		URL:       c.domain + slug.String(),
		Size:      len(data),
		Collided:  replaced,
		CreatedAt: time.Now(),
	}, nil
}
