package ingest

import (
	"context"
	"io"
	"purrbin/pkg/domain"

	"github.com/pkg/errors"
)

const (
	DefaultChunkSize = 16 * 1024
	maxEmptyReads    = 100
)

type Options struct {
	// ChunkSize is the size of each Read issued against the body.
	ChunkSize int
	// RejectOversize stops at the first byte over budget with
	// domain.ErrPasteTooLarge instead of truncating.
	RejectOversize bool
}

// Drain delivers r to acc one Read at a time. io.EOF marks the terminal
// chunk. Any other read error, or ctx ending first, aborts acc and returns
// an error wrapping domain.ErrIngestAborted.
func Drain(ctx context.Context, r io.Reader, acc *Accumulator, opts Options) error {
	size := opts.ChunkSize
	if size <= 0 {
		size = DefaultChunkSize
	}
	chunk := make([]byte, size)
	empty := 0
	for {
		if err := ctx.Err(); err != nil {
			acc.Abort()
			return errors.Wrapf(domain.ErrIngestAborted, "request context: %v", err)
		}
		n, err := r.Read(chunk)
		if err != nil && err != io.EOF {
			acc.Abort()
			return errors.Wrapf(domain.ErrIngestAborted, "read body: %v", err)
		}
		last := err == io.EOF
		if n == 0 && !last {
			empty++
			if empty >= maxEmptyReads {
				acc.Abort()
				return errors.Wrapf(domain.ErrIngestAborted, "read body: %v", io.ErrNoProgress)
			}
			continue
		}
		empty = 0
		done, ferr := acc.Feed(chunk[:n], last)
		if ferr != nil {
			return ferr
		}
		if opts.RejectOversize && acc.Truncated() {
			acc.Abort()
			return errors.WithStack(domain.ErrPasteTooLarge)
		}
		if done {
			return nil
		}
	}
}
