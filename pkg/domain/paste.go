package domain

import (
	"time"
)

// Slug names a stored paste. It is a fixed-length string over [0-9a-z].
type Slug string

func (s Slug) String() string { return string(s) }

// Paste describes one successful commit. The content itself lives only
// in the storage directory.
type Paste struct {
	Slug      Slug      `json:"slug"`
	URL       string    `json:"url"`
	Size      int       `json:"size"`
	Dropped   int64     `json:"dropped,omitempty"`
	Truncated bool      `json:"truncated"`
	Collided  bool      `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// Response is the body sent back to the client: the paste URL and a newline.
func (p *Paste) Response() string {
	return p.URL + "\n"
}
