package workflow

import (
	"fmt"

	"flatconnect/internal/domain"
)

// Carousel cycles over completion photo URLs. It wraps in both directions.
type Carousel struct {
	photos []string
	index  int
}

// NewCarousel starts at the first photo. An empty list is an error.
func NewCarousel(photos []string) (*Carousel, error) {
	if len(photos) == 0 {
		return nil, ErrNoPhotos
	}
	own := make([]string, len(photos))
	copy(own, photos)
	return &Carousel{photos: own}, nil
}

// OpenViewer opens a fresh carousel on an issue's completion photos.
func OpenViewer(issue domain.Issue) (*Carousel, error) {
	return NewCarousel(issue.CompletionPhotos)
}

func (c *Carousel) Next() int {
	c.index = (c.index + 1) % len(c.photos)
	return c.index
}

func (c *Carousel) Prev() int {
	c.index = (c.index - 1 + len(c.photos)) % len(c.photos)
	return c.index
}

// Select jumps to index i.
func (c *Carousel) Select(i int) error {
	if i < 0 || i >= len(c.photos) {
		return fmt.Errorf("photo %d out of range (have %d)", i, len(c.photos))
	}
	c.index = i
	return nil
}

func (c *Carousel) Index() int      { return c.index }
func (c *Carousel) Len() int        { return len(c.photos) }
func (c *Carousel) Current() string { return c.photos[c.index] }

// Photos returns the URLs in order.
func (c *Carousel) Photos() []string {
	out := make([]string, len(c.photos))
	copy(out, c.photos)
	return out
}

// Position renders "n / total", one-based.
func (c *Carousel) Position() string {
	return fmt.Sprintf("%d / %d", c.index+1, len(c.photos))
}
