package publisher

import (
	"context"
	"errors"

	"cafenotice/noticebot/internal/crawler"
)

// Publisher represents a destination for newly seen posts
type Publisher interface {
	// Publish delivers a single post
	Publish(ctx context.Context, post crawler.Post) error

	// Close releases the publisher's connections
	Close() error
}

// ErrNotReady is returned by a publisher that has nowhere to deliver yet.
// The post is expected to be offered again later.
var ErrNotReady = errors.New("publisher not ready")

// Readier is implemented by publishers that need a connection step before
// they can deliver
type Readier interface {
	Ready() bool
}

// Trimmer is implemented by publishers that need periodic housekeeping
type Trimmer interface {
	TrimStreams(ctx context.Context) error
}

// Multi fans a post out to every publisher it holds
type Multi []Publisher

// Publish delivers post to all publishers and joins their errors
func (m Multi) Publish(ctx context.Context, post crawler.Post) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, post); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Ready reports whether every publisher that can be unready is ready
func (m Multi) Ready() bool {
	for _, p := range m {
		if r, ok := p.(Readier); ok && !r.Ready() {
			return false
		}
	}
	return true
}

// TrimStreams trims every publisher that supports it
func (m Multi) TrimStreams(ctx context.Context) error {
	var errs []error
	for _, p := range m {
		if t, ok := p.(Trimmer); ok {
			if err := t.TrimStreams(ctx); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Close closes all publishers
func (m Multi) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
