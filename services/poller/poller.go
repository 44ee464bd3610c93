package poller

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"cafenotice/noticebot/internal/crawler"
	"cafenotice/noticebot/logger"
	"cafenotice/noticebot/pkg/errors"
	"cafenotice/noticebot/services/publisher"
	"cafenotice/noticebot/services/seen"

	"golang.org/x/sync/singleflight"
)

// Options tunes how the poller identifies and delivers posts
type Options struct {
	// KeyMode is "title" or "link"
	KeyMode string

	// PrimeOnStart marks the first successful fetch of each source as seen
	// without delivering it
	PrimeOnStart bool
}

// sourceState serialises polls of one source
type sourceState struct {
	mu     sync.Mutex
	primed bool
}

// Poller fetches sources, filters posts already delivered and publishes the rest
type Poller struct {
	crawlers  []crawler.Crawler
	byName    map[string]crawler.Crawler
	states    map[string]*sourceState
	seen      seen.Store
	publisher publisher.Publisher
	opts      Options
	group     singleflight.Group
	log       *logger.Logger
}

// NewPoller creates a poller over crawlers. Sources are polled in the given order.
func NewPoller(crawlers []crawler.Crawler, store seen.Store, pub publisher.Publisher, opts Options) *Poller {
	if opts.KeyMode == "" {
		opts.KeyMode = "title"
	}

	p := &Poller{
		crawlers:  crawlers,
		byName:    make(map[string]crawler.Crawler, len(crawlers)),
		states:    make(map[string]*sourceState, len(crawlers)),
		seen:      store,
		publisher: pub,
		opts:      opts,
		log:       logger.ForPoller(),
	}
	for _, c := range crawlers {
		p.byName[c.GetName()] = c
		p.states[c.GetName()] = &sourceState{}
	}
	return p
}

// Crawler returns the crawler registered for source
func (p *Poller) Crawler(source string) (crawler.Crawler, bool) {
	c, ok := p.byName[source]
	return c, ok
}

// SeenCount returns the number of keys recorded by this process
func (p *Poller) SeenCount() int {
	return p.seen.Len()
}

// FetchLatest returns the latest posts of source, most recent first.
// Failures are logged and reported as an empty result, never as an error.
func (p *Poller) FetchLatest(ctx context.Context, source string) []crawler.Post {
	c, ok := p.byName[source]
	if !ok {
		p.log.Warn().Str("source", source).Msg("Unknown source")
		return []crawler.Post{}
	}

	// the fetch is shared, so one caller going away must not fail the others;
	// navigation timeouts still bound it
	fetchCtx := context.WithoutCancel(ctx)
	v, err, shared := p.group.Do(source, func() (interface{}, error) {
		return c.FetchPosts(fetchCtx)
	})
	if err != nil {
		p.log.Warn().
			Err(err).
			Str("source", source).
			Str("error_type", string(errors.TypeOf(err))).
			Msg("Fetch failed, will try again next cycle")
		return []crawler.Post{}
	}

	fetched := v.([]crawler.Post)
	if max := c.GetSource().MaxPosts; max > 0 && len(fetched) > max {
		fetched = fetched[:max]
	}

	// shared results must not alias between callers
	posts := make([]crawler.Post, len(fetched))
	copy(posts, fetched)

	p.log.Debug().
		Str("source", source).
		Int("count", len(posts)).
		Bool("shared", shared).
		Msg("Fetched posts")

	return posts
}

// PollAndDeliver publishes every post of source that was not delivered before
// and returns how many were published. Polls of the same source never overlap.
func (p *Poller) PollAndDeliver(ctx context.Context, source string) int {
	state, ok := p.states[source]
	if !ok {
		p.log.Warn().Str("source", source).Msg("Unknown source")
		return 0
	}
	state.mu.Lock()
	defer state.mu.Unlock()

	if r, ok := p.publisher.(publisher.Readier); ok && !r.Ready() {
		p.log.Debug().Str("source", source).Msg("Publisher not ready, skipping poll")
		return 0
	}

	posts := p.FetchLatest(ctx, source)

	priming := p.opts.PrimeOnStart && !state.primed
	if priming && len(posts) > 0 {
		state.primed = true
	}

	delivered := 0
	for _, post := range posts {
		key := source + ":" + post.Key(p.opts.KeyMode)

		known, err := p.seen.Contains(ctx, key)
		if err != nil {
			p.log.Error().
				Err(errors.NewStore(source, "failed to look up post", err)).
				Str("title", post.Title).
				Msg("Skipping post")
			continue
		}
		if known {
			continue
		}

		if !priming {
			err := p.publisher.Publish(ctx, post)
			if stderrors.Is(err, publisher.ErrNotReady) {
				// left unmarked so the next cycle offers it again
				p.log.Warn().Str("source", source).Str("title", post.Title).Msg("Publisher not ready, post kept for next cycle")
				continue
			}
			if err != nil {
				p.log.Error().
					Err(err).
					Str("source", source).
					Str("title", post.Title).
					Msg("Failed to publish post")
			} else {
				delivered++
				p.log.Info().
					Str("source", source).
					Str("title", post.Title).
					Str("link", post.Link).
					Msg("Delivered new post")
			}
		}

		// delivery is at-most-once: a failed publish is still recorded
		if _, err := p.seen.Add(ctx, key); err != nil {
			p.log.Error().
				Err(errors.NewStore(source, "failed to record post", err)).
				Str("title", post.Title).
				Msg("Post may be delivered again")
		}
	}

	if priming && len(posts) > 0 {
		p.log.Info().Str("source", source).Int("count", len(posts)).Msg("Primed seen set without delivering")
	}

	return delivered
}

// PollAll polls every source in registration order and returns the number of delivered posts
func (p *Poller) PollAll(ctx context.Context) int {
	start := time.Now()

	total := 0
	for _, c := range p.crawlers {
		if ctx.Err() != nil {
			break
		}
		total += p.PollAndDeliver(ctx, c.GetName())
	}

	if t, ok := p.publisher.(publisher.Trimmer); ok {
		if err := t.TrimStreams(ctx); err != nil {
			p.log.Error().Err(err).Msg("Stream trimming failed")
		}
	}

	p.log.Info().
		Int("delivered", total).
		Int("seen", p.seen.Len()).
		Dur("elapsed", time.Since(start)).
		Msg("Poll cycle finished")

	return total
}
