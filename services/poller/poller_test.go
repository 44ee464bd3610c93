package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"cafenotice/noticebot/internal/crawler"
	noticeerrors "cafenotice/noticebot/pkg/errors"
	"cafenotice/noticebot/services/publisher"
	"cafenotice/noticebot/services/seen"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockCrawler implements the crawler.Crawler interface for testing
type MockCrawler struct {
	mu       sync.Mutex
	source   crawler.Source
	posts    []crawler.Post
	fetchErr error
	calls    atomic.Int32
	delay    time.Duration
	honorCtx bool
}

var _ crawler.Crawler = (*MockCrawler)(nil)

func NewMockCrawler(name string, maxPosts int) *MockCrawler {
	return &MockCrawler{source: crawler.Source{Name: name, MaxPosts: maxPosts}}
}

func (m *MockCrawler) SetPosts(titles ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.posts = m.posts[:0]
	for _, title := range titles {
		m.posts = append(m.posts, crawler.Post{
			Title:  title,
			Link:   "https://m.cafe.naver.com/ca-fe/web/cafes/1/articles/" + title,
			Source: m.source.Name,
		})
	}
}

func (m *MockCrawler) FetchPosts(ctx context.Context) ([]crawler.Post, error) {
	m.calls.Add(1)
	if m.delay > 0 {
		if m.honorCtx {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(m.delay):
			}
		} else {
			time.Sleep(m.delay)
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	return append([]crawler.Post(nil), m.posts...), nil
}

func (m *MockCrawler) FetchText(ctx context.Context, link string) (string, error) {
	return "", nil
}

func (m *MockCrawler) GetName() string {
	return m.source.Name
}

func (m *MockCrawler) GetSource() crawler.Source {
	return m.source
}

// MockPublisher implements the publisher.Publisher interface for testing
type MockPublisher struct {
	mu      sync.Mutex
	posts   []crawler.Post
	err     error
	trimmed int
}

var _ publisher.Publisher = (*MockPublisher)(nil)

func (m *MockPublisher) Publish(_ context.Context, post crawler.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.posts = append(m.posts, post)
	return m.err
}

func (m *MockPublisher) TrimStreams(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trimmed++
	return nil
}

func (m *MockPublisher) Close() error {
	return nil
}

func (m *MockPublisher) Titles() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	titles := make([]string, 0, len(m.posts))
	for _, p := range m.posts {
		titles = append(titles, p.Title)
	}
	return titles
}

// gatedPublisher is a MockPublisher that can report itself unready
type gatedPublisher struct {
	MockPublisher
	ready atomic.Bool
}

func (g *gatedPublisher) Ready() bool {
	return g.ready.Load()
}

// failingStore fails every lookup
type failingStore struct{}

func (failingStore) Add(context.Context, string) (bool, error) {
	return false, errors.New("memcache down")
}

func (failingStore) Contains(context.Context, string) (bool, error) {
	return false, errors.New("memcache down")
}

func (failingStore) Len() int { return 0 }

func TestPollAndDeliverSkipsSeenTitles(t *testing.T) {
	ctx := context.Background()
	update := NewMockCrawler(crawler.SourceUpdate, 5)
	pub := &MockPublisher{}
	p := NewPoller([]crawler.Crawler{update}, seen.NewMemoryStore(), pub, Options{})

	update.SetPosts("A", "B")
	assert.Equal(t, 2, p.PollAndDeliver(ctx, crawler.SourceUpdate))
	assert.Equal(t, []string{"A", "B"}, pub.Titles())

	update.SetPosts("A", "C")
	assert.Equal(t, 1, p.PollAndDeliver(ctx, crawler.SourceUpdate))
	assert.Equal(t, []string{"A", "B", "C"}, pub.Titles())

	// nothing new
	assert.Equal(t, 0, p.PollAndDeliver(ctx, crawler.SourceUpdate))
	assert.Equal(t, 3, p.SeenCount())
}

func TestPollAndDeliverLinkKey(t *testing.T) {
	ctx := context.Background()
	update := NewMockCrawler(crawler.SourceUpdate, 5)
	pub := &MockPublisher{}
	p := NewPoller([]crawler.Crawler{update}, seen.NewMemoryStore(), pub, Options{KeyMode: "link"})

	update.posts = []crawler.Post{{Title: "공지", Link: "https://m.cafe.naver.com/ca-fe/web/cafes/1/articles/10"}}
	assert.Equal(t, 1, p.PollAndDeliver(ctx, crawler.SourceUpdate))

	// same article, edited title
	update.posts = []crawler.Post{{Title: "공지 (수정)", Link: "https://m.cafe.naver.com/ca-fe/web/cafes/1/articles/10?menuId=67"}}
	assert.Equal(t, 0, p.PollAndDeliver(ctx, crawler.SourceUpdate))

	// same title, new article
	update.posts = []crawler.Post{{Title: "공지", Link: "https://m.cafe.naver.com/ca-fe/web/cafes/1/articles/11"}}
	assert.Equal(t, 1, p.PollAndDeliver(ctx, crawler.SourceUpdate))
}

func TestSeenSetIsPerSource(t *testing.T) {
	ctx := context.Background()
	update := NewMockCrawler(crawler.SourceUpdate, 5)
	coupon := NewMockCrawler(crawler.SourceCoupon, 5)
	pub := &MockPublisher{}
	p := NewPoller([]crawler.Crawler{update, coupon}, seen.NewMemoryStore(), pub, Options{})

	update.SetPosts("같은 제목")
	coupon.SetPosts("같은 제목")

	assert.Equal(t, 2, p.PollAll(ctx))
	require.Len(t, pub.posts, 2)
	// update source is processed before coupon source
	assert.Equal(t, crawler.SourceUpdate, pub.posts[0].Source)
	assert.Equal(t, crawler.SourceCoupon, pub.posts[1].Source)
	assert.Equal(t, 1, pub.trimmed)
}

func TestFetchLatestFailureReturnsEmpty(t *testing.T) {
	update := NewMockCrawler(crawler.SourceUpdate, 5)
	update.fetchErr = noticeerrors.NewFetch(crawler.SourceUpdate, "navigation failed", context.DeadlineExceeded)
	pub := &MockPublisher{}
	p := NewPoller([]crawler.Crawler{update}, seen.NewMemoryStore(), pub, Options{})

	var posts []crawler.Post
	assert.NotPanics(t, func() {
		posts = p.FetchLatest(context.Background(), crawler.SourceUpdate)
	})
	assert.Empty(t, posts)
	assert.Equal(t, 0, p.PollAndDeliver(context.Background(), crawler.SourceUpdate))
	assert.Empty(t, pub.posts)

	// the source recovers on the next cycle
	update.fetchErr = nil
	update.SetPosts("A")
	assert.Equal(t, 1, p.PollAndDeliver(context.Background(), crawler.SourceUpdate))
}

func TestFetchLatestUnknownSource(t *testing.T) {
	p := NewPoller(nil, seen.NewMemoryStore(), &MockPublisher{}, Options{})
	assert.Empty(t, p.FetchLatest(context.Background(), "events"))
	assert.Equal(t, 0, p.PollAndDeliver(context.Background(), "events"))
}

func TestFetchLatestNeverExceedsMaxPosts(t *testing.T) {
	update := NewMockCrawler(crawler.SourceUpdate, 3)
	update.SetPosts("1", "2", "3", "4", "5", "6")
	p := NewPoller([]crawler.Crawler{update}, seen.NewMemoryStore(), &MockPublisher{}, Options{})

	posts := p.FetchLatest(context.Background(), crawler.SourceUpdate)
	assert.Len(t, posts, 3)
	assert.Equal(t, "1", posts[0].Title)
}

func TestFetchLatestSharesInFlightFetch(t *testing.T) {
	update := NewMockCrawler(crawler.SourceUpdate, 5)
	update.SetPosts("A")
	update.delay = 100 * time.Millisecond
	p := NewPoller([]crawler.Crawler{update}, seen.NewMemoryStore(), &MockPublisher{}, Options{})

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			posts := p.FetchLatest(context.Background(), crawler.SourceUpdate)
			assert.Len(t, posts, 1)
		}()
		time.Sleep(10 * time.Millisecond)
	}
	wg.Wait()

	assert.Equal(t, int32(1), update.calls.Load())
}

func TestConcurrentPollsDeliverOnce(t *testing.T) {
	update := NewMockCrawler(crawler.SourceUpdate, 5)
	update.SetPosts("A", "B", "C")
	pub := &MockPublisher{}
	p := NewPoller([]crawler.Crawler{update}, seen.NewMemoryStore(), pub, Options{})

	var wg sync.WaitGroup
	var total atomic.Int32
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			total.Add(int32(p.PollAndDeliver(context.Background(), crawler.SourceUpdate)))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(3), total.Load())
	assert.ElementsMatch(t, []string{"A", "B", "C"}, pub.Titles())
}

func TestPrimeOnStart(t *testing.T) {
	ctx := context.Background()
	update := NewMockCrawler(crawler.SourceUpdate, 5)
	pub := &MockPublisher{}
	p := NewPoller([]crawler.Crawler{update}, seen.NewMemoryStore(), pub, Options{PrimeOnStart: true})

	// a failed first fetch does not count as priming
	update.fetchErr = errors.New("timeout")
	assert.Equal(t, 0, p.PollAndDeliver(ctx, crawler.SourceUpdate))

	update.fetchErr = nil
	update.SetPosts("A", "B")
	assert.Equal(t, 0, p.PollAndDeliver(ctx, crawler.SourceUpdate))
	assert.Empty(t, pub.posts)

	update.SetPosts("C", "A", "B")
	assert.Equal(t, 1, p.PollAndDeliver(ctx, crawler.SourceUpdate))
	assert.Equal(t, []string{"C"}, pub.Titles())
}

func TestPublisherErrorKeepsPostSeen(t *testing.T) {
	ctx := context.Background()
	update := NewMockCrawler(crawler.SourceUpdate, 5)
	update.SetPosts("A")
	pub := &MockPublisher{err: errors.New("discord unavailable")}
	p := NewPoller([]crawler.Crawler{update}, seen.NewMemoryStore(), pub, Options{})

	assert.Equal(t, 0, p.PollAndDeliver(ctx, crawler.SourceUpdate))

	pub.err = nil
	assert.Equal(t, 0, p.PollAndDeliver(ctx, crawler.SourceUpdate))
	assert.Len(t, pub.posts, 1)
}

func TestStoreErrorSkipsPost(t *testing.T) {
	update := NewMockCrawler(crawler.SourceUpdate, 5)
	update.SetPosts("A")
	pub := &MockPublisher{}
	p := NewPoller([]crawler.Crawler{update}, failingStore{}, pub, Options{})

	assert.Equal(t, 0, p.PollAndDeliver(context.Background(), crawler.SourceUpdate))
	assert.Empty(t, pub.posts)
}

func TestNotReadyPublisherLeavesPostUnseen(t *testing.T) {
	ctx := context.Background()
	update := NewMockCrawler(crawler.SourceUpdate, 5)
	update.SetPosts("A")
	pub := &MockPublisher{err: publisher.ErrNotReady}
	p := NewPoller([]crawler.Crawler{update}, seen.NewMemoryStore(), pub, Options{})

	assert.Equal(t, 0, p.PollAndDeliver(ctx, crawler.SourceUpdate))
	assert.Equal(t, 0, p.SeenCount())

	// the channel shows up later
	pub.err = nil
	assert.Equal(t, 1, p.PollAndDeliver(ctx, crawler.SourceUpdate))
	assert.Equal(t, 1, p.SeenCount())
	assert.Equal(t, 0, p.PollAndDeliver(ctx, crawler.SourceUpdate))
}

func TestUnreadyPublisherSkipsPoll(t *testing.T) {
	ctx := context.Background()
	update := NewMockCrawler(crawler.SourceUpdate, 5)
	update.SetPosts("A", "B")
	pub := &gatedPublisher{}
	p := NewPoller([]crawler.Crawler{update}, seen.NewMemoryStore(), pub, Options{})

	assert.Equal(t, 0, p.PollAndDeliver(ctx, crawler.SourceUpdate))
	assert.Equal(t, int32(0), update.calls.Load())
	assert.Equal(t, 0, p.SeenCount())

	pub.ready.Store(true)
	assert.Equal(t, 2, p.PollAndDeliver(ctx, crawler.SourceUpdate))
	assert.Equal(t, []string{"A", "B"}, pub.Titles())
}

func TestSharedFetchSurvivesCallerCancel(t *testing.T) {
	update := NewMockCrawler(crawler.SourceUpdate, 5)
	update.SetPosts("A")
	update.delay = 100 * time.Millisecond
	update.honorCtx = true
	p := NewPoller([]crawler.Crawler{update}, seen.NewMemoryStore(), &MockPublisher{}, Options{})

	ctx, cancel := context.WithCancel(context.Background())

	first := make(chan []crawler.Post, 1)
	go func() { first <- p.FetchLatest(ctx, crawler.SourceUpdate) }()
	time.Sleep(10 * time.Millisecond)

	second := make(chan []crawler.Post, 1)
	go func() { second <- p.FetchLatest(context.Background(), crawler.SourceUpdate) }()
	time.Sleep(10 * time.Millisecond)

	// the caller that started the fetch goes away
	cancel()

	assert.Len(t, <-second, 1)
	<-first
	assert.Equal(t, int32(1), update.calls.Load())
}
