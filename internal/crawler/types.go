package crawler

import (
	"context"
	"io"

	"cafenotice/noticebot/helpers"

	"github.com/PuerkitoBio/goquery"
)

// Source names
const (
	SourceUpdate = "update"
	SourceCoupon = "coupon"
)

// Post represents one scraped cafe article
type Post struct {
	Title  string `json:"title"`
	Link   string `json:"link"`
	Source string `json:"source"`
}

// Key returns the identity used to decide whether a post was already delivered.
// mode is "title" or "link"; links are reduced to their article id when possible.
func (p Post) Key(mode string) string {
	if mode == "link" {
		if id, err := helpers.ArticleID(p.Link); err == nil {
			return "article:" + id
		}
		return p.Link
	}
	return p.Title
}

// Source is the static configuration of one cafe menu feed
type Source struct {
	Name          string
	Label         string
	URL           string
	BaseURL       string
	Selector      string
	TitleSelector string
	BodySelector  string
	MaxPosts      int
}

// Crawler interface defines the contract for source crawlers
type Crawler interface {
	// FetchPosts retrieves the latest posts of the source, most recent first
	FetchPosts(ctx context.Context) ([]Post, error)

	// FetchText retrieves the body text of a single article
	FetchText(ctx context.Context, link string) (string, error)

	// GetName returns the crawler's name for logging and identification
	GetName() string

	// GetSource returns the source configuration
	GetSource() Source
}

// Fetcher loads a page and returns its rendered HTML as UTF-8
type Fetcher interface {
	Fetch(ctx context.Context, url string) (io.Reader, error)
}

// FetcherFunc adapts a function to the Fetcher interface
type FetcherFunc func(ctx context.Context, url string) (io.Reader, error)

// Fetch calls f
func (f FetcherFunc) Fetch(ctx context.Context, url string) (io.Reader, error) {
	return f(ctx, url)
}

// ProcessorFunc defines the function signature for processing a single post element
type ProcessorFunc func(*goquery.Selection) *Post
