package crawler

import (
	"context"
	"io"

	"cafenotice/noticebot/helpers"
	"cafenotice/noticebot/pkg/errors"
)

// HTTPFetcher loads pages with a plain GET request. It only sees the
// server-rendered HTML, which is enough for the legacy ArticleList pages.
type HTTPFetcher struct{}

// Fetch downloads url and converts the body to UTF-8
func (HTTPFetcher) Fetch(ctx context.Context, url string) (io.Reader, error) {
	body, err := helpers.FetchWithRandomHeaders(ctx, url)
	if err != nil {
		return nil, errors.NewFetch(url, "request failed", err)
	}
	return body, nil
}
