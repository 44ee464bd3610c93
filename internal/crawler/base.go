package crawler

import (
	"io"

	"cafenotice/noticebot/pkg/errors"

	"github.com/PuerkitoBio/goquery"
)

// BaseCrawler provides common functionality for source crawlers
type BaseCrawler struct {
	Src     Source
	Fetcher Fetcher
}

// createDocument creates a goquery document from a reader
func (c *BaseCrawler) createDocument(reader io.Reader) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return nil, errors.NewParsing(c.Src.Name, "HTML 파싱 오류", err)
	}
	return doc, nil
}

// processPosts converts matched elements to posts in document order.
// Elements without a usable title or link are skipped, repeated links are
// kept once and the result is capped at the source's MaxPosts.
func (c *BaseCrawler) processPosts(selections *goquery.Selection, processor ProcessorFunc) []Post {
	limit := c.Src.MaxPosts
	posts := make([]Post, 0, max(limit, 0))
	links := make(map[string]struct{})

	selections.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		post := processor(s)
		if post == nil {
			return true
		}
		if _, dup := links[post.Link]; dup {
			return true
		}
		links[post.Link] = struct{}{}
		posts = append(posts, *post)
		return limit <= 0 || len(posts) < limit
	})

	return posts
}

// GetName returns the crawler's name for logging
func (c *BaseCrawler) GetName() string {
	return c.Src.Name
}

// GetSource returns the source configuration
func (c *BaseCrawler) GetSource() Source {
	return c.Src
}
