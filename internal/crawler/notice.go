package crawler

import (
	"context"
	"strings"

	"cafenotice/noticebot/helpers"
	"cafenotice/noticebot/logger"
	"cafenotice/noticebot/pkg/errors"

	"github.com/PuerkitoBio/goquery"
)

// DefaultBodySelector matches the article body container on cafe article pages
const DefaultBodySelector = "div.se-main-container, div.post_ct, #postContent, article"

// NoticeCrawler extracts post anchors from a cafe menu page
type NoticeCrawler struct {
	BaseCrawler
	log *logger.Logger
}

// NewNoticeCrawler creates a crawler for src that loads pages through fetcher
func NewNoticeCrawler(src Source, fetcher Fetcher) *NoticeCrawler {
	if src.BodySelector == "" {
		src.BodySelector = DefaultBodySelector
	}
	return &NoticeCrawler{
		BaseCrawler: BaseCrawler{
			Src:     src,
			Fetcher: fetcher,
		},
		log: logger.ForCrawler(src.Name),
	}
}

// FetchPosts fetches the menu page and returns up to MaxPosts posts in page order
func (c *NoticeCrawler) FetchPosts(ctx context.Context) ([]Post, error) {
	body, err := c.Fetcher.Fetch(ctx, c.Src.URL)
	if err != nil {
		return nil, err
	}

	doc, err := c.createDocument(body)
	if err != nil {
		return nil, err
	}

	selections := doc.Find(c.Src.Selector)
	if selections.Length() == 0 {
		return nil, errors.NewParsing(c.Src.Name, "no element matched "+c.Src.Selector, nil)
	}

	posts := c.processPosts(selections, c.processPost)
	c.log.Debug().
		Int("matched", selections.Length()).
		Int("kept", len(posts)).
		Msg("Parsed menu page")
	if len(posts) == 0 {
		return nil, errors.NewParsing(c.Src.Name, "matched elements carried no title or link", nil)
	}

	return posts, nil
}

// FetchText fetches an article page and returns the text of its body container
func (c *NoticeCrawler) FetchText(ctx context.Context, link string) (string, error) {
	body, err := c.Fetcher.Fetch(ctx, link)
	if err != nil {
		return "", err
	}

	doc, err := c.createDocument(body)
	if err != nil {
		return "", err
	}

	sel := doc.Find(c.Src.BodySelector).First()
	if sel.Length() == 0 {
		sel = doc.Find("body")
	}
	sel = sel.Clone()
	sel.Find("script, style, noscript").Remove()

	return normalizeText(sel.Text()), nil
}

// processPost builds a post from one matched anchor
func (c *NoticeCrawler) processPost(s *goquery.Selection) *Post {
	title := c.titleOf(s)
	if title == "" {
		return nil
	}

	href, exists := s.Attr("href")
	if !exists {
		href, exists = s.Find("a[href]").First().Attr("href")
	}
	if !exists {
		return nil
	}

	link := helpers.ResolveURL(c.Src.BaseURL, href)
	if link == "" {
		return nil
	}

	return &Post{
		Title:  title,
		Link:   link,
		Source: c.Src.Name,
	}
}

func (c *NoticeCrawler) titleOf(s *goquery.Selection) string {
	if c.Src.TitleSelector != "" {
		if t := s.Find(c.Src.TitleSelector).First(); t.Length() > 0 {
			if title := collapseSpaces(t.Text()); title != "" {
				return title
			}
		}
	}

	if title := collapseSpaces(s.Text()); title != "" {
		return title
	}

	if attr, ok := s.Attr("title"); ok {
		return collapseSpaces(attr)
	}
	return ""
}

// collapseSpaces trims s and folds every whitespace run into one space
func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// normalizeText keeps line structure but drops blank lines and padding
func normalizeText(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	out := lines[:0]
	for _, line := range lines {
		if line = collapseSpaces(line); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
