package helpers

import (
	"errors"
	"net/url"
	"strings"
)

// ResolveURL turns a relative href into an absolute URL under baseURL.
// Absolute links are returned unchanged.
func ResolveURL(baseURL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if strings.HasPrefix(href, "//") {
		return "https:" + href
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(href, "/")
	}
	ref, err := url.Parse(href)
	if err != nil {
		return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(href, "/")
	}
	return base.ResolveReference(ref).String()
}

// ArticleID extracts the cafe article number from a post link.
// Both "/articles/123" and "ArticleRead.nhn?articleid=123" forms are understood.
func ArticleID(link string) (string, error) {
	u, err := url.Parse(link)
	if err != nil {
		return "", err
	}
	if id := u.Query().Get("articleid"); id != "" {
		return id, nil
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, seg := range segments {
		if seg == "articles" && i+1 < len(segments) && segments[i+1] != "" {
			return segments[i+1], nil
		}
	}
	return "", errors.New("no article id in link")
}
