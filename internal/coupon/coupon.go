// Package coupon mines coupon codes and expiry dates out of free-form notice text.
// Matching is heuristic and never fails; unknown values come back as placeholders.
package coupon

import (
	"context"
	"regexp"
	"strings"

	"cafenotice/noticebot/internal/crawler"
)

// Placeholders returned when nothing could be extracted
const (
	NoCode   = "코드 없음"
	NoExpiry = "기간 정보 없음"
)

const (
	datePattern = `\d{4}\s*[.\-/년]\s*\d{1,2}\s*[.\-/월]\s*\d{1,2}\s*일?` +
		`|\d{1,2}\s*월\s*\d{1,2}\s*일` +
		`|\d{1,2}[./]\d{1,2}`

	// a date with an optional weekday and time, e.g. "2024.01.31(수) 23:59"
	pointPattern = `(?:` + datePattern + `)(?:\s*\([^)]{1,4}\))?(?:\s*\d{1,2}:\d{2})?`

	rangePattern = pointPattern + `(?:\s*[~～\-–]\s*` + pointPattern + `)?`
)

var (
	// "쿠폰", "쿠폰번호", "쿠폰 코드" name the code explicitly
	couponCodeRe = regexp.MustCompile(
		`쿠폰\s*(?:번호|코드)?\s*(?:는|은)?\s*[:：]?\s*([A-Za-z0-9]{4,20})(?:[^A-Za-z0-9]|$)`)

	// a bare "코드" or "code" also shows up in prose ("QR code scanning")
	genericCodeRe = regexp.MustCompile(
		`(?i)(?:코드|code)\s*(?:는|은)?\s*[:：]?\s*([A-Za-z0-9]{4,20})(?:[^A-Za-z0-9]|$)`)

	bareCodeRe = regexp.MustCompile(`\b[A-Z0-9]{6,20}\b`)

	keywordExpiryRe = regexp.MustCompile(
		`(?i)(?:유효\s*기간|사용\s*기간|기간|만료일?|until|expires?)\s*(?:은|는)?\s*[:：]?\s*(` + rangePattern + `)`)

	untilExpiryRe = regexp.MustCompile(`(` + pointPattern + `)\s*까지`)

	anyExpiryRe = regexp.MustCompile(rangePattern)

	letterRe = regexp.MustCompile(`[A-Za-z]`)
	digitRe  = regexp.MustCompile(`[0-9]`)
)

// ExtractCouponCode returns the first coupon-like code and expiry found in text
func ExtractCouponCode(text string) (code, expiry string) {
	return extractCode(text), extractExpiry(text)
}

func extractCode(text string) string {
	for _, m := range couponCodeRe.FindAllStringSubmatch(text, -1) {
		token := m[1]
		if letterRe.MatchString(token) || len(token) >= 8 {
			return token
		}
	}

	for _, m := range genericCodeRe.FindAllStringSubmatch(text, -1) {
		if token := m[1]; digitRe.MatchString(token) {
			return token
		}
	}

	for _, token := range bareCodeRe.FindAllString(text, -1) {
		if letterRe.MatchString(token) && digitRe.MatchString(token) {
			return token
		}
	}

	return NoCode
}

func extractExpiry(text string) string {
	if m := keywordExpiryRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := untilExpiryRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1]) + "까지"
	}
	if m := anyExpiryRe.FindString(text); m != "" {
		return strings.TrimSpace(m)
	}
	return NoExpiry
}

// Candidate is a coupon post with its extracted code and expiry
type Candidate struct {
	Post   crawler.Post
	Code   string
	Expiry string
}

// TextFunc loads the body text of a post
type TextFunc func(ctx context.Context, link string) (string, error)

// ListCandidates extracts code and expiry for every post. When textFn is set
// the article body is searched together with the title; a failed body load
// falls back to the title alone.
func ListCandidates(ctx context.Context, posts []crawler.Post, textFn TextFunc) []Candidate {
	candidates := make([]Candidate, 0, len(posts))
	for _, post := range posts {
		text := post.Title
		if textFn != nil && ctx.Err() == nil {
			if body, err := textFn(ctx, post.Link); err == nil && body != "" {
				text = post.Title + "\n" + body
			}
		}

		code, expiry := ExtractCouponCode(text)
		candidates = append(candidates, Candidate{
			Post:   post,
			Code:   code,
			Expiry: expiry,
		})
	}
	return candidates
}
