// Package command maps the bot's text commands to replies.
package command

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"cafenotice/noticebot/internal/coupon"
	"cafenotice/noticebot/internal/crawler"
	"cafenotice/noticebot/logger"

	"golang.org/x/time/rate"
)

// Prefix starts every command
const Prefix = "!"

// Embed colours
const (
	ColorUpdate = 0x00bfff
	ColorCoupon = 0x00ff99
	ColorHelp   = 0x00ffff
)

// Command names
const (
	CmdNotice     = "공지"
	CmdCouponList = "쿠폰목록"
	CmdHelp       = "명령어"
)

// UnavailableText is the reply when a source returned nothing
const UnavailableText = "불러올 수 없습니다 😢"

// maxDescription keeps replies under the chat embed description limit
const maxDescription = 4000

// Reply is a transport-neutral command response. Content replies are plain
// text; otherwise the fields describe an embed.
type Reply struct {
	Content     string
	Title       string
	Description string
	URL         string
	Color       int
}

// Fetcher is the part of the poller the dispatcher needs
type Fetcher interface {
	FetchLatest(ctx context.Context, source string) []crawler.Post
	Crawler(source string) (crawler.Crawler, bool)
}

// Dispatcher parses messages and builds replies
type Dispatcher struct {
	fetcher    Fetcher
	ratePerMin int
	log        *logger.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewDispatcher creates a dispatcher; ratePerMin <= 0 disables throttling
func NewDispatcher(fetcher Fetcher, ratePerMin int) *Dispatcher {
	return &Dispatcher{
		fetcher:    fetcher,
		ratePerMin: ratePerMin,
		log:        logger.ForCommand(),
		limiters:   make(map[string]*rate.Limiter),
	}
}

// Parse splits a message into command and argument.
// ok is false when the message is not a command.
func Parse(content string) (cmd, arg string, ok bool) {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, Prefix) {
		return "", "", false
	}

	fields := strings.Fields(strings.TrimPrefix(content, Prefix))
	if len(fields) == 0 {
		return "", "", false
	}
	if len(fields) > 1 {
		arg = fields[1]
	}
	return fields[0], arg, true
}

// Handle runs the command in content for a message posted in channelID.
// It returns nil when the message is not a known command or was throttled.
func (d *Dispatcher) Handle(ctx context.Context, channelID, content string) *Reply {
	cmd, arg, ok := Parse(content)
	if !ok {
		return nil
	}

	var handler func(context.Context, string) *Reply
	switch cmd {
	case CmdNotice:
		handler = d.notice
	case CmdCouponList:
		handler = d.couponList
	case CmdHelp:
		handler = func(context.Context, string) *Reply { return Help() }
	default:
		return nil
	}

	if !d.allow(channelID) {
		d.log.Debug().Str("channel", channelID).Str("command", cmd).Msg("Command throttled")
		return nil
	}

	d.log.Info().Str("channel", channelID).Str("command", cmd).Str("arg", arg).Msg("Handling command")
	return handler(ctx, arg)
}

func (d *Dispatcher) allow(channelID string) bool {
	if d.ratePerMin <= 0 {
		return true
	}

	d.mu.Lock()
	limiter, ok := d.limiters[channelID]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(d.ratePerMin)), d.ratePerMin)
		d.limiters[channelID] = limiter
	}
	d.mu.Unlock()

	return limiter.Allow()
}

// notice lists the latest posts of the update feed, or the coupon feed for "쿠폰"
func (d *Dispatcher) notice(ctx context.Context, arg string) *Reply {
	source, title, color := crawler.SourceUpdate, "📢 최신 업데이트 공지", ColorUpdate
	if arg == "쿠폰" {
		source, title, color = crawler.SourceCoupon, "🎁 최신 쿠폰 공지", ColorCoupon
	}

	posts := d.fetcher.FetchLatest(ctx, source)
	if len(posts) == 0 {
		return &Reply{Content: UnavailableText}
	}

	lines := make([]string, 0, len(posts))
	for _, p := range posts {
		lines = append(lines, fmt.Sprintf("• [%s](%s)", p.Title, p.Link))
	}

	return &Reply{
		Title:       title,
		Description: truncate(strings.Join(lines, "\n\n")),
		Color:       color,
	}
}

// couponList lists coupon posts with the code and expiry mined from each article
func (d *Dispatcher) couponList(ctx context.Context, _ string) *Reply {
	posts := d.fetcher.FetchLatest(ctx, crawler.SourceCoupon)
	if len(posts) == 0 {
		return &Reply{Content: UnavailableText}
	}

	var textFn coupon.TextFunc
	if c, ok := d.fetcher.Crawler(crawler.SourceCoupon); ok {
		textFn = c.FetchText
	}

	candidates := coupon.ListCandidates(ctx, posts, textFn)

	lines := make([]string, 0, len(candidates))
	for _, c := range candidates {
		lines = append(lines, fmt.Sprintf("• [%s](%s)\n코드: `%s` · 기간: %s", c.Post.Title, c.Post.Link, c.Code, c.Expiry))
	}

	return &Reply{
		Title:       "🎟️ 쿠폰 목록",
		Description: truncate(strings.Join(lines, "\n\n")),
		Color:       ColorCoupon,
	}
}

// Help returns the static command list
func Help() *Reply {
	return &Reply{
		Title: "📜 사용 가능한 명령어",
		Description: strings.Join([]string{
			"`!공지 업데이트` - 최신 업데이트 공지 보기",
			"`!공지 쿠폰` - 최신 쿠폰 공지 보기",
			"`!쿠폰목록` - 쿠폰 코드와 사용 기간 모아보기",
			"`!명령어` - 명령어 목록 보기",
		}, "\n"),
		Color: ColorHelp,
	}
}

func truncate(s string) string {
	if utf8.RuneCountInString(s) <= maxDescription {
		return s
	}
	return string([]rune(s)[:maxDescription-1]) + "…"
}
