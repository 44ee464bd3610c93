package crawler

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"cafenotice/noticebot/helpers"
	"cafenotice/noticebot/logger"
	"cafenotice/noticebot/pkg/errors"

	"github.com/chromedp/chromedp"
)

// ChromeFetcher renders pages in a headless Chrome driven by chromedp.
// Every fetch launches its own browser and tears it down before returning.
type ChromeFetcher struct {
	ExecPath    string
	NavTimeout  time.Duration
	SettleDelay time.Duration
	RetryDelay  time.Duration

	// the browser is not shared between fetches, but launching several at
	// once exhausts memory on small hosts
	mu  sync.Mutex
	log *logger.Logger
}

// NewChromeFetcher creates a chromedp-backed fetcher
func NewChromeFetcher(execPath string, navTimeout, settleDelay, retryDelay time.Duration) *ChromeFetcher {
	if navTimeout <= 0 {
		navTimeout = 60 * time.Second
	}
	return &ChromeFetcher{
		ExecPath:    execPath,
		NavTimeout:  navTimeout,
		SettleDelay: settleDelay,
		RetryDelay:  retryDelay,
		log:         logger.ForComponent("chrome"),
	}
}

// Fetch renders url and returns the page HTML.
// A retryable failure is attempted once more after RetryDelay when it is set.
func (f *ChromeFetcher) Fetch(ctx context.Context, url string) (io.Reader, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	html, err := f.render(ctx, url)
	if err != nil && f.RetryDelay > 0 && errors.IsRetryable(err) {
		f.log.Warn().Err(err).Str("url", url).Dur("delay", f.RetryDelay).Msg("Render failed, retrying once")

		select {
		case <-ctx.Done():
			return nil, errors.NewFetch(url, "cancelled before retry", ctx.Err())
		case <-time.After(f.RetryDelay):
		}
		html, err = f.render(ctx, url)
	}
	if err != nil {
		return nil, err
	}

	return strings.NewReader(html), nil
}

func (f *ChromeFetcher) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-zygote", true),
		chromedp.UserAgent(helpers.RandomUserAgent()),
		chromedp.WindowSize(412, 915),
	)
	if f.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(f.ExecPath))
	}
	return opts
}

// render acquires a browser, loads url and releases the browser on every path
func (f *ChromeFetcher) render(ctx context.Context, url string) (string, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, f.allocatorOptions()...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	start := time.Now()

	// An empty run only launches the browser, so launch failures are told
	// apart from navigation failures.
	if err := chromedp.Run(browserCtx); err != nil {
		return "", errors.NewBrowser(url, "failed to launch browser", err)
	}

	navCtx, cancelNav := context.WithTimeout(browserCtx, f.NavTimeout)
	defer cancelNav()

	var html string
	err := chromedp.Run(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(f.SettleDelay),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", errors.NewFetch(url, "navigation failed", err)
	}

	f.log.Debug().
		Str("url", url).
		Int("bytes", len(html)).
		Dur("elapsed", time.Since(start)).
		Msg("Rendered page")

	return html, nil
}
