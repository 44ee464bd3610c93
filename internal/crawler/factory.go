package crawler

import (
	"cafenotice/noticebot/config"
	"cafenotice/noticebot/logger"
)

// NewFetcher creates the page fetcher selected by FETCH_MODE
func NewFetcher(cfg config.Config) Fetcher {
	if cfg.FetchMode == config.FetchModeHTTP {
		logger.Info("Using plain HTTP fetch")
		return HTTPFetcher{}
	}

	logger.Info("Using headless Chrome fetch (exec path: %q)", cfg.ChromePath)
	return NewChromeFetcher(cfg.ChromePath, cfg.NavTimeout, cfg.SettleDelay, cfg.RetryDelay)
}

// CreateCrawlers creates the update and coupon crawlers, in that order
func CreateCrawlers(cfg config.Config, fetcher Fetcher) []Crawler {
	sources := []Source{
		{
			Name:     SourceUpdate,
			Label:    "업데이트",
			URL:      cfg.UpdateURL,
			BaseURL:  cfg.CafeBaseURL,
			Selector: cfg.PostSelector,
			MaxPosts: cfg.MaxPosts,
		},
		{
			Name:     SourceCoupon,
			Label:    "쿠폰",
			URL:      cfg.CouponURL,
			BaseURL:  cfg.CafeBaseURL,
			Selector: cfg.PostSelector,
			MaxPosts: cfg.MaxPosts,
		},
	}

	crawlers := make([]Crawler, 0, len(sources))
	for _, src := range sources {
		crawlers = append(crawlers, NewNoticeCrawler(src, fetcher))
		logger.Debug("Crawler %s with URL %s", src.Name, src.URL)
	}

	return crawlers
}
