package features

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// ChromeSource renders pages in headless Chrome so script-built DOMs are
// visible to the page features.
type ChromeSource struct {
	execPath string
	timeout  time.Duration
	settle   time.Duration
	logger   *zap.Logger
}

// NewChromeSource returns a renderer. An empty execPath lets chromedp find
// the browser on its own.
func NewChromeSource(execPath string, timeout time.Duration, logger *zap.Logger) *ChromeSource {
	return &ChromeSource{
		execPath: execPath,
		timeout:  timeout,
		settle:   2 * time.Second,
		logger:   logger.Named("render"),
	}
}

func (c *ChromeSource) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.UserAgent(userAgent),
	)
	if c.execPath != "" {
		opts = append(opts, chromedp.ExecPath(c.execPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(c.logger.Sugar().Debugf))
	defer browserCancel()

	var (
		doc      string
		location string
	)
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body"),
		chromedp.Sleep(c.settle),
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &doc),
	)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", rawURL, err)
	}

	final, err := url.Parse(location)
	if err != nil {
		final = nil
	}
	return &Page{URL: final, Status: 200, HTML: doc}, nil
}

// renderedSource fetches over HTTP for status and redirect history, then
// swaps in the rendered DOM when the browser succeeds.
type renderedSource struct {
	http   PageSource
	render PageSource
	logger *zap.Logger
}

func (s *renderedSource) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	page, err := s.http.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if page.Status >= 400 {
		return page, nil
	}

	target := rawURL
	if page.URL != nil {
		target = page.URL.String()
	}
	rendered, err := s.render.Fetch(ctx, target)
	if err != nil {
		s.logger.Debug("render failed, using raw html", zap.String("url", target), zap.Error(err))
		return page, nil
	}
	page.HTML = rendered.HTML
	if rendered.URL != nil {
		page.URL = rendered.URL
	}
	return page, nil
}
