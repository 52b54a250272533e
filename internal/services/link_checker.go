package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// CheckResult captures the outcome of probing one URL.
type CheckResult struct {
	URL        string    `json:"url"`
	Valid      bool      `json:"valid"`
	StatusCode int       `json:"statusCode,omitempty"`
	Title      string    `json:"title,omitempty"`
	Error      string    `json:"error,omitempty"`
	CheckedAt  time.Time `json:"checkedAt"`
}

// CheckSummary aggregates a batch of probe results.
type CheckSummary struct {
	Total   int           `json:"total"`
	Valid   int           `json:"valid"`
	Broken  int           `json:"broken"`
	Results []CheckResult `json:"results"`
}

// LinkCheckerConfig tunes outbound probing.
type LinkCheckerConfig struct {
	Concurrency    int
	RequestsPerSec float64
	Timeout        time.Duration
	UserAgent      string
}

func DefaultLinkCheckerConfig() LinkCheckerConfig {
	return LinkCheckerConfig{
		Concurrency:    5,
		RequestsPerSec: 2.0,
		Timeout:        10 * time.Second,
		UserAgent:      "linktree-check/1.0",
	}
}

// LinkChecker probes bookmark URLs for liveness. Probes prefer HEAD and
// fall back to GET when the server rejects HEAD outright.
type LinkChecker struct {
	client      *http.Client
	rateLimiter *rate.Limiter
	concurrency int
	userAgent   string
}

func NewLinkChecker(cfg LinkCheckerConfig) *LinkChecker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	if cfg.RequestsPerSec <= 0 {
		cfg.RequestsPerSec = 2.0
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultLinkCheckerConfig().UserAgent
	}
	return &LinkChecker{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), 1),
		concurrency: cfg.Concurrency,
		userAgent:   cfg.UserAgent,
	}
}

// Check probes a single URL.
func (c *LinkChecker) Check(ctx context.Context, url string) CheckResult {
	result := CheckResult{URL: url, CheckedAt: time.Now()}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		result.Error = err.Error()
		return result
	}

	resp, err := c.do(ctx, http.MethodHead, url)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	resp.Body.Close()

	// Some servers refuse HEAD; retry with GET before declaring broken.
	if resp.StatusCode == http.StatusMethodNotAllowed || resp.StatusCode == http.StatusNotImplemented {
		getResp, err := c.do(ctx, http.MethodGet, url)
		if err != nil {
			result.Error = err.Error()
			return result
		}
		defer getResp.Body.Close()
		result.StatusCode = getResp.StatusCode
		result.Valid = getResp.StatusCode < 400
		if result.Valid && strings.Contains(getResp.Header.Get("Content-Type"), "text/html") {
			result.Title = extractPageTitle(getResp)
		}
		return result
	}

	result.StatusCode = resp.StatusCode
	result.Valid = resp.StatusCode < 400
	return result
}

// CheckAll probes urls with bounded concurrency, preserving input order
// in the results.
func (c *LinkChecker) CheckAll(ctx context.Context, urls []string) *CheckSummary {
	results := make([]CheckResult, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, url := range urls {
		i, url := i, url
		g.Go(func() error {
			results[i] = c.Check(gctx, url)
			return nil
		})
	}
	g.Wait()

	summary := &CheckSummary{Total: len(urls), Results: results}
	for _, r := range results {
		if r.Valid {
			summary.Valid++
		} else {
			summary.Broken++
		}
	}
	return summary
}

func (c *LinkChecker) do(ctx context.Context, method, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	return c.client.Do(req)
}

func extractPageTitle(resp *http.Response) string {
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return ""
	}
	if title := doc.Find("meta[property='og:title']").AttrOr("content", ""); title != "" {
		return strings.TrimSpace(title)
	}
	if title := doc.Find("title").Text(); title != "" {
		return strings.TrimSpace(title)
	}
	return ""
}
