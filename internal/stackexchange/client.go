package stackexchange

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"sotags/backend/internal/config"
	"sotags/backend/internal/domain"
	"sotags/backend/internal/logger"
)

const (
	defaultPageSize = 100
	defaultMaxPages = 25
	maxErrorBody    = 512
)

// tagItem 单个标签的线上格式
type tagItem struct {
	Name            string `json:"name"`
	Count           int64  `json:"count"`
	HasSynonyms     bool   `json:"has_synonyms"`
	IsModeratorOnly bool   `json:"is_moderator_only"`
	IsRequired      bool   `json:"is_required"`
}

// tagsPage /tags 接口的响应包装
type tagsPage struct {
	Items          []tagItem `json:"items"`
	HasMore        bool      `json:"has_more"`
	QuotaMax       int       `json:"quota_max"`
	QuotaRemaining int       `json:"quota_remaining"`
	Backoff        int       `json:"backoff"`
	ErrorID        int       `json:"error_id"`
	ErrorName      string    `json:"error_name"`
	ErrorMessage   string    `json:"error_message"`
}

// Client Stack Exchange 标签接口客户端
//
// 只做分页拉取，不接触存储和缓存。任意一页失败则整次调用失败，不返回部分结果。
type Client struct {
	httpClient *http.Client
	baseURL    string
	site       string
	key        string
	pageSize   int
	maxPages   int
	log        *zap.Logger
	onPage     func()
	wait       func(ctx context.Context, d time.Duration) error
}

// Option 配置客户端
type Option func(*Client)

// WithLogger 设置日志记录器
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) {
		c.log = logger.OrNop(log)
	}
}

// WithPageHook 每成功拉取一页回调一次（用于指标）
func WithPageHook(fn func()) Option {
	return func(c *Client) {
		c.onPage = fn
	}
}

// NewClient 创建客户端
//
// httpClient 必须由调用方注入，通常来自 NewHTTPClient。
func NewClient(httpClient *http.Client, cfg *config.SourceConfig, opts ...Option) *Client {
	c := &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		site:       cfg.Site,
		key:        cfg.Key,
		pageSize:   cfg.PageSize,
		maxPages:   cfg.MaxPages,
		log:        zap.NewNop(),
		wait:       sleepContext,
	}
	if c.pageSize <= 0 || c.pageSize > 100 {
		c.pageSize = defaultPageSize
	}
	if c.maxPages <= 0 {
		c.maxPages = defaultMaxPages
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewHTTPClient 按配置构建出站 HTTP 客户端
//
// RatePerSecond > 0 时每个请求发出前先等待限流器许可。
func NewHTTPClient(cfg *config.SourceConfig) *http.Client {
	var transport http.RoundTripper = &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: cfg.Timeout,
		DisableCompression:    false,
	}

	if cfg.RatePerSecond > 0 {
		transport = &rateLimitedTransport{
			base:    transport,
			limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1),
		}
	}

	return &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
	}
}

// rateLimitedTransport 在每个请求前等待限流器许可
type rateLimitedTransport struct {
	base    http.RoundTripper
	limiter *rate.Limiter
}

// RoundTrip 实现 http.RoundTripper
func (t *rateLimitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.base.RoundTrip(req)
}

// FetchTags 从第 1 页开始依次拉取，直到累计条数达到 target 或源站表示没有更多数据
//
// 另有 maxPages 作为硬上限。返回的错误都包装了 domain.ErrSourceUnavailable。
func (c *Client) FetchTags(ctx context.Context, target int) ([]domain.Tag, error) {
	var tags []domain.Tag

	for page := 1; page <= c.maxPages; page++ {
		resp, err := c.fetchPage(ctx, page)
		if err != nil {
			c.log.Warn("failed to fetch tag page", zap.Int("page", page), zap.Error(err))
			return nil, err
		}

		for _, item := range resp.Items {
			tags = append(tags, domain.Tag{
				Name:            item.Name,
				Count:           item.Count,
				HasSynonyms:     item.HasSynonyms,
				IsModeratorOnly: item.IsModeratorOnly,
				IsRequired:      item.IsRequired,
			})
		}

		c.log.Debug("fetched tag page",
			zap.Int("page", page),
			zap.Int("items", len(resp.Items)),
			zap.Int("total", len(tags)),
			zap.Bool("has_more", resp.HasMore),
			zap.Int("quota_max", resp.QuotaMax),
			zap.Int("quota_remaining", resp.QuotaRemaining),
		)
		if c.onPage != nil {
			c.onPage()
		}

		if len(tags) >= target || !resp.HasMore {
			return tags, nil
		}

		if resp.Backoff > 0 && page < c.maxPages {
			c.log.Info("source requested backoff", zap.Int("seconds", resp.Backoff))
			if err := c.wait(ctx, time.Duration(resp.Backoff)*time.Second); err != nil {
				return nil, fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err)
			}
		}
	}

	c.log.Warn("tag fetch stopped at page limit",
		zap.Int("max_pages", c.maxPages),
		zap.Int("total", len(tags)),
		zap.Int("target", target),
	)
	return tags, nil
}

// fetchPage 请求并解析单页
func (c *Client) fetchPage(ctx context.Context, page int) (*tagsPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.pageURL(page), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", domain.ErrSourceUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: page %d: %v", domain.ErrSourceUnavailable, page, err)
	}
	defer resp.Body.Close()

	body, err := decodedBody(resp)
	if err != nil {
		return nil, fmt.Errorf("%w: page %d: %v", domain.ErrSourceUnavailable, page, err)
	}
	defer body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(body, maxErrorBody))
		return nil, fmt.Errorf("%w: page %d: HTTP %d: %s",
			domain.ErrSourceUnavailable, page, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out tagsPage
	if err := json.NewDecoder(body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: page %d: decode response: %v", domain.ErrSourceUnavailable, page, err)
	}
	if out.ErrorID != 0 {
		return nil, fmt.Errorf("%w: page %d: %s (%d): %s",
			domain.ErrSourceUnavailable, page, out.ErrorName, out.ErrorID, out.ErrorMessage)
	}
	return &out, nil
}

// pageURL 拼接 /tags 查询地址
func (c *Client) pageURL(page int) string {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("pagesize", strconv.Itoa(c.pageSize))
	q.Set("order", "desc")
	q.Set("sort", "popular")
	q.Set("site", c.site)
	if c.key != "" {
		q.Set("key", c.key)
	}
	return c.baseURL + "/tags?" + q.Encode()
}

// decodedBody 传输层未自动解压的 gzip 响应在这里解压
func decodedBody(resp *http.Response) (io.ReadCloser, error) {
	if !strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		return io.NopCloser(resp.Body), nil
	}
	zr, err := gzip.NewReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("open gzip body: %w", err)
	}
	return zr, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
