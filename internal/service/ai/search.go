package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/tool/duckduckgo/v2"
	"github.com/cloudwego/eino-ext/components/tool/googlesearch"
	"github.com/cloudwego/eino/components/tool"
	"github.com/go-shiori/go-readability"
	"github.com/tidwall/gjson"

	"synthesistalk/internal/config"
	"synthesistalk/internal/models"
	"synthesistalk/internal/redis"
)

const (
	searchRateWindow   = time.Minute
	searchRateKey      = "ratelimit:search"
	searchCachePrefix  = "search:"
	maxPageBytes       = 512 * 1024
	maxPageSummaryRune = 4000
)

var (
	// ErrRateLimited is returned when the search quota for the current window is spent.
	ErrRateLimited = errors.New("search rate limit exceeded, please retry in a minute")
	// ErrNoProvider is returned when no search provider produced an answer.
	ErrNoProvider = errors.New("no search provider succeeded")
)

type webSearch struct {
	google     tool.InvokableTool
	duck       tool.InvokableTool
	httpClient *http.Client
	limiter    *rateLimiter
	rateLimit  int
	cache      *redis.Client
	cacheTTL   time.Duration
	maxResults int
}

// SearchOptions tunes a search gateway built from explicit providers.
type SearchOptions struct {
	MaxResults int
	RateLimit  int
	Timeout    time.Duration
	Cache      *redis.Client
	CacheTTL   time.Duration
}

// NewSearchGateway wires Google (when credentials exist) with DuckDuckGo as fallback.
func NewSearchGateway(ctx context.Context, cfg *config.Config, cache *redis.Client) (SearchGateway, error) {
	if cfg == nil {
		return nil, errors.New("config required")
	}
	timeout := time.Duration(cfg.Search.TimeoutSeconds) * time.Second
	googleTool, err := initGoogleSearch(ctx, cfg.Search)
	if err != nil {
		return nil, err
	}
	duckTool, err := initDDGSearch(ctx, cfg.Search, timeout)
	if err != nil {
		return nil, err
	}
	return NewWebSearch(googleTool, duckTool, SearchOptions{
		MaxResults: cfg.Search.MaxResults,
		RateLimit:  cfg.Search.RateLimit,
		Timeout:    timeout,
		Cache:      cache,
		CacheTTL:   time.Duration(cfg.Search.CacheTTL) * time.Minute,
	}), nil
}

// NewWebSearch builds the gateway over already constructed eino tools. Either
// provider may be nil.
func NewWebSearch(google, duck tool.InvokableTool, opts SearchOptions) SearchGateway {
	if opts.MaxResults <= 0 {
		opts.MaxResults = 5
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &webSearch{
		google:     google,
		duck:       duck,
		httpClient: &http.Client{Timeout: opts.Timeout},
		limiter:    newRateLimiter(opts.RateLimit, searchRateWindow),
		rateLimit:  opts.RateLimit,
		cache:      opts.Cache,
		cacheTTL:   opts.CacheTTL,
		maxResults: opts.MaxResults,
	}
}

func initDDGSearch(ctx context.Context, cfg config.SearchConfig, timeout time.Duration) (tool.InvokableTool, error) {
	region := duckduckgo.RegionWT
	if cfg.Region != "" {
		region = duckduckgo.Region(cfg.Region)
	}
	duckTool, err := duckduckgo.NewTextSearchTool(ctx, &duckduckgo.Config{
		ToolName:   "web_search_ddg",
		ToolDesc:   "DuckDuckGo Search Tool (no token required)",
		MaxResults: cfg.MaxResults,
		Region:     region,
		Timeout:    timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("init duckduckgo search: %w", err)
	}
	return duckTool, nil
}

func initGoogleSearch(ctx context.Context, cfg config.SearchConfig) (tool.InvokableTool, error) {
	if cfg.GoogleAPIKey == "" || cfg.GoogleSearchEngineID == "" {
		log.Printf("google search disabled: missing api key or search engine id")
		return nil, nil
	}
	googleTool, err := googlesearch.NewTool(ctx, &googlesearch.Config{
		ToolName:       "web_search_google",
		ToolDesc:       "Google Search Tool",
		APIKey:         cfg.GoogleAPIKey,
		SearchEngineID: cfg.GoogleSearchEngineID,
		Lang:           "en",
		Num:            cfg.MaxResults,
	})
	if err != nil {
		return nil, fmt.Errorf("init google search: %w", err)
	}
	return googleTool, nil
}

// Query runs the search. A URL query fetches the page and returns its
// readable text as the summary.
func (w *webSearch) Query(ctx context.Context, query string) (*SearchResponse, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, searchError("query", errors.New("query must not be empty"))
	}

	cacheKey := searchCachePrefix + strings.ToLower(query)
	if w.cache != nil && w.cacheTTL > 0 {
		var cached SearchResponse
		if err := w.cache.GetJSON(ctx, cacheKey, &cached); err == nil {
			return &cached, nil
		} else if !errors.Is(err, redis.ErrCacheMiss) {
			log.Printf("search cache read failed: %v", err)
		}
	}

	if !w.allow(ctx) {
		return nil, searchError("query", ErrRateLimited)
	}

	resp, err := w.lookup(ctx, query)
	if err != nil {
		return nil, err
	}
	if w.cache != nil && w.cacheTTL > 0 {
		if err := w.cache.SetJSON(ctx, cacheKey, resp, w.cacheTTL); err != nil {
			log.Printf("search cache write failed: %v", err)
		}
	}
	return resp, nil
}

func (w *webSearch) allow(ctx context.Context) bool {
	if w.rateLimit <= 0 {
		return true
	}
	if w.cache != nil {
		ok, err := w.cache.Allow(ctx, searchRateKey, w.rateLimit, searchRateWindow)
		if err == nil {
			return ok
		}
		log.Printf("shared search limiter unavailable: %v", err)
	}
	return w.limiter.Allow(searchRateKey)
}

func (w *webSearch) lookup(ctx context.Context, query string) (*SearchResponse, error) {
	if looksLikeURL(query) {
		if content, err := w.fetchURL(ctx, query); err == nil {
			return &SearchResponse{Summary: content}, nil
		} else {
			log.Printf("web url loader failed: %v", err)
		}
	}

	payloadBytes, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return nil, searchError("encode", err)
	}
	payload := string(payloadBytes)

	var lastErr error
	if w.google != nil {
		if result, err := w.google.InvokableRun(ctx, payload); err == nil {
			return parseSearchOutput(result, w.maxResults), nil
		} else {
			log.Printf("google search failed: %v", err)
			lastErr = err
		}
	}
	if w.duck != nil {
		if result, err := w.duck.InvokableRun(ctx, payload); err == nil {
			return parseSearchOutput(result, w.maxResults), nil
		} else {
			log.Printf("duckduckgo search failed: %v", err)
			lastErr = err
		}
	}
	if lastErr != nil {
		return nil, searchError("query", fmt.Errorf("%w: %v", ErrNoProvider, lastErr))
	}
	return nil, searchError("query", ErrNoProvider)
}

// parseSearchOutput accepts the JSON shapes of the eino search tools. Anything
// that is not JSON is kept as a pre-summarized answer.
func parseSearchOutput(raw string, limit int) *SearchResponse {
	raw = strings.TrimSpace(raw)
	if !gjson.Valid(raw) {
		return &SearchResponse{Summary: raw}
	}
	parsed := gjson.Parse(raw)
	items := parsed
	if !parsed.IsArray() {
		items = parsed.Get("results")
		if !items.Exists() {
			items = parsed.Get("items")
		}
	}
	if !items.IsArray() {
		return &SearchResponse{Summary: parsed.Get("message").String()}
	}

	resp := &SearchResponse{}
	items.ForEach(func(_, item gjson.Result) bool {
		result := models.SearchResult{
			Title:   firstField(item, "title"),
			URL:     firstField(item, "url", "link", "href"),
			Snippet: firstField(item, "summary", "snippet", "desc", "description", "body"),
		}
		if result.Title == "" && result.Snippet == "" {
			return true
		}
		resp.Results = append(resp.Results, result)
		return limit <= 0 || len(resp.Results) < limit
	})
	return resp
}

func firstField(item gjson.Result, names ...string) string {
	for _, name := range names {
		if v := strings.TrimSpace(item.Get(name).String()); v != "" {
			return v
		}
	}
	return ""
}

func (w *webSearch) fetchURL(ctx context.Context, target string) (string, error) {
	parsed, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", errors.New("unsupported url scheme")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "SynthesisTalk-WebSearch/1.0")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch url: %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", err
	}

	text := string(body)
	if article, err := readability.FromReader(strings.NewReader(text), parsed); err == nil && strings.TrimSpace(article.TextContent) != "" {
		text = strings.TrimSpace(article.TextContent)
		if article.Title != "" {
			text = article.Title + "\n\n" + text
		}
	}
	runes := []rune(text)
	if len(runes) > maxPageSummaryRune {
		text = string(runes[:maxPageSummaryRune]) + "..."
	}
	return text, nil
}

func looksLikeURL(input string) bool {
	lower := strings.ToLower(input)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
