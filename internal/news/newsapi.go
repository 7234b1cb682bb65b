// Package news finds recent articles to give generated posts some context.
package news

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kalambet/susi/internal/config"
	"github.com/kalambet/susi/internal/model"
)

// ErrNoKey is returned when the NewsAPI key is not configured.
var ErrNoKey = errors.New("news: NEWSAPI_KEY not set")

// Source is anything that can search for articles.
type Source interface {
	Search(ctx context.Context, topic, audience string) ([]model.Article, error)
}

// FromConfig builds the source named by cfg.Provider.
func FromConfig(cfg config.NewsConfig, logger *slog.Logger) Source {
	if strings.EqualFold(cfg.Provider, "rss") {
		return NewFeeds(cfg.Feeds, cfg.PageSize, logger)
	}
	return NewNewsAPI(cfg.Endpoint, cfg.APIKey, cfg.Language, cfg.PageSize, nil)
}

// NewsAPI searches the NewsAPI.org "everything" endpoint.
type NewsAPI struct {
	endpoint   string
	apiKey     string
	language   string
	pageSize   int
	httpClient *http.Client
}

// NewNewsAPI creates a NewsAPI client. A nil httpClient uses one with a 30s
// timeout.
func NewNewsAPI(endpoint, apiKey, language string, pageSize int, httpClient *http.Client) *NewsAPI {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if language == "" {
		language = "en"
	}
	if pageSize <= 0 {
		pageSize = 5
	}
	return &NewsAPI{
		endpoint:   endpoint,
		apiKey:     apiKey,
		language:   language,
		pageSize:   pageSize,
		httpClient: httpClient,
	}
}

type newsAPIResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Articles []struct {
		Source struct {
			Name string `json:"name"`
		} `json:"source"`
		Title       string    `json:"title"`
		Description string    `json:"description"`
		URL         string    `json:"url"`
		PublishedAt string `json:"publishedAt"`
	} `json:"articles"`
}

// Search queries for topic refined by audience, most relevant first.
func (n *NewsAPI) Search(ctx context.Context, topic, audience string) ([]model.Article, error) {
	if n.apiKey == "" {
		return nil, ErrNoKey
	}

	q := topic
	if audience != "" {
		q += " " + audience
	}
	params := url.Values{}
	params.Set("q", q)
	params.Set("language", n.language)
	params.Set("sortBy", "relevancy")
	params.Set("pageSize", fmt.Sprint(n.pageSize))
	params.Set("apiKey", n.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating news request: %w", err)
	}
	resp, err := n.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting news: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("news request returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var body newsAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding news response: %w", err)
	}

	articles := make([]model.Article, 0, len(body.Articles))
	for _, a := range body.Articles {
		published, _ := time.Parse(time.RFC3339, a.PublishedAt)
		articles = append(articles, model.Article{
			Title:       a.Title,
			Description: a.Description,
			URL:         a.URL,
			Source:      a.Source.Name,
			PublishedAt: published,
		})
	}
	return articles, nil
}
