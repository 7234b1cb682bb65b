package news

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/susi/internal/model"
)

const maxConcurrentFeeds = 4

// Feeds searches a fixed list of RSS or Atom feeds. Items match when their
// title or description mentions any word of the topic or audience.
type Feeds struct {
	urls    []string
	limit   int
	parser  *gofeed.Parser
	cleaner *Cleaner
	logger  *slog.Logger
}

// NewFeeds creates a feed source returning at most limit articles.
func NewFeeds(urls []string, limit int, logger *slog.Logger) *Feeds {
	if limit <= 0 {
		limit = 5
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Feeds{
		urls:    urls,
		limit:   limit,
		parser:  gofeed.NewParser(),
		cleaner: NewCleaner(),
		logger:  logger,
	}
}

// Search fetches every feed and returns the newest matching items. A feed
// that cannot be fetched is logged and skipped.
func (f *Feeds) Search(ctx context.Context, topic, audience string) ([]model.Article, error) {
	words := keywords(topic + " " + audience)

	var (
		mu    sync.Mutex
		found []model.Article
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFeeds)
	for _, u := range f.urls {
		g.Go(func() error {
			feed, err := f.parser.ParseURLWithContext(u, gctx)
			if err != nil {
				f.logger.Warn("feed fetch failed", "feed", u, "error", err)
				return nil
			}
			matches := f.collect(feed, words)
			mu.Lock()
			found = append(found, matches...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(found, func(i, j int) bool {
		return found[i].PublishedAt.After(found[j].PublishedAt)
	})
	if len(found) > f.limit {
		found = found[:f.limit]
	}
	return found, nil
}

func (f *Feeds) collect(feed *gofeed.Feed, words []string) []model.Article {
	var out []model.Article
	for _, item := range feed.Items {
		title := f.cleaner.Title(item.Title)
		desc := f.cleaner.Description(item.Description)
		if !matches(title+" "+desc, words) {
			continue
		}
		var published time.Time
		switch {
		case item.PublishedParsed != nil:
			published = *item.PublishedParsed
		case item.UpdatedParsed != nil:
			published = *item.UpdatedParsed
		}
		out = append(out, model.Article{
			Title:       title,
			Description: desc,
			URL:         item.Link,
			Source:      feed.Title,
			PublishedAt: published,
		})
	}
	return out
}

// keywords splits s into lower-cased words of three or more letters.
func keywords(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	var out []string
	for _, w := range fields {
		if len([]rune(w)) >= 3 {
			out = append(out, w)
		}
	}
	return out
}

func matches(text string, words []string) bool {
	if len(words) == 0 {
		return true
	}
	text = strings.ToLower(text)
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
