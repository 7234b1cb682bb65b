package genai

import (
	"context"
	"fmt"
	"strings"

	"github.com/kalambet/susi/internal/config"
	"github.com/kalambet/susi/internal/model"
)

const (
	instagramSystemPrompt = "You are a social media expert. Write an engaging Instagram post for the given target group, " +
		"using the provided topic and news article summaries. The post should be concise, friendly, and suitable for Instagram. " +
		"Do not mention that you are an AI or that you used news articles. Just create a natural, human-sounding post. " +
		"Respond ONLY with the Instagram post text, no explanations, no reasoning, no <think> or system messages."

	linkedInSystemPrompt = "You are a social media expert. Write a professional, engaging LinkedIn post for the given target group, " +
		"using the provided topic and news article summaries. The post should be longer, more detailed, and suitable for LinkedIn. " +
		"Do not mention that you are an AI or that you used news articles. Just create a natural, human-sounding post. " +
		"Respond ONLY with the LinkedIn post text, no explanations, no reasoning, no <think> or system messages."

	noArticles = "No recent news articles found."

	// descriptionLimit caps each article description in the prompt, in runes.
	descriptionLimit = 200
)

// Settings tune the generated posts.
type Settings struct {
	Model              string
	Temperature        float64
	InstagramMaxTokens int
	LinkedInMaxTokens  int
}

// Writer builds prompts for each platform and hands them to a Completer.
type Writer struct {
	llm      Completer
	settings Settings
}

// NewWriter creates a Writer.
func NewWriter(llm Completer, settings Settings) *Writer {
	return &Writer{llm: llm, settings: settings}
}

// FromConfig picks the completer named by cfg.Provider.
func FromConfig(cfg config.GenAIConfig) *Writer {
	var llm Completer
	if strings.EqualFold(cfg.Provider, "anthropic") {
		llm = NewAnthropic(cfg.AnthropicAPIKey, cfg.AnthropicModel)
	} else {
		llm = NewLocal(cfg.APIURL, cfg.Timeout)
	}
	return NewWriter(llm, Settings{
		Model:              cfg.Model,
		Temperature:        cfg.Temperature,
		InstagramMaxTokens: cfg.InstagramMaxTokens,
		LinkedInMaxTokens:  cfg.LinkedInMaxTokens,
	})
}

// InstagramPost writes a short caption.
func (w *Writer) InstagramPost(ctx context.Context, topic, audience string, articles []model.Article) (string, error) {
	return w.llm.Complete(ctx, Request{
		Model:       w.settings.Model,
		System:      instagramSystemPrompt,
		User:        UserPrompt(topic, audience, articles, "Instagram"),
		MaxTokens:   w.settings.InstagramMaxTokens,
		Temperature: w.settings.Temperature,
	})
}

// LinkedInPost writes a longer professional post.
func (w *Writer) LinkedInPost(ctx context.Context, topic, audience string, articles []model.Article) (string, error) {
	return w.llm.Complete(ctx, Request{
		Model:       w.settings.Model,
		System:      linkedInSystemPrompt,
		User:        UserPrompt(topic, audience, articles, "LinkedIn"),
		MaxTokens:   w.settings.LinkedInMaxTokens,
		Temperature: w.settings.Temperature,
	})
}

// UserPrompt renders the context block sent with every request.
func UserPrompt(topic, audience string, articles []model.Article, platform string) string {
	article := "a"
	if platform == "Instagram" {
		article = "an"
	}
	return fmt.Sprintf("Topic: %s\nTarget Group: %s\nRelevant News:\n%s\n\nWrite %s %s post for this context.",
		topic, audience, NewsSummary(articles), article, platform)
}

// NewsSummary lists article titles with truncated descriptions. Articles
// without a title are left out.
func NewsSummary(articles []model.Article) string {
	if len(articles) == 0 {
		return noArticles
	}
	var lines []string
	for _, a := range articles {
		if a.Title == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("- %s: %s", a.Title, truncate(a.Description, descriptionLimit)))
	}
	return strings.Join(lines, "\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
