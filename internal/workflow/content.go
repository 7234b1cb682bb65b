package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"

	"github.com/kalambet/susi/internal/model"
)

// Content notification subjects.
const (
	SubjectNewsFailed         = "Susi Excel Workflow: News Fetch Failed"
	SubjectInstagramGenFailed = "Susi Excel Workflow: Instagram Post Generation Failed"
	SubjectInstagramPutFailed = "Susi Excel Workflow: Instagram Post Write Failed"
	SubjectLinkedInGenFailed  = "Susi Excel Workflow: LinkedIn Post Generation Failed"
	SubjectLinkedInPutFailed  = "Susi Excel Workflow: LinkedIn Post Write Failed"
	SubjectMarkFailed         = "Susi Excel Workflow: Mark Processed Failed"
	SubjectBothPostsCreated   = "Susi Excel Workflow: Both Posts Created"
	SubjectContentUnexpected  = "Susi Excel Workflow: Unexpected Error"
)

// ContentRunner turns content plan rows into Instagram and LinkedIn texts.
type ContentRunner struct {
	sheet  Sheet
	news   NewsSource
	writer PostWriter
	notify Notifier
	logger *slog.Logger
}

// NewContentRunner creates a ContentRunner. A nil logger uses slog.Default().
func NewContentRunner(sheet Sheet, news NewsSource, writer PostWriter, notify Notifier, logger *slog.Logger) *ContentRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &ContentRunner{sheet: sheet, news: news, writer: writer, notify: notify, logger: logger}
}

// Run processes every unprocessed row in fetch order. The returned error is
// only set when the rows could not be fetched; row failures are reported
// through the notifier and counted in the report.
func (r *ContentRunner) Run(ctx context.Context) (Report, error) {
	r.logger.Info("starting content cycle")
	rows, err := r.sheet.FetchUnprocessedRows(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("fetching content rows: %w", err)
	}
	if len(rows) == 0 {
		r.logger.Info("no new topics found in content plan")
		return Report{}, nil
	}

	rep := Report{Items: len(rows)}
	for _, row := range rows {
		switch r.processRow(ctx, row) {
		case rowDone:
			rep.Succeeded++
		case rowSkipped:
			rep.Skipped++
		default:
			rep.Failed++
		}
	}
	r.logger.Info("content cycle finished",
		"rows", rep.Items, "processed", rep.Succeeded, "failed", rep.Failed, "skipped", rep.Skipped)
	return rep, nil
}

type rowResult int

const (
	rowFailed rowResult = iota
	rowDone
	rowSkipped
)

func (r *ContentRunner) processRow(ctx context.Context, row model.Row) (res rowResult) {
	log := r.logger.With("row", row.Index)
	defer func() {
		if p := recover(); p != nil {
			stack := debug.Stack()
			log.Error("unexpected error processing row", "panic", p, "content", row.Content, "stack", string(stack))
			r.notify.Failure(ctx, SubjectContentUnexpected, fmt.Sprintf(
				"Unexpected error processing content row %d, content '%s'.\nError: %v\n\nStack:\n%s",
				row.Index, row.Content, p, stack))
			res = rowFailed
		}
	}()

	if strings.TrimSpace(row.Content) == "" {
		log.Warn("row has no content, skipping")
		return rowSkipped
	}
	log.Info("processing row", "content", row.Content, "target_group", row.TargetGroup)

	var articles []model.Article
	news := run(StageNews, func() error {
		var err error
		articles, err = r.news.Search(ctx, row.Content, row.TargetGroup)
		return err
	})
	if !news.OK() {
		log.Error("news fetch failed, continuing without articles", "error", news.Err)
		articles = nil
		r.notify.Failure(ctx, SubjectNewsFailed, fmt.Sprintf(
			"Failed to fetch news articles for content '%s', target group '%s'.\nError: %v",
			row.Content, row.TargetGroup, news.Err))
	} else {
		log.Info("fetched news articles", "count", len(articles))
	}

	var caption string
	igGen := run(StageInstagramGen, func() error {
		var err error
		caption, err = r.writer.InstagramPost(ctx, row.Content, row.TargetGroup, articles)
		return err
	})
	if !igGen.OK() {
		log.Error("instagram post generation failed, using fallback caption", "error", igGen.Err)
		r.notify.Failure(ctx, SubjectInstagramGenFailed, fmt.Sprintf(
			"Failed to generate Instagram post for content '%s', target group '%s'.\nError: %v",
			row.Content, row.TargetGroup, igGen.Err))
		caption = FallbackCaption(row.Content, row.TargetGroup, articles)
	}

	igPut := run(StageInstagramPut, func() error {
		return r.sheet.WriteCell(ctx, row.Index, model.ColumnInstagram, caption)
	})
	if !igPut.OK() {
		log.Error("writing instagram post failed", "error", igPut.Err)
		r.notify.Failure(ctx, SubjectInstagramPutFailed, fmt.Sprintf(
			"Failed to write Instagram post for row %d, content '%s'.\nError: %v",
			row.Index, row.Content, igPut.Err))
	}

	var linkedIn string
	liGen := run(StageLinkedInGen, func() error {
		var err error
		linkedIn, err = r.writer.LinkedInPost(ctx, row.Content, row.TargetGroup, articles)
		return err
	})
	if !liGen.OK() {
		log.Error("linkedin post generation failed", "error", liGen.Err)
		r.notify.Failure(ctx, SubjectLinkedInGenFailed, fmt.Sprintf(
			"Failed to generate LinkedIn post for content '%s', target group '%s'.\nError: %v",
			row.Content, row.TargetGroup, liGen.Err))
		linkedIn = ""
	}

	liPut := Outcome{Stage: StageLinkedInPut, Err: errNotAttempted}
	if linkedIn != "" {
		liPut = run(StageLinkedInPut, func() error {
			return r.sheet.WriteCell(ctx, row.Index, model.ColumnLinkedIn, linkedIn)
		})
		if !liPut.OK() {
			log.Error("writing linkedin post failed", "error", liPut.Err)
			r.notify.Failure(ctx, SubjectLinkedInPutFailed, fmt.Sprintf(
				"Failed to write LinkedIn post for row %d, content '%s'.\nError: %v",
				row.Index, row.Content, liPut.Err))
		}
	}

	if caption == "" || !liPut.OK() {
		log.Warn("row left unprocessed", "caption_empty", caption == "", "linkedin", liPut.Error())
		return rowFailed
	}

	mark := run(StageMarkDone, func() error {
		return r.sheet.MarkProcessed(ctx, row.Index)
	})
	if !mark.OK() {
		log.Error("marking row processed failed", "error", mark.Err)
		r.notify.Failure(ctx, SubjectMarkFailed, fmt.Sprintf(
			"Both posts were written for row %d, content '%s', but the row could not be marked processed.\nError: %v",
			row.Index, row.Content, mark.Err))
		return rowFailed
	}

	log.Info("row processed", "content", row.Content)
	r.notify.Success(ctx, SubjectBothPostsCreated, fmt.Sprintf(
		"Successfully created and stored Instagram and LinkedIn posts for content: '%s', target group: '%s'.",
		row.Content, row.TargetGroup))
	return rowDone
}

var errNotAttempted = fmt.Errorf("not attempted: no linkedin text")

// FallbackCaption is the Instagram caption used when generation fails. It is
// built from the topic, the audience and the raw article titles. Every
// article gets a line, titled or not.
func FallbackCaption(topic, audience string, articles []model.Article) string {
	titles := make([]string, 0, len(articles))
	for _, a := range articles {
		titles = append(titles, "- "+a.Title)
	}
	if len(titles) == 0 {
		return fmt.Sprintf("Topic: %s\nTarget Group: %s\n(No relevant news articles found)", topic, audience)
	}
	return fmt.Sprintf("Topic: %s\nTarget Group: %s\n\nRelevant News:\n%s", topic, audience, strings.Join(titles, "\n"))
}
