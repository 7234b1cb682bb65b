package workflow

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/kalambet/susi/internal/model"
)

// --- mocks ---

type cellWrite struct {
	Row    int
	Column string
	Value  string
}

type mockSheet struct {
	rows     []model.Row
	fetchErr error
	writeErr map[string]error // by column
	markErr  error

	writes []cellWrite
	marked []int
}

func (m *mockSheet) FetchUnprocessedRows(context.Context) ([]model.Row, error) {
	return m.rows, m.fetchErr
}

func (m *mockSheet) WriteCell(_ context.Context, row int, column, value string) error {
	if err := m.writeErr[column]; err != nil {
		return err
	}
	m.writes = append(m.writes, cellWrite{row, column, value})
	return nil
}

func (m *mockSheet) MarkProcessed(_ context.Context, row int) error {
	if m.markErr != nil {
		return m.markErr
	}
	m.marked = append(m.marked, row)
	return nil
}

func (m *mockSheet) wrote(row int, column string) (string, bool) {
	for _, w := range m.writes {
		if w.Row == row && w.Column == column {
			return w.Value, true
		}
	}
	return "", false
}

type mockNews struct {
	fn    func(topic, audience string) ([]model.Article, error)
	calls []string
}

func (m *mockNews) Search(_ context.Context, topic, audience string) ([]model.Article, error) {
	m.calls = append(m.calls, topic)
	if m.fn == nil {
		return nil, nil
	}
	return m.fn(topic, audience)
}

type mockWriter struct {
	instagramFn func(topic string, articles []model.Article) (string, error)
	linkedInFn  func(topic string, articles []model.Article) (string, error)
}

func (m *mockWriter) InstagramPost(_ context.Context, topic, _ string, articles []model.Article) (string, error) {
	if m.instagramFn == nil {
		return "IG: " + topic, nil
	}
	return m.instagramFn(topic, articles)
}

func (m *mockWriter) LinkedInPost(_ context.Context, topic, _ string, articles []model.Article) (string, error) {
	if m.linkedInFn == nil {
		return "LI: " + topic, nil
	}
	return m.linkedInFn(topic, articles)
}

type sentNotification struct {
	Success bool
	Subject string
	Body    string
}

type mockNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (m *mockNotifier) Success(_ context.Context, subject, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentNotification{true, subject, body})
}

func (m *mockNotifier) Failure(_ context.Context, subject, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentNotification{false, subject, body})
}

func (m *mockNotifier) count(success bool) int {
	n := 0
	for _, s := range m.sent {
		if s.Success == success {
			n++
		}
	}
	return n
}

func (m *mockNotifier) subjects() []string {
	var out []string
	for _, s := range m.sent {
		out = append(out, s.Subject)
	}
	return out
}

type mockDrive struct {
	items       []model.ImageItem
	listErr     error
	downloadFn  func(item model.ImageItem) (string, error)
	moveErr     error
	downloaded  []string
	moved       []string
	listFolders []string
}

func (m *mockDrive) ListImages(_ context.Context, folder string) ([]model.ImageItem, error) {
	m.listFolders = append(m.listFolders, folder)
	return m.items, m.listErr
}

func (m *mockDrive) Download(_ context.Context, item model.ImageItem) (string, error) {
	m.downloaded = append(m.downloaded, item.ID)
	if m.downloadFn == nil {
		return "/tmp/" + item.Name, nil
	}
	return m.downloadFn(item)
}

func (m *mockDrive) MoveToProcessed(_ context.Context, item model.ImageItem, folder string) error {
	if m.moveErr != nil {
		return m.moveErr
	}
	m.moved = append(m.moved, item.ID+"->"+folder)
	return nil
}

type mockMeta struct {
	md  model.Metadata
	err error
}

func (m mockMeta) Read(string) (model.Metadata, error) { return m.md, m.err }

type mockCaptions struct{ err error }

func (m mockCaptions) Render(md model.Metadata) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return fmt.Sprintf("%s: %s", md.Title, md.Comment), nil
}

type mockUploader struct {
	fn    func(localPath string) (string, error)
	calls int
}

func (m *mockUploader) Upload(_ context.Context, localPath, bucket, _ string) (string, error) {
	m.calls++
	if m.fn == nil {
		return "https://" + bucket + ".s3.eu-west-1.amazonaws.com/" + localPath, nil
	}
	return m.fn(localPath)
}

type mockPoster struct {
	result bool
	err    error
	posts  []string
}

func (m *mockPoster) Post(_ context.Context, url, caption string) (bool, error) {
	m.posts = append(m.posts, url+"|"+caption)
	return m.result, m.err
}

type mockKnown struct {
	ids   map[string]bool
	added []string
}

func newMockKnown(ids ...string) *mockKnown {
	k := &mockKnown{ids: map[string]bool{}}
	for _, id := range ids {
		k.ids[id] = true
	}
	return k
}

func (m *mockKnown) Has(id string) bool { return m.ids[id] }

func (m *mockKnown) Add(id string) error {
	m.ids[id] = true
	m.added = append(m.added, id)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
