package notify

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/kalambet/susi/internal/retry"
)

const (
	gmailSendURL = "https://gmail.googleapis.com/gmail/v1/users/me/messages/send"
	gmailScope   = "https://www.googleapis.com/auth/gmail.send"
)

// Gmail sends through the Gmail API with an OAuth2 refresh token.
type Gmail struct {
	from       string
	to         string
	sendURL    string
	httpClient *http.Client
	now        func() time.Time
}

// GmailConfig holds the OAuth2 client and the addresses used.
type GmailConfig struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	From         string
	To           string
}

// NewGmail creates a Gmail transport. The returned client refreshes its
// access token as needed.
func NewGmail(ctx context.Context, cfg GmailConfig) *Gmail {
	oc := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     endpoints.Google,
		Scopes:       []string{gmailScope},
	}
	return newGmail(cfg.From, cfg.To, gmailSendURL, oc.Client(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken}))
}

func newGmail(from, to, sendURL string, httpClient *http.Client) *Gmail {
	return &Gmail{from: from, to: to, sendURL: sendURL, httpClient: httpClient, now: time.Now}
}

func (g *Gmail) Name() string { return "gmail" }

func (g *Gmail) Send(ctx context.Context, subject, body string) error {
	if g.from == "" || g.to == "" {
		return retry.Permanent(ErrNotConfigured)
	}
	msg, err := Message{From: g.from, To: g.to, Subject: subject, Body: body}.Bytes(g.now())
	if err != nil {
		return err
	}
	payload, err := json.Marshal(map[string]string{"raw": base64.URLEncoding.EncodeToString(msg)})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.sendURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating gmail request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gmail send: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("gmail send returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return nil
}
