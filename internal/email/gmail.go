package email

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// GmailSource implements Source over the Gmail API for one mailbox.
type GmailSource struct {
	svc  *gmail.Service
	user string
}

// NewGmailSource constructs a source from pre-obtained OAuth files.
// The token must already exist; acquiring one interactively is outside
// this service.
func NewGmailSource(ctx context.Context, credentialsFile, tokenFile string) (*GmailSource, error) {
	creds, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("email: read gmail credentials: %w", err)
	}
	cfg, err := google.ConfigFromJSON(creds, gmail.GmailReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("email: parse gmail credentials: %w", err)
	}
	tokenBytes, err := os.ReadFile(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("email: read gmail token: %w", err)
	}
	var token oauth2.Token
	if err := json.Unmarshal(tokenBytes, &token); err != nil {
		return nil, fmt.Errorf("email: parse gmail token: %w", err)
	}

	svc, err := gmail.NewService(ctx, option.WithHTTPClient(cfg.Client(ctx, &token)))
	if err != nil {
		return nil, fmt.Errorf("email: gmail service: %w", err)
	}
	return &GmailSource{svc: svc, user: "me"}, nil
}

func (g *GmailSource) GetMessage(ctx context.Context, id string) (Message, error) {
	msg, err := g.svc.Users.Messages.Get(g.user, id).Format("full").Context(ctx).Do()
	if err != nil {
		return Message{}, fmt.Errorf("email: get message %s: %w", id, err)
	}

	out := Message{
		ID:           msg.Id,
		InternalDate: time.UnixMilli(msg.InternalDate),
	}
	for _, h := range msg.Payload.Headers {
		switch strings.ToLower(h.Name) {
		case "subject":
			out.Subject = h.Value
		case "from":
			out.From = h.Value
		}
	}
	out.HTMLBody = htmlBody(msg.Payload)
	return out, nil
}

func (g *GmailSource) ListMessages(ctx context.Context, query string, maxResults int64) ([]string, error) {
	resp, err := g.svc.Users.Messages.List(g.user).Q(query).MaxResults(maxResults).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("email: list messages: %w", err)
	}
	ids := make([]string, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		ids = append(ids, m.Id)
	}
	return ids, nil
}

// htmlBody walks the MIME tree for the first text/html part, falling
// back to text/plain when the message has no HTML rendering.
func htmlBody(part *gmail.MessagePart) string {
	if part == nil {
		return ""
	}
	if body := findPart(part, "text/html"); body != "" {
		return body
	}
	return findPart(part, "text/plain")
}

func findPart(part *gmail.MessagePart, mimeType string) string {
	if part.MimeType == mimeType && part.Body != nil && part.Body.Data != "" {
		decoded, err := base64.URLEncoding.WithPadding(base64.NoPadding).DecodeString(part.Body.Data)
		if err != nil {
			return ""
		}
		return string(decoded)
	}
	for _, p := range part.Parts {
		if body := findPart(p, mimeType); body != "" {
			return body
		}
	}
	return ""
}
