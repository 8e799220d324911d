package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/teemow/schedassist/internal/google"
)

// Client wraps the Gmail service for one user.
type Client struct {
	svc    *gmail.Service
	userID string
}

// UserID returns the user this client is associated with.
func (c *Client) UserID() string {
	return c.userID
}

// NewClientForUser creates a Gmail client authenticated as the given user.
func NewClientForUser(ctx context.Context, userID string, provider google.TokenProvider) (*Client, error) {
	if provider == nil {
		return nil, fmt.Errorf("token provider cannot be nil")
	}

	token, err := provider.TokenForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get Google OAuth token for user %s: %w", userID, err)
	}

	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))
	svc, err := gmail.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("create Gmail service: %w", err)
	}

	return &Client{svc: svc, userID: userID}, nil
}

// SendEmail sends a plain-text email and returns the sent message id.
func (c *Client) SendEmail(ctx context.Context, msg *EmailMessage) (string, error) {
	if len(msg.To) == 0 {
		return "", fmt.Errorf("at least one recipient is required")
	}
	if msg.Subject == "" {
		return "", fmt.Errorf("subject is required")
	}
	if msg.Body == "" {
		return "", fmt.Errorf("body is required")
	}

	raw := base64.URLEncoding.EncodeToString([]byte(buildRawMessage(msg)))
	sent, err := c.svc.Users.Messages.Send("me", &gmail.Message{Raw: raw}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("send email: %w", err)
	}
	return sent.Id, nil
}

// buildRawMessage renders an EmailMessage in RFC 2822 format.
func buildRawMessage(msg *EmailMessage) string {
	var b strings.Builder

	b.WriteString("To: ")
	b.WriteString(strings.Join(msg.To, ", "))
	b.WriteString("\r\n")

	if len(msg.Cc) > 0 {
		b.WriteString("Cc: ")
		b.WriteString(strings.Join(msg.Cc, ", "))
		b.WriteString("\r\n")
	}

	b.WriteString("Subject: ")
	b.WriteString(encodeRFC2047(msg.Subject))
	b.WriteString("\r\n")

	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.Body)

	return b.String()
}

// encodeRFC2047 encodes a header value when it contains non-ASCII characters.
func encodeRFC2047(s string) string {
	for _, r := range s {
		if r > 127 {
			return mime.BEncoding.Encode("UTF-8", s)
		}
	}
	return s
}

// ListUnread returns summaries of unread inbox messages, newest first, up to
// maxResults.
func (c *Client) ListUnread(ctx context.Context, maxResults int64) ([]MessageSummary, error) {
	if maxResults <= 0 {
		maxResults = 10
	}

	resp, err := c.svc.Users.Messages.List("me").
		Q("is:unread in:inbox").
		MaxResults(maxResults).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("list unread messages: %w", err)
	}

	var summaries []MessageSummary
	for _, ref := range resp.Messages {
		summary, err := c.GetMessage(ctx, ref.Id)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, *summary)
	}
	return summaries, nil
}

// GetMessage fetches a message and extracts its headers and plain-text body.
func (c *Client) GetMessage(ctx context.Context, messageID string) (*MessageSummary, error) {
	msg, err := c.svc.Users.Messages.Get("me", messageID).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get message %s: %w", messageID, err)
	}

	summary := &MessageSummary{
		ID:      msg.Id,
		Snippet: msg.Snippet,
	}
	if msg.Payload != nil {
		for _, header := range msg.Payload.Headers {
			switch strings.ToLower(header.Name) {
			case "from":
				summary.From = header.Value
			case "subject":
				summary.Subject = header.Value
			}
		}
		summary.Body = extractTextBody(msg.Payload)
	}
	return summary, nil
}

// extractTextBody walks a message payload looking for the first text/plain
// part. Multipart containers are searched depth-first.
func extractTextBody(part *gmail.MessagePart) string {
	if part == nil {
		return ""
	}
	if strings.HasPrefix(part.MimeType, "text/plain") && part.Body != nil && part.Body.Data != "" {
		decoded, err := base64.URLEncoding.DecodeString(part.Body.Data)
		if err != nil {
			return ""
		}
		return string(decoded)
	}
	for _, child := range part.Parts {
		if body := extractTextBody(child); body != "" {
			return body
		}
	}
	return ""
}

// Watch registers a push subscription that publishes mailbox changes to the
// given Pub/Sub topic. The returned cursor is where history scans should
// start.
func (c *Client) Watch(ctx context.Context, topicName string) (*WatchResult, error) {
	if topicName == "" {
		return nil, fmt.Errorf("pub/sub topic name is required")
	}

	resp, err := c.svc.Users.Watch("me", &gmail.WatchRequest{
		TopicName: topicName,
		LabelIds:  []string{"INBOX"},
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("register mailbox watch: %w", err)
	}

	return &WatchResult{
		Cursor: strconv.FormatUint(resp.HistoryId, 10),
		Expiry: time.UnixMilli(resp.Expiration),
	}, nil
}

// HistorySince scans the change history forward from the given cursor and
// collects the ids of newly added messages. It follows pagination to the end
// of the history.
func (c *Client) HistorySince(ctx context.Context, cursor string) (*HistoryPage, error) {
	start, err := strconv.ParseUint(cursor, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid history cursor %q: %w", cursor, err)
	}

	page := &HistoryPage{}
	latest := start
	pageToken := ""
	for {
		call := c.svc.Users.History.List("me").
			StartHistoryId(start).
			HistoryTypes("messageAdded").
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("list history from %s: %w", cursor, err)
		}

		for _, record := range resp.History {
			for _, added := range record.MessagesAdded {
				if added.Message == nil {
					continue
				}
				page.Changes = append(page.Changes, ChangeRecord{
					MessageID: added.Message.Id,
					HistoryID: record.Id,
				})
			}
			if record.Id > latest {
				latest = record.Id
			}
		}
		if resp.HistoryId > latest {
			latest = resp.HistoryId
		}

		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}

	page.Cursor = strconv.FormatUint(latest, 10)
	return page, nil
}
