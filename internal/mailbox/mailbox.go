// Package mailbox provides Gmail API operations for mailspend: paginated
// message listing, best-effort bulk fetching and MIME text extraction.
package mailbox

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	gm "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/mailspend/mailspend/internal/retry"
)

// bulkConcurrency bounds parallel message fetches to stay under provider
// rate limits.
const bulkConcurrency = 5

// FetchError reports a failed single-message fetch with the HTTP status.
type FetchError struct {
	MessageID string
	Status    int
	Msg       string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch message %s: status %d: %s", e.MessageID, e.Status, e.Msg)
}

// Client wraps the Gmail API service.
type Client struct {
	svc    *gm.Service
	log    zerolog.Logger
	policy retry.Policy
}

// NewClient builds a mailbox client. Callers pass option.WithHTTPClient with
// an authenticated client; tests add option.WithEndpoint.
func NewClient(ctx context.Context, log zerolog.Logger, policy retry.Policy, opts ...option.ClientOption) (*Client, error) {
	svc, err := gm.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	return &Client{svc: svc, log: log, policy: policy}, nil
}

// ListPage is one page of a message id listing.
type ListPage struct {
	IDs            []string
	NextPageToken  string
	EstimatedTotal int64
}

// ListMessageIDs returns one page of message ids matching the query. The
// caller loops with NextPageToken until exhausted or its cap is reached.
func (c *Client) ListMessageIDs(ctx context.Context, query string, pageSize int64, pageToken string) (*ListPage, error) {
	var resp *gm.ListMessagesResponse
	err := retry.Do(ctx, c.policy, func() error {
		req := c.svc.Users.Messages.List("me").Q(query).MaxResults(pageSize)
		if pageToken != "" {
			req = req.PageToken(pageToken)
		}
		r, err := req.Context(ctx).Do()
		if err != nil {
			return stopOnClientError(err)
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	page := &ListPage{
		NextPageToken:  resp.NextPageToken,
		EstimatedTotal: resp.ResultSizeEstimate,
	}
	for _, m := range resp.Messages {
		page.IDs = append(page.IDs, m.Id)
	}
	return page, nil
}

// GetMessage fetches one full message by id.
func (c *Client) GetMessage(ctx context.Context, id string) (*gm.Message, error) {
	var msg *gm.Message
	err := retry.Do(ctx, c.policy, func() error {
		m, err := c.svc.Users.Messages.Get("me", id).Format("full").Context(ctx).Do()
		if err != nil {
			return stopOnClientError(err)
		}
		msg = m
		return nil
	})
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) {
			return nil, &FetchError{MessageID: id, Status: apiErr.Code, Msg: apiErr.Message}
		}
		return nil, &FetchError{MessageID: id, Msg: err.Error()}
	}
	return msg, nil
}

// GetMessagesBulk fetches many messages with bounded concurrency. The fetch
// is best-effort: a failed id is logged and skipped, never propagated, and
// the output preserves the input order of the successes. One malformed or
// deleted message must not abort an entire sync.
func (c *Client) GetMessagesBulk(ctx context.Context, ids []string) []*gm.Message {
	if len(ids) == 0 {
		return nil
	}

	type result struct {
		index int
		msg   *gm.Message
	}

	results := make(chan result, len(ids))
	semaphore := make(chan struct{}, bulkConcurrency)

	for i, id := range ids {
		go func(idx int, msgID string) {
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			msg, err := c.GetMessage(ctx, msgID)
			if err != nil {
				c.log.Warn().Str("message_id", msgID).Err(err).Msg("skipping message")
				results <- result{index: idx}
				return
			}
			results <- result{index: idx, msg: msg}
		}(i, id)
	}

	ordered := make([]*gm.Message, len(ids))
	for range ids {
		r := <-results
		ordered[r.index] = r.msg
	}

	messages := make([]*gm.Message, 0, len(ids))
	for _, msg := range ordered {
		if msg != nil {
			messages = append(messages, msg)
		}
	}
	return messages
}

// Header returns a named header value from a message payload.
func Header(msg *gm.Message, name string) string {
	if msg == nil || msg.Payload == nil {
		return ""
	}
	for _, h := range msg.Payload.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// DecodeTextContent extracts readable text from a message payload: a
// depth-first search over the parts preferring a text/plain leaf, falling
// back to text/html with tags stripped. Returns "" if nothing decodes.
func DecodeTextContent(msg *gm.Message) string {
	if msg == nil || msg.Payload == nil {
		return ""
	}
	if text := findLeaf(msg.Payload, "text/plain"); text != "" {
		return text
	}
	if htmlBody := findLeaf(msg.Payload, "text/html"); htmlBody != "" {
		return stripTags(htmlBody)
	}
	return ""
}

// findLeaf walks the payload tree depth-first looking for a decodable leaf
// of the wanted MIME type, falling back to the payload's own body when the
// message is single-part.
func findLeaf(payload *gm.MessagePart, mimeType string) string {
	if len(payload.Parts) == 0 {
		if payload.Body != nil && payload.Body.Data != "" &&
			(payload.MimeType == mimeType || payload.MimeType == "") {
			if decoded, err := decodeBase64URL(payload.Body.Data); err == nil {
				return decoded
			}
		}
		return ""
	}

	for _, part := range payload.Parts {
		if part.MimeType == mimeType && part.Body != nil && part.Body.Data != "" {
			if decoded, err := decodeBase64URL(part.Body.Data); err == nil {
				return decoded
			}
		}
		if len(part.Parts) > 0 {
			if body := findLeaf(part, mimeType); body != "" {
				return body
			}
		}
	}
	return ""
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// stripTags is a simple tag-removal transform, not a full HTML parser.
func stripTags(s string) string {
	s = tagPattern.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}

// decodeBase64URL decodes Gmail's base64url-encoded content.
func decodeBase64URL(data string) (string, error) {
	// Gmail uses URL-safe base64 without padding.
	data = strings.ReplaceAll(data, "-", "+")
	data = strings.ReplaceAll(data, "_", "/")
	switch len(data) % 4 {
	case 2:
		data += "=="
	case 3:
		data += "="
	}
	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

// stopOnClientError keeps 4xx responses out of the retry loop; only
// transient failures (5xx, network) are worth another attempt.
func stopOnClientError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code < 500 {
		return retry.Stop(err)
	}
	return err
}
