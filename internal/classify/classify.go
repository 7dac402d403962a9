// Package classify batches decoded email content and turns the external
// classifier's semi-structured JSON output into uniform results.
package classify

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	gm "google.golang.org/api/gmail/v1"

	"github.com/mailspend/mailspend/internal/mailbox"
)

// ErrUnavailable means the classifier call itself failed. Callers degrade
// to an empty result but must log the condition: "no candidates" and
// "classification failed" are different outcomes.
var ErrUnavailable = errors.New("classifier unavailable")

// ShapeError means the classifier returned JSON matching none of the
// tolerated shapes. Treated like ErrUnavailable by the pipeline.
type ShapeError struct {
	Raw string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("unexpected classifier response shape: %s", snippet(e.Raw, 120))
}

// TruncationMarker is appended to batch item content cut at the length cap.
const TruncationMarker = "\n[truncated]"

// BatchItem is one email prepared for classification.
type BatchItem struct {
	MessageID string `json:"message_id"`
	Account   string `json:"account,omitempty"`
	Content   string `json:"content"`
}

// Result is the uniform intermediate record produced from one classifier
// output element, before reconciliation applies domain defaults.
type Result struct {
	Kind        string
	MessageID   string
	Confidence  int
	Name        string
	Amount      float64
	HasAmount   bool
	Currency    string
	Category    string
	Frequency   string
	LastBilled  string
	NextBilling string
	Status      string
	Date        string
	Description string
	ReceiptID   string
}

// BuildBatchItems assembles classification input from fetched messages:
// a header summary plus the decoded body, capped at maxLen bytes with a
// truncation marker. Messages with no decodable body are skipped since
// there is nothing to classify.
func BuildBatchItems(msgs []*gm.Message, account string, maxLen int) []BatchItem {
	items := make([]BatchItem, 0, len(msgs))
	for _, msg := range msgs {
		body := strings.TrimSpace(mailbox.DecodeTextContent(msg))
		if body == "" {
			continue
		}

		var sb strings.Builder
		sb.WriteString("Subject: " + mailbox.Header(msg, "Subject") + "\n")
		sb.WriteString("From: " + mailbox.Header(msg, "From") + "\n")
		sb.WriteString("Date: " + mailbox.Header(msg, "Date") + "\n\n")
		sb.WriteString(body)

		content := sb.String()
		if maxLen > 0 && len(content) > maxLen {
			content = content[:maxLen] + TruncationMarker
		}

		items = append(items, BatchItem{
			MessageID: msg.Id,
			Account:   account,
			Content:   content,
		})
	}
	return items
}

// rawResult mirrors one classifier output element. Amount and confidence
// use flexible decoding because the model sometimes returns numbers as
// strings.
type rawResult struct {
	Type        string     `json:"type"`
	MessageID   string     `json:"message_id"`
	Confidence  flexInt    `json:"confidence"`
	Name        string     `json:"name"`
	Amount      *flexFloat `json:"amount"`
	Currency    string     `json:"currency"`
	Category    string     `json:"category"`
	Frequency   string     `json:"frequency"`
	LastBilled  string     `json:"last_billed"`
	NextBilling string     `json:"next_billing"`
	Status      string     `json:"status"`
	Date        string     `json:"date"`
	Description string     `json:"description"`
	ReceiptID   string     `json:"receipt_id"`
}

// resultsWrapper is the {"results": [...]} shape some responses use.
type resultsWrapper struct {
	Results []rawResult `json:"results"`
}

// ParseResults normalizes the three tolerated classifier response shapes
// into a flat result list:
//
//   - a bare array of result objects
//   - an object wrapping a "results" array
//   - a single bare object (the model collapsed a one-item batch)
//
// Anything else is a ShapeError.
func ParseResults(data []byte) ([]Result, error) {
	raw := strings.TrimSpace(stripFences(string(data)))
	if raw == "" {
		return nil, &ShapeError{Raw: string(data)}
	}

	switch raw[0] {
	case '[':
		var arr []rawResult
		if err := json.Unmarshal([]byte(raw), &arr); err != nil {
			return nil, &ShapeError{Raw: raw}
		}
		return convert(arr), nil
	case '{':
		var wrapper resultsWrapper
		if err := json.Unmarshal([]byte(raw), &wrapper); err == nil && wrapper.Results != nil {
			return convert(wrapper.Results), nil
		}
		var single rawResult
		if err := json.Unmarshal([]byte(raw), &single); err == nil && (single.Type != "" || single.Name != "" || single.MessageID != "") {
			return convert([]rawResult{single}), nil
		}
	}
	return nil, &ShapeError{Raw: raw}
}

func convert(raws []rawResult) []Result {
	results := make([]Result, 0, len(raws))
	for _, r := range raws {
		res := Result{
			Kind:        strings.ToUpper(strings.TrimSpace(r.Type)),
			MessageID:   r.MessageID,
			Confidence:  clampConfidence(int(r.Confidence)),
			Name:        r.Name,
			Currency:    r.Currency,
			Category:    r.Category,
			Frequency:   r.Frequency,
			LastBilled:  r.LastBilled,
			NextBilling: r.NextBilling,
			Status:      r.Status,
			Date:        r.Date,
			Description: r.Description,
			ReceiptID:   r.ReceiptID,
		}
		if r.Amount != nil && r.Amount.present {
			res.Amount = r.Amount.value
			res.HasAmount = true
		}
		results = append(results, res)
	}
	return results
}

// MatchByMessageID fills in missing message ids positionally from the
// submitted batch. Result order is assumed to follow batch order, but an
// explicit id from the classifier always wins since tolerant parsing
// cannot guarantee order across all accepted shapes.
func MatchByMessageID(results []Result, items []BatchItem) []Result {
	for i := range results {
		if results[i].MessageID == "" && i < len(items) {
			results[i].MessageID = items[i].MessageID
		}
	}
	return results
}

// flexFloat decodes a JSON number or a numeric-looking string ("15.99",
// "$15.99"). Undecodable values are left absent rather than failing the
// whole batch.
type flexFloat struct {
	value   float64
	present bool
}

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" {
		return nil
	}
	if s[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return nil
		}
		str = strings.TrimSpace(str)
		str = strings.TrimLeft(str, "$€£")
		str = strings.ReplaceAll(str, ",", "")
		v, err := strconv.ParseFloat(str, 64)
		if err != nil {
			return nil
		}
		f.value = v
		f.present = true
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	f.value = v
	f.present = true
	return nil
}

// flexInt decodes a JSON number (integer or float) or numeric string.
// Missing or undecodable values stay 0.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" {
		return nil
	}
	s = strings.Trim(s, `"`)
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		*f = flexInt(v)
	}
	return nil
}

func clampConfidence(c int) int {
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}

// stripFences removes a markdown code fence the model sometimes wraps its
// JSON in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return s
}

func snippet(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
