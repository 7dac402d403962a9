// Package display provides terminal formatting for mailspend output.
package display

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	// Styles
	Muted    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6b7280"))
	Dim      = lipgloss.NewStyle().Foreground(lipgloss.Color("#9ca3af"))
	Bold     = lipgloss.NewStyle().Bold(true)
	Success  = lipgloss.NewStyle().Foreground(lipgloss.Color("#16a34a"))
	WarnTxt  = lipgloss.NewStyle().Foreground(lipgloss.Color("#d97706"))
	ErrStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#dc2626"))

	strongStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#16a34a"))
	likelyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#d97706"))
	weakStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6b7280"))
)

// ConfidenceDot returns a colored dot for a 0-100 confidence score.
func ConfidenceDot(confidence int) string {
	switch {
	case confidence >= 80:
		return strongStyle.Render("●")
	case confidence >= 60:
		return likelyStyle.Render("◐")
	default:
		return weakStyle.Render("○")
	}
}

// ConfidenceBadge returns a styled "dot NN%" confidence marker.
func ConfidenceBadge(confidence int) string {
	label := fmt.Sprintf("%3d%%", confidence)
	switch {
	case confidence >= 80:
		return ConfidenceDot(confidence) + " " + strongStyle.Render(label)
	case confidence >= 60:
		return ConfidenceDot(confidence) + " " + likelyStyle.Render(label)
	default:
		return ConfidenceDot(confidence) + " " + weakStyle.Render(label)
	}
}

// Money formats an amount with its currency, e.g. "$15.99" or "9.99 EUR".
func Money(amount float64, currency string) string {
	switch strings.ToUpper(currency) {
	case "", "USD":
		return fmt.Sprintf("$%.2f", amount)
	case "EUR":
		return fmt.Sprintf("€%.2f", amount)
	case "GBP":
		return fmt.Sprintf("£%.2f", amount)
	default:
		return fmt.Sprintf("%.2f %s", amount, strings.ToUpper(currency))
	}
}

// AccountLabel returns a short label for an account.
// Derives the label from the domain (e.g., "user@example.com" -> "example").
func AccountLabel(account string) string {
	if idx := strings.Index(account, "@"); idx > 0 {
		domain := account[idx+1:]
		if dotIdx := strings.Index(domain, "."); dotIdx > 0 {
			return domain[:dotIdx]
		}
		return domain
	}
	return account
}

// TimeAgo formats an ISO date string as a relative time.
func TimeAgo(isoDate string) string {
	if isoDate == "" {
		return ""
	}

	var t time.Time
	var err error
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05Z", "2006-01-02 15:04:05", "2006-01-02", time.RFC3339Nano} {
		t, err = time.Parse(layout, isoDate)
		if err == nil {
			break
		}
	}
	if err != nil {
		return isoDate[:min(10, len(isoDate))]
	}

	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		m := int(d.Minutes())
		return fmt.Sprintf("%dm ago", m)
	case d < 24*time.Hour:
		h := int(d.Hours())
		return fmt.Sprintf("%dh ago", h)
	case d < 7*24*time.Hour:
		days := int(d.Hours() / 24)
		return fmt.Sprintf("%dd ago", days)
	default:
		return t.Format("Jan 2")
	}
}

// Truncate shortens a string to maxLen, adding ellipsis if needed.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// SuccessMsg prints a green checkmark + message.
func SuccessMsg(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(Success.Render("✓") + " " + msg)
}

// WarnMsg prints an amber warning + message.
func WarnMsg(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(WarnTxt.Render("!") + " " + msg)
}

// ErrorMsg prints a red X + message to stderr.
func ErrorMsg(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, ErrStyle.Render("✗")+" "+msg)
}

// Header prints a section header.
func Header(title string) {
	fmt.Println(Bold.Render(title))
}

// SubHeader prints a dim subsection label.
func SubHeader(title string) {
	fmt.Println(Muted.Render(title))
}

// CandidateRow prints one ranked candidate in a tree-style row.
// connector is one of "┌─", "├─", "└─"
func CandidateRow(connector, service, amount, date string, confidence int) {
	fmt.Printf("  %s %s %s  %s  %s\n",
		Muted.Render(connector),
		ConfidenceBadge(confidence),
		Bold.Render(Truncate(service, 32)),
		amount,
		Dim.Render(date))
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
