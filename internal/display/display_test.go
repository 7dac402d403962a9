package display

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMoney(t *testing.T) {
	t.Parallel()

	require.Equal(t, "$15.99", Money(15.99, "USD"))
	require.Equal(t, "$15.99", Money(15.99, ""))
	require.Equal(t, "€9.99", Money(9.99, "EUR"))
	require.Equal(t, "£4.50", Money(4.50, "gbp"))
	require.Equal(t, "120.00 AUD", Money(120, "AUD"))
}

func TestAccountLabel(t *testing.T) {
	t.Parallel()

	require.Equal(t, "example", AccountLabel("user@example.com"))
	require.Equal(t, "gmail", AccountLabel("someone@gmail.com"))
	require.Equal(t, "localhost", AccountLabel("user@localhost"))
	require.Equal(t, "plainstring", AccountLabel("plainstring"))
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	require.Equal(t, "short", Truncate("short", 10))
	require.Equal(t, "exactly", Truncate("exactly", 7))
	require.Equal(t, "long st...", Truncate("long string here", 10))
	require.Equal(t, "ab", Truncate("abcdef", 2))
}

func TestConfidenceDot(t *testing.T) {
	t.Parallel()

	// The glyph encodes the confidence band.
	require.Contains(t, ConfidenceDot(95), "●")
	require.Contains(t, ConfidenceDot(80), "●")
	require.Contains(t, ConfidenceDot(70), "◐")
	require.Contains(t, ConfidenceDot(40), "○")
}
