package adapter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	kit "kolwatch/internal/transport"
	logx "kolwatch/pkg/logx"
)

func TestSplitTelegramTextShort(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []string{"hello"}, splitTelegramText("hello", 10, ""))
}

func TestSplitTelegramTextPrefersNewlines(t *testing.T) {
	t.Parallel()
	s := strings.Repeat("a", 6) + "\n" + strings.Repeat("b", 6)
	got := splitTelegramText(s, 10, "")
	assert.Equal(t, []string{"aaaaaa", "bbbbbb"}, got)
}

func TestSplitTelegramTextCountsRunes(t *testing.T) {
	t.Parallel()
	s := strings.Repeat("é", 25)
	got := splitTelegramText(s, 10, "")
	require.Len(t, got, 3)
	for _, c := range got {
		assert.LessOrEqual(t, len([]rune(c)), 10)
	}
	assert.Equal(t, s, strings.Join(got, ""))
}

func TestSplitTelegramTextAvoidsOpenTag(t *testing.T) {
	t.Parallel()
	s := "abcdefg<a href=\"x\">link</a>"
	got := splitTelegramText(s, 10, "HTML")
	require.NotEmpty(t, got)
	assert.Equal(t, "abcdefg", got[0])
	assert.True(t, strings.HasPrefix(got[1], "<a"))
}

func TestRecipientFor(t *testing.T) {
	t.Parallel()
	r := recipientFor(kit.ChatTarget{ChatID: -100123})
	chat, ok := r.(*tele.Chat)
	require.True(t, ok)
	assert.Equal(t, int64(-100123), chat.ID)

	r = recipientFor(kit.ChatTarget{Username: "@news"})
	assert.Equal(t, "@news", r.Recipient())
}

func TestNewLimiterDefaults(t *testing.T) {
	t.Parallel()
	l := newLimiter(0, 0)
	assert.Equal(t, 3, l.Burst())
	assert.InDelta(t, 1.0, float64(l.Limit()), 1e-9)
}

func TestNewRequiresToken(t *testing.T) {
	t.Parallel()
	_, err := New(Config{Token: "  "}, logx.Nop())
	require.Error(t, err)
}
