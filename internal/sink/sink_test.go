package sink

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kolwatch/internal/transport"
	logx "kolwatch/pkg/logx"
)

type sentMessage struct {
	to   transport.ChatTarget
	text string
	opt  transport.SendOptions
}

type fakeSender struct {
	sent []sentMessage
	err  error
}

func (f *fakeSender) SendText(_ context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) (transport.MessageRef, error) {
	if f.err != nil {
		return transport.MessageRef{}, f.err
	}
	f.sent = append(f.sent, sentMessage{to: to, text: text, opt: *opt})
	return transport.MessageRef{ChatID: to.ChatID, MessageID: len(f.sent)}, nil
}

func postNote() Notification {
	return Notification{
		Kind:      KindPost,
		Handle:    "alice",
		PostID:    "42",
		Text:      "<script> & more",
		Permalink: "https://twitter.com/i/web/status/42",
	}
}

func TestFormatHTMLPost(t *testing.T) {
	t.Parallel()
	got := FormatHTML(postNote())
	want := "<b>🔔 New Tweet from @alice!</b>\n\n📝 &lt;script&gt; &amp; more\n\n🔗 <a href=\"https://twitter.com/i/web/status/42\">https://twitter.com/i/web/status/42</a>"
	assert.Equal(t, want, got)
}

func TestFormatHTMLStatus(t *testing.T) {
	t.Parallel()
	got := FormatHTML(Notification{Kind: KindError, Text: "❌ Error: a<b"})
	assert.Equal(t, "❌ Error: a&lt;b", got)
}

func TestFormatHTMLTruncatesLongStatus(t *testing.T) {
	t.Parallel()
	got := FormatHTML(Notification{Kind: KindError, Text: strings.Repeat("x", 3*maxStatusRunes)})
	assert.Equal(t, maxStatusRunes+1, utf8.RuneCountInString(got))
	assert.True(t, strings.HasSuffix(got, "…"))
}

func TestTelegramDeliver(t *testing.T) {
	t.Parallel()
	fs := &fakeSender{}
	to := transport.ChatTarget{Username: "@kol_alerts"}
	tg, err := NewTelegram(fs, to)
	require.NoError(t, err)

	require.NoError(t, tg.Deliver(context.Background(), postNote()))

	require.Len(t, fs.sent, 1)
	assert.Equal(t, to, fs.sent[0].to)
	assert.Equal(t, "HTML", fs.sent[0].opt.ParseMode)
	assert.True(t, fs.sent[0].opt.DisablePreview)
	assert.Contains(t, fs.sent[0].text, "@alice")
}

func TestTelegramDeliverWrapsError(t *testing.T) {
	t.Parallel()
	boom := errors.New("forbidden")
	tg, err := NewTelegram(&fakeSender{err: boom}, transport.ChatTarget{ChatID: -1001})
	require.NoError(t, err)

	err = tg.Deliver(context.Background(), postNote())
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "-1001")
}

func TestNewTelegramValidates(t *testing.T) {
	t.Parallel()
	_, err := NewTelegram(nil, transport.ChatTarget{ChatID: 1})
	require.Error(t, err)
	_, err = NewTelegram(&fakeSender{}, transport.ChatTarget{})
	require.Error(t, err)
}

type playCall struct {
	name string
	args []string
}

func newTestAudio(cfg AudioConfig, exists bool, runErr error) (*Audio, *[]playCall) {
	a := NewAudio(cfg, logx.Nop())
	var calls []playCall
	a.run = func(_ context.Context, name string, args ...string) ([]byte, error) {
		calls = append(calls, playCall{name: name, args: args})
		if runErr != nil {
			return []byte("device busy"), runErr
		}
		return nil, nil
	}
	a.exists = func(string) bool { return exists }
	return a, &calls
}

func TestAudioPlaysConfiguredSound(t *testing.T) {
	t.Parallel()
	a, calls := newTestAudio(AudioConfig{}, true, nil)

	require.NoError(t, a.Deliver(context.Background(), postNote()))

	require.Len(t, *calls, 1)
	assert.Equal(t, DefaultPlayer, (*calls)[0].name)
	assert.Equal(t, []string{DefaultSoundFile}, (*calls)[0].args)
}

func TestAudioFallsBackToSystemSound(t *testing.T) {
	t.Parallel()
	a, calls := newTestAudio(AudioConfig{Player: "paplay", Args: []string{"--volume=65536"}}, false, nil)

	require.NoError(t, a.Deliver(context.Background(), postNote()))

	require.Len(t, *calls, 1)
	assert.Equal(t, "paplay", (*calls)[0].name)
	assert.Equal(t, []string{"--volume=65536", DefaultFallbackSound}, (*calls)[0].args)
}

func TestAudioSkipsStatusNotifications(t *testing.T) {
	t.Parallel()
	a, calls := newTestAudio(AudioConfig{}, true, nil)

	require.NoError(t, a.Deliver(context.Background(), Notification{Kind: KindStatus, Text: "started"}))
	require.NoError(t, a.Deliver(context.Background(), Notification{Kind: KindError, Text: "oops"}))
	assert.Empty(t, *calls)
}

func TestAudioReportsPlayerFailure(t *testing.T) {
	t.Parallel()
	a, _ := newTestAudio(AudioConfig{}, true, errors.New("exit status 1"))

	err := a.Deliver(context.Background(), postNote())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device busy")
}

func TestOpen(t *testing.T) {
	t.Parallel()
	s, err := Open(Config{Driver: "telegram", TelegramChat: transport.ChatTarget{ChatID: 5}}, &fakeSender{}, logx.Nop())
	require.NoError(t, err)
	assert.Equal(t, "telegram", s.Name())

	s, err = Open(Config{Driver: "AUDIO"}, nil, logx.Nop())
	require.NoError(t, err)
	assert.Equal(t, "audio", s.Name())

	s, err = Open(Config{Driver: "log"}, nil, logx.Nop())
	require.NoError(t, err)
	require.NoError(t, s.Deliver(context.Background(), postNote()))

	_, err = Open(Config{Driver: "pager"}, nil, logx.Nop())
	require.Error(t, err)
}
