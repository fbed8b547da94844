package adapter

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	kit "kolwatch/internal/transport"
	logx "kolwatch/pkg/logx"
)

type Config struct {
	Token string
	// URL overrides the Bot API endpoint (tests, local bot api server).
	URL string

	RequestTimeout time.Duration
	// SendRate limits outgoing messages per second; Burst is the bucket size.
	SendRate float64
	Burst    int
}

// Adapter is a send-only Telegram client. kolwatch never reads updates,
// so there is no poller and nothing to start.
type Adapter struct {
	cfg Config
	log logx.Logger

	bot     *tele.Bot
	limiter *rate.Limiter

	mu     sync.Mutex
	closed bool
}

// New connects to the Bot API (getMe) to validate the token.
func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		URL:    cfg.URL,
		Client: &http.Client{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Adapter{cfg: cfg, log: log, bot: b, limiter: newLimiter(cfg.SendRate, cfg.Burst)}, nil
}

func newLimiter(perSec float64, burst int) *rate.Limiter {
	if perSec <= 0 {
		// Telegram allows about one message per second per chat.
		perSec = 1
	}
	if burst <= 0 {
		burst = 3
	}
	return rate.NewLimiter(rate.Limit(perSec), burst)
}

// BotUsername is the bot's own @name as reported by getMe.
func (a *Adapter) BotUsername() string {
	if a.bot == nil || a.bot.Me == nil {
		return ""
	}
	return a.bot.Me.Username
}

// recipient lets telebot address a public channel by "@username".
type recipient string

func (r recipient) Recipient() string { return string(r) }

func recipientFor(to kit.ChatTarget) tele.Recipient {
	if to.ChatID != 0 {
		return &tele.Chat{ID: to.ChatID}
	}
	return recipient(to.Username)
}

func (a *Adapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	if to.IsZero() {
		return kit.MessageRef{}, errors.New("telegram: empty chat target")
	}
	a.mu.Lock()
	closed := a.closed
	a.mu.Unlock()
	if closed {
		return kit.MessageRef{}, errors.New("telegram: adapter closed")
	}
	if opt == nil {
		opt = &kit.SendOptions{}
	}

	chunks := splitTelegramText(text, telegramTextLimit, opt.ParseMode)
	if len(chunks) == 0 {
		chunks = []string{""}
	}

	dst := recipientFor(to)
	var first kit.MessageRef
	for i, chunk := range chunks {
		if err := a.limiter.Wait(ctx); err != nil {
			return first, err
		}
		sendOpt := &tele.SendOptions{
			ParseMode:             tele.ParseMode(opt.ParseMode),
			DisableWebPagePreview: opt.DisablePreview,
			ThreadID:              to.ThreadID,
		}
		msg, err := a.bot.Send(dst, chunk, sendOpt)
		if err != nil {
			a.log.Debug("telegram send failed", logx.String("chat", to.String()), logx.Int("chunk", i), logx.Err(err))
			return first, err
		}
		if i == 0 {
			first = kit.MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID, MessageID: msg.ID}
			if msg.Chat != nil {
				first.ChatID = msg.Chat.ID
			}
		}
	}
	return first, nil
}

// Close rejects further sends. In-flight sends finish on their own.
func (a *Adapter) Close(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	return nil
}

const telegramTextLimit = 4000

// splitTelegramText splits long messages into chunks that are safe to send to Telegram.
// It prefers newline boundaries and (best-effort) avoids splitting inside HTML tags when ParseMode is HTML.
func splitTelegramText(s string, limit int, parseMode string) []string {
	if limit <= 0 {
		limit = telegramTextLimit
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return []string{s}
	}

	out := make([]string, 0, (len(rs)+limit-1)/limit)
	start := 0
	for start < len(rs) {
		end := min(start+limit, len(rs))
		if end < len(rs) {
			end = newlineCut(rs, start, end, limit)
		}
		if strings.EqualFold(parseMode, string(tele.ModeHTML)) && end < len(rs) {
			end = tagSafeCut(rs, start, end)
		}

		out = append(out, strings.TrimRight(string(rs[start:end]), "\n"))

		start = end
		for start < len(rs) && rs[start] == '\n' {
			start++
		}
	}
	return out
}

// newlineCut moves end back to just after the last newline in the window,
// unless that would leave a chunk shorter than a third of limit.
func newlineCut(rs []rune, start, end, limit int) int {
	for i := end - 1; i > start; i-- {
		if rs[i] == '\n' && i-start >= limit/3 {
			return i + 1
		}
	}
	return end
}

// tagSafeCut moves end back to the start of a tag left open in the window.
func tagSafeCut(rs []rune, start, end int) int {
	lastOpen, lastClose := -1, -1
	for i := start; i < end; i++ {
		switch rs[i] {
		case '<':
			lastOpen = i
		case '>':
			lastClose = i
		}
	}
	if lastOpen > lastClose && lastOpen > start+1 {
		return lastOpen
	}
	return end
}
