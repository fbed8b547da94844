package transport

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// ChatTarget addresses a chat. Public channels may be addressed by
// username ("@channel") instead of numeric id.
type ChatTarget struct {
	ChatID   int64
	Username string
	ThreadID int // telegram forum topic thread id (0 if none)
}

func (t ChatTarget) IsZero() bool { return t.ChatID == 0 && t.Username == "" }

func (t ChatTarget) String() string {
	if t.ChatID != 0 {
		return strconv.FormatInt(t.ChatID, 10)
	}
	return t.Username
}

// ParseChatTarget accepts a numeric chat id ("-100123...") or a channel
// username ("@name" or "name").
func ParseChatTarget(raw string) (ChatTarget, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ChatTarget{}, fmt.Errorf("chat target is empty")
	}
	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		if id == 0 {
			return ChatTarget{}, fmt.Errorf("chat target: id must be non-zero")
		}
		return ChatTarget{ChatID: id}, nil
	}
	name := strings.TrimPrefix(s, "@")
	if name == "" || strings.ContainsAny(name, " \t\n/") {
		return ChatTarget{}, fmt.Errorf("chat target: invalid username %q", raw)
	}
	return ChatTarget{Username: "@" + name}, nil
}

type MessageRef struct {
	ChatID    int64
	ThreadID  int
	MessageID int
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

// Sender delivers text messages to a chat.
type Sender interface {
	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
}

// Adapter is a Sender with a lifecycle.
type Adapter interface {
	Sender
	Close(ctx context.Context) error
}
