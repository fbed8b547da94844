package monitor

import (
	"strings"
	"time"

	"kolwatch/internal/sink"
	"kolwatch/internal/twitter"
)

const DefaultPermalinkBase = "https://twitter.com/i/web/status/"

// Permalink joins base and a post id.
func Permalink(base, postID string) string {
	if base == "" {
		base = DefaultPermalinkBase
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + postID
}

func postNotification(p twitter.Post, handle, permalink string, at time.Time) sink.Notification {
	return sink.Notification{
		Kind:      sink.KindPost,
		Handle:    handle,
		PostID:    p.ID,
		Text:      p.Text,
		Permalink: permalink,
		At:        at,
	}
}

// StartNotification lists the monitored handles.
func StartNotification(handles []string, at time.Time) sink.Notification {
	var b strings.Builder
	b.WriteString("🐦 Twitter Monitor Bot Started\n\nMonitoring handles:")
	for _, h := range handles {
		b.WriteString("\n@")
		b.WriteString(h)
	}
	return sink.Notification{Kind: sink.KindStatus, Text: b.String(), At: at}
}

func StopNotification(at time.Time) sink.Notification {
	return sink.Notification{Kind: sink.KindStatus, Text: "👋 Bot shutting down...", At: at}
}

func ErrorNotification(err error, at time.Time) sink.Notification {
	return sink.Notification{Kind: sink.KindError, Text: "❌ Error: " + err.Error(), At: at}
}
