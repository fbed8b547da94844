package sink

import "kolwatch/pkg/tgui"

// maxStatusRunes keeps error bodies from the API readable in a chat.
const maxStatusRunes = 1000

// FormatHTML renders n for Telegram's HTML parse mode.
func FormatHTML(n Notification) string {
	if n.Kind != KindPost {
		return tgui.Esc(tgui.TruncRunes(n.Text, maxStatusRunes)).String()
	}
	return tgui.Lines(
		tgui.B("🔔 New Tweet from @"+n.Handle+"!"),
		"",
		tgui.Esc("📝 "+n.Text),
		"",
		tgui.Esc("🔗 ")+tgui.Link(n.Permalink, n.Permalink),
	).String()
}

// FormatPlain renders n as a single console line.
func FormatPlain(n Notification) string {
	if n.Kind != KindPost {
		return n.Text
	}
	return "New tweet from @" + n.Handle + ": " + n.Text + " " + n.Permalink
}
