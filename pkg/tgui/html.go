package tgui

import (
	"fmt"
	"html"
	"strings"
)

// H represents HTML that is safe to pass to Telegram when ParseMode="HTML".
// Values of type H should be treated as already-escaped.
type H string

func (h H) String() string { return string(h) }

// Esc escapes text for Telegram HTML parse mode.
func Esc(s string) H { return H(html.EscapeString(s)) }

func wrap(tag string, inner H) H { return H("<" + tag + ">" + inner.String() + "</" + tag + ">") }

// B is bold, escaped text.
func B(s string) H { return wrap("b", Esc(s)) }

// Link builds an <a> tag. Both the label and the URL are escaped.
func Link(text, url string) H {
	return H(fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(url), html.EscapeString(text)))
}

// Lines joins non-empty parts with newlines. Empty strings keep their
// place as blank lines; whitespace-only parts are dropped.
func Lines(parts ...H) H {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" && strings.TrimSpace(p.String()) == "" {
			continue
		}
		out = append(out, p.String())
	}
	return H(strings.Join(out, "\n"))
}
