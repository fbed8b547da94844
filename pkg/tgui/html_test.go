package tgui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEscAndTags(t *testing.T) {
	t.Parallel()
	assert.Equal(t, H("a &lt;b&gt; &amp; c"), Esc("a <b> & c"))
	assert.Equal(t, H("<b>x&lt;y</b>"), B("x<y"))
}

func TestLink(t *testing.T) {
	t.Parallel()
	got := Link("open <here>", `https://x.com/?a=1&b="2"`)
	assert.Equal(t, H(`<a href="https://x.com/?a=1&amp;b=&#34;2&#34;">open &lt;here&gt;</a>`), got)
}

func TestLines(t *testing.T) {
	t.Parallel()
	got := Lines(B("t"), "", Esc("body"), H("  "), Esc("end"))
	assert.Equal(t, H("<b>t</b>\n\nbody\nend"), got)
}

func TestTruncRunes(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "", TruncRunes("abc", 0))
	assert.Equal(t, "abc", TruncRunes("abc", 3))
	assert.Equal(t, "ab…", TruncRunes("abc", 2))
	assert.Equal(t, "éé…", TruncRunes("ééé", 2))
}
