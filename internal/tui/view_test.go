package tui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBox_Render(t *testing.T) {
	out := box{title: "Blobs", border: ColorGray}.render("abc\nthis line is far too long", 12, 4)
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 4)

	for _, line := range lines {
		assert.Equal(t, 12, lipgloss.Width(line), "line %q", line)
	}
	assert.Contains(t, lines[0], "Blobs")
	assert.True(t, strings.HasPrefix(lines[0], "╭─"))
	assert.Contains(t, lines[1], "abc")
	assert.Contains(t, lines[2], "this line")
	assert.NotContains(t, lines[2], "too long")
	assert.True(t, strings.HasPrefix(lines[3], "╰"))
}

func TestBox_TitleRight(t *testing.T) {
	out := box{title: "Details", border: ColorGray, titleRight: true}.render("", 20, 3)
	top := strings.Split(out, "\n")[0]
	assert.True(t, strings.HasSuffix(top, "Details ─╮"), "top edge %q", top)
}

func TestDashboardLayout(t *testing.T) {
	l := dashboardLayout(140, 40)
	assert.Equal(t, 81, l.leftWidth)
	assert.Equal(t, 53, l.rightWidth)
	assert.Equal(t, 30, l.listHeight)
	assert.Equal(t, 12, l.graphHeight)
	assert.Equal(t, 26, l.detailHeight)

	tiny := dashboardLayout(3, 3)
	assert.Equal(t, 10, tiny.listHeight)
	assert.Equal(t, 9, tiny.graphHeight)
}
