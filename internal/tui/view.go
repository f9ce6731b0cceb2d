package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/dustin/go-humanize"

	"github.com/blobprobe/blobprobe/internal/registry"
)

// ListWidthRatio is the share of the terminal width given to the blob list column.
const ListWidthRatio = 0.6

const logoText = `
██████  ██       ██████  ██████
██   ██ ██      ██    ██ ██   ██
██████  ██      ██    ██ ██████
██   ██ ██      ██    ██ ██   ██
██████  ███████  ██████  ██████  probe`

// layout is the size of every dashboard box for one terminal size.
type layout struct {
	leftWidth, rightWidth     int
	headerHeight, listHeight  int
	graphHeight, detailHeight int
}

func dashboardLayout(width, height int) layout {
	usableWidth := width - 4
	usableHeight := height - 2

	l := layout{headerHeight: 8}
	l.leftWidth = int(float64(usableWidth) * ListWidthRatio)
	l.rightWidth = usableWidth - l.leftWidth - 2
	l.listHeight = max(usableHeight-l.headerHeight, 10)
	l.graphHeight = max(usableHeight/3, 9)
	l.detailHeight = max(usableHeight-l.graphHeight, 10)
	return l
}

func (m RootModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	switch m.state {
	case SettingsState:
		return m.viewSettings()
	case ConfirmDeleteState:
		return m.viewConfirmDelete()
	}

	l := dashboardLayout(m.width, m.height)
	logo := lipgloss.NewStyle().
		Width(l.leftWidth).
		Height(l.headerHeight).
		Padding(0, 2).
		Render(LogoStyle.Render(logoText))

	left := lipgloss.JoinVertical(lipgloss.Left, logo, m.viewBlobBox(l))
	right := lipgloss.JoinVertical(lipgloss.Left, m.renderGraph(l.rightWidth, l.graphHeight), m.viewDetailBox(l))

	return lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.JoinHorizontal(lipgloss.Top, left, right),
		m.viewStatus(),
		lipgloss.NewStyle().Padding(0, 1).Render(m.help.View(DashboardKeys)),
	)
}

func (m RootModel) viewConfirmDelete() string {
	prompt := lipgloss.JoinVertical(lipgloss.Center,
		lipgloss.NewStyle().Foreground(ColorNeonPink).Bold(true).Render("⚠ DELETE BLOB"),
		"",
		lipgloss.NewStyle().Foreground(ColorNeonPurple).Bold(true).
			Render(fmt.Sprintf("Blob %d will be removed from the registry", m.pendingDelete)),
		"",
		m.help.View(ConfirmKeys),
	)
	dialog := lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(ColorNeonPink).
		Padding(1, 3).
		Render(prompt)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, dialog)
}

// viewBlobBox is the blob list, titled with the count and the total stored size.
func (m RootModel) viewBlobBox(l layout) string {
	var content string
	if len(m.blobs) == 0 {
		content = lipgloss.Place(l.leftWidth-8, l.listHeight-4, lipgloss.Center, lipgloss.Center,
			lipgloss.NewStyle().Foreground(ColorNeonCyan).Render("No blobs stored"))
	} else {
		content = m.renderBlobList(l.leftWidth-6, l.listHeight-4)
	}

	title := fmt.Sprintf("Blobs (%d, %s)", len(m.blobs), humanize.IBytes(uint64(registry.TotalSize(m.blobs))))
	return box{title: title, border: ColorNeonPink, titleRight: true}.
		render(lipgloss.NewStyle().Padding(1, 2).Render(content), l.leftWidth, l.listHeight)
}

// viewDetailBox shows running downloads while there are any, otherwise the selected blob.
func (m RootModel) viewDetailBox(l layout) string {
	title := "Blob Details"
	var content string
	switch selected := m.SelectedBlob(); {
	case len(m.downloads) > 0:
		title = "Activity"
		content = m.renderDownloads(l.rightWidth - 4)
	case selected != nil:
		content = renderBlobDetails(*selected, l.rightWidth-4)
	default:
		content = lipgloss.Place(l.rightWidth-4, l.detailHeight-4, lipgloss.Center, lipgloss.Center,
			lipgloss.NewStyle().Foreground(ColorNeonCyan).Render("No Blob Selected"))
	}
	return box{title: title, border: ColorGray, titleRight: true}.render(content, l.rightWidth, l.detailHeight)
}

func (m RootModel) viewStatus() string {
	if m.status == "" {
		return ""
	}
	style := StatusStyle
	if m.statusErr {
		style = StatusErrorStyle
	}
	return style.Render(truncateString(m.status, m.width-4))
}

func (m RootModel) renderGraph(width, height int) string {
	const axisWidth = 6
	// borders, axis margin and right padding
	graphWidth := max(width-axisWidth-5, 10)
	// borders, title and spacer
	graphHeight := max(height-4, 1)
	ceiling := graphCeiling(m.SpeedHistory)

	fullGraphRow := lipgloss.JoinHorizontal(lipgloss.Top,
		renderSpeedAxis(ceiling, axisWidth, graphHeight),
		lipgloss.NewStyle().MarginLeft(1).Render(
			renderSpeedGraph(m.SpeedHistory, graphWidth, graphHeight, ceiling)),
	)

	currentSpeed := 0.0
	if len(m.SpeedHistory) > 0 {
		currentSpeed = m.SpeedHistory[len(m.SpeedHistory)-1]
	}

	titleStyle := lipgloss.NewStyle().
		Width(width - 4).
		Align(lipgloss.Right).
		Foreground(ColorNeonPink).
		Bold(true)

	speedContent := lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render(fmt.Sprintf("Current: %.2f MB/s", currentSpeed)),
		"", // Spacer line
		fullGraphRow,
	)

	return box{title: "Network Activity", border: ColorNeonCyan}.render(speedContent, width, height)
}

// renderBlobList renders one row per blob, scrolled so the cursor stays visible.
func (m RootModel) renderBlobList(width, height int) string {
	row := func(id, size, typ, digest, stored string) string {
		return fmt.Sprintf("%-6s %10s  %-24s %-*s %s",
			id, size, truncateString(typ, 21), DigestPrefixLength+3, digest, stored)
	}

	lines := []string{ColumnHeaderStyle.Render(row("ID", "SIZE", "TYPE", "SHA256", "STORED"))}

	visible := height - 1
	if visible < 1 {
		visible = 1
	}
	start := 0
	if m.cursor >= visible {
		start = m.cursor - visible + 1
	}

	for i := start; i < len(m.blobs) && i < start+visible; i++ {
		b := m.blobs[i]
		line := row(
			fmt.Sprintf("%d", b.ID),
			humanize.IBytes(uint64(b.Size)),
			b.ContentType,
			truncateString(b.SHA256, DigestPrefixLength),
			humanize.Time(b.StoredAt),
		)
		line = truncateString(line, width)
		if i == m.cursor {
			lines = append(lines, SelectedItemStyle.Render("> "+line))
		} else {
			lines = append(lines, ItemStyle.Render("  "+line))
		}
	}
	return strings.Join(lines, "\n")
}

// renderDownloads renders a compact block per running or recently finished download.
func (m RootModel) renderDownloads(w int) string {
	progressWidth := w - 12
	if progressWidth < 20 {
		progressWidth = 20
	}

	var blocks []string
	for _, d := range m.downloads {
		pct := 0.0
		if d.Total > 0 {
			pct = float64(d.Loaded) / float64(d.Total)
		}
		if pct > 1 {
			pct = 1
		}
		d.progress.Width = progressWidth

		header := lipgloss.JoinHorizontal(lipgloss.Left,
			lipgloss.NewStyle().Foreground(ColorNeonCyan).Bold(true).Render(fmt.Sprintf("Blob %d", d.BlobID)),
			"  ",
			getDownloadStatus(d),
		)
		sizes := fmt.Sprintf("%s / %s  %.2f MB/s  %s",
			humanize.IBytes(uint64(d.Loaded)),
			humanize.IBytes(uint64(d.Total)),
			d.Speed/Megabyte,
			d.Elapsed.Round(time.Second),
		)

		blocks = append(blocks, lipgloss.JoinVertical(lipgloss.Left,
			header,
			lipgloss.NewStyle().MarginLeft(1).Render(d.progress.ViewAs(pct)),
			StatsValueStyle.Render(sizes),
		))
	}

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(strings.Join(blocks, "\n\n"))
}

// Helper to render the detailed info pane
func renderBlobDetails(b registry.BlobInfo, w int) string {
	contentWidth := w - 6
	if contentWidth < 10 {
		contentWidth = 10
	}

	// Section divider
	divider := lipgloss.NewStyle().
		Foreground(ColorGray).
		Render(strings.Repeat("─", contentWidth))

	info := lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.JoinHorizontal(lipgloss.Left, StatsLabelStyle.Render("ID:"), StatsValueStyle.Render(fmt.Sprintf("%d", b.ID))),
		lipgloss.JoinHorizontal(lipgloss.Left, StatsLabelStyle.Render("Size:"), StatsValueStyle.Render(fmt.Sprintf("%s (%s bytes)", humanize.IBytes(uint64(b.Size)), humanize.Comma(b.Size)))),
		lipgloss.JoinHorizontal(lipgloss.Left, StatsLabelStyle.Render("Type:"), StatsValueStyle.Render(b.ContentType)),
		lipgloss.JoinHorizontal(lipgloss.Left, StatsLabelStyle.Render("Stored:"), StatsValueStyle.Render(b.StoredAt.Format(time.RFC3339))),
	)

	digest := lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().Foreground(ColorNeonCyan).Bold(true).Render("SHA256"),
		"",
		lipgloss.NewStyle().Foreground(ColorLightGray).Width(contentWidth).Render(b.SHA256),
	)

	content := lipgloss.JoinVertical(lipgloss.Left,
		"",
		info,
		divider,
		"",
		digest,
	)

	return lipgloss.NewStyle().
		Padding(0, 2).
		Render(content)
}

func getDownloadStatus(d *DownloadModel) string {
	style := lipgloss.NewStyle()

	switch {
	case d.err != nil:
		return style.Foreground(ColorError).Render("✖ Error")
	case d.done:
		return style.Foreground(ColorSuccess).Render("✔ Stored")
	case d.Loaded == 0:
		return style.Foreground(ColorWarning).Render("o Connecting")
	default:
		return style.Foreground(ColorNeonCyan).Render("⬇ Downloading")
	}
}

// calcTotalSpeed sums the speed of unfinished downloads in MB/s.
func (m RootModel) calcTotalSpeed() float64 {
	total := 0.0
	for _, d := range m.downloads {
		// Skip completed downloads
		if d.done {
			continue
		}
		total += d.Speed
	}
	return total / Megabyte
}

func truncateString(s string, i int) string {
	if i <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) > i {
		return string(runes[:i]) + "..."
	}
	return s
}

// box draws a rounded border with its title set into the top edge:
//
//	╭─ title ──────╮   or   ╭────── title ─╮
type box struct {
	title      string
	border     lipgloss.Color
	titleRight bool
}

// render fits content into width x height, padding or cutting each line.
func (b box) render(content string, width, height int) string {
	inner := max(width-2, 1)
	edge := lipgloss.NewStyle().Foreground(b.border)
	label := lipgloss.NewStyle().Foreground(ColorNeonCyan).Bold(true).Render(" " + b.title + " ")
	fill := strings.Repeat("─", max(inner-lipgloss.Width(label)-1, 0))

	var top string
	if b.titleRight {
		top = edge.Render("╭"+fill) + label + edge.Render("─╮")
	} else {
		top = edge.Render("╭─") + label + edge.Render(fill+"╮")
	}

	lines := strings.Split(content, "\n")
	rows := make([]string, 0, max(height, 2))
	rows = append(rows, top)
	for i := 0; i < height-2; i++ {
		var line string
		if i < len(lines) {
			line = ansi.Truncate(lines[i], inner, "")
		}
		line += strings.Repeat(" ", max(inner-lipgloss.Width(line), 0))
		rows = append(rows, edge.Render("│")+line+edge.Render("│"))
	}
	rows = append(rows, edge.Render("╰"+strings.Repeat("─", inner)+"╯"))
	return strings.Join(rows, "\n")
}
