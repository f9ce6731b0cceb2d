package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/blobprobe/blobprobe/internal/config"
)

const (
	settingsWidth      = 76
	settingsHeight     = 18
	settingsLabelWidth = 24
)

// viewSettings renders the settings panel. Values are read-only here;
// they are changed in settings.json or through BLOBPROBE_ environment variables.
func (m RootModel) viewSettings() string {
	width := min(settingsWidth, m.width-4)
	height := min(settingsHeight, m.height-4)

	category := config.CategoryOrder()[m.SettingsActiveTab]
	metas := config.GetSettingsMetadata()[category]
	values := m.getSettingsValues(category)

	body := lipgloss.JoinHorizontal(lipgloss.Top,
		m.settingsLabels(metas),
		lipgloss.NewStyle().Foreground(ColorGray).Render(strings.Repeat("│\n", max(len(metas)-1, 0))+"│"),
		settingsDetail(metas, values, m.SettingsSelectedRow, width-settingsLabelWidth-5),
	)

	panel := box{title: "Settings", border: ColorNeonPink}.render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.settingsTabs(),
			"",
			body,
			"",
			m.help.View(SettingsKeys),
		), width, height)

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, panel)
}

func (m RootModel) settingsTabs() string {
	tabs := make([]string, 0, len(config.CategoryOrder()))
	for i, category := range config.CategoryOrder() {
		style := TabStyle
		if i == m.SettingsActiveTab {
			style = ActiveTabStyle
		}
		tabs = append(tabs, style.Render(fmt.Sprintf("[%d] %s", i+1, category)))
	}
	return lipgloss.JoinHorizontal(lipgloss.Left, tabs...)
}

func (m RootModel) settingsLabels(metas []config.SettingMeta) string {
	selected := lipgloss.NewStyle().Foreground(ColorNeonPink).Bold(true)
	plain := lipgloss.NewStyle().Foreground(ColorLightGray)

	rows := make([]string, len(metas))
	for i, meta := range metas {
		if i == m.SettingsSelectedRow {
			rows[i] = selected.Render("> " + meta.Label)
		} else {
			rows[i] = plain.Render("  " + meta.Label)
		}
	}
	return lipgloss.NewStyle().Width(settingsLabelWidth).Render(strings.Join(rows, "\n"))
}

// settingsDetail shows the value, description and overriding variable of the selected row.
func settingsDetail(metas []config.SettingMeta, values map[string]any, row, width int) string {
	style := lipgloss.NewStyle().Width(max(width, 1)).PaddingLeft(1)
	if row < 0 || row >= len(metas) {
		return style.Render("")
	}
	meta := metas[row]

	return style.Render(lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().Foreground(ColorNeonCyan).Bold(true).
			Render("Value: "+formatSettingValue(values[meta.Key], meta.Type)),
		"",
		lipgloss.NewStyle().Foreground(ColorGray).Width(max(width-2, 1)).Render(meta.Description),
		"",
		lipgloss.NewStyle().Foreground(ColorLightGray).Render("Env: "+envName(meta.Key)),
	))
}

// getSettingsValues returns the current value of every setting in category, keyed like the metadata.
func (m RootModel) getSettingsValues(category string) map[string]any {
	s := m.Settings

	switch category {
	case "General":
		return map[string]any{
			"general.default_size_mb":     s.General.DefaultSizeMB,
			"general.theme":               s.General.Theme,
			"general.log_retention_count": s.General.LogRetentionCount,
		}
	case "Network":
		return map[string]any{
			"network.base_url":                s.Network.BaseURL,
			"network.user_agent":              s.Network.UserAgent,
			"network.proxy_url":               s.Network.ProxyURL,
			"network.skip_tls_verification":   s.Network.SkipTLSVerification,
			"network.read_buffer_size":        s.Network.ReadBufferSize,
			"network.response_header_timeout": s.Network.ResponseHeaderTimeout,
		}
	case "Registry":
		return map[string]any{
			"registry.backend":      s.Registry.Backend,
			"registry.sqlite_path":  s.SQLitePath(),
			"registry.blob_dir":     s.BlobDir(),
			"registry.redis_addr":   s.Registry.RedisAddr,
			"registry.redis_db":     s.Registry.RedisDB,
			"registry.redis_prefix": s.Registry.RedisPrefix,
			"registry.postgres_dsn": s.Registry.PostgresDSN,
			"registry.quota_bytes":  s.Registry.QuotaBytes,
		}
	}
	return map[string]any{}
}

// envName is the environment variable that overrides key.
func envName(key string) string {
	return "BLOBPROBE_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// getSettingsCount returns the number of settings in the active category.
func (m RootModel) getSettingsCount() int {
	category := config.CategoryOrder()[m.SettingsActiveTab]
	return len(config.GetSettingsMetadata()[category])
}

// formatSettingValue renders a value for the panel. int64 settings are byte sizes where 0 means no limit.
func formatSettingValue(value any, typ string) string {
	switch v := value.(type) {
	case nil:
		return "-"
	case bool:
		if v {
			return "True"
		}
		return "False"
	case time.Duration:
		return v.String()
	case int64:
		if typ != "int64" {
			return fmt.Sprintf("%d", v)
		}
		if v == 0 {
			return "Unlimited"
		}
		return humanize.IBytes(uint64(v))
	case string:
		if v == "" {
			return "(default)"
		}
		if len([]rune(v)) > 30 {
			return truncateString(v, 27)
		}
		return v
	case float64:
		return fmt.Sprintf("%.2f", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
