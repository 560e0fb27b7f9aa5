// Package styles provides shared lipgloss styles for CLI output.
package styles

import "github.com/charmbracelet/lipgloss"

// CurrentPalette holds the active theme palette.
var CurrentPalette Palette

var (
	TextPrimaryBoldStyle    lipgloss.Style
	TextForegroundBoldStyle lipgloss.Style
	TextMutedStyle          lipgloss.Style
	TextSuccessStyle        lipgloss.Style
	TextWarningStyle        lipgloss.Style
	TextErrorStyle          lipgloss.Style

	TableHeaderStyle lipgloss.Style
	BadgeStyle       lipgloss.Style
	EventKindStyle   lipgloss.Style

	JSONKeyStyle     lipgloss.Style
	JSONLiteralStyle lipgloss.Style
)

// SetTheme sets the active palette and rebuilds all global styles.
func SetTheme(p Palette) {
	CurrentPalette = p

	TextPrimaryBoldStyle = lipgloss.NewStyle().Foreground(p.Primary).Bold(true)
	TextForegroundBoldStyle = lipgloss.NewStyle().Foreground(p.Foreground).Bold(true)
	TextMutedStyle = lipgloss.NewStyle().Foreground(p.Muted)
	TextSuccessStyle = lipgloss.NewStyle().Foreground(p.Success)
	TextWarningStyle = lipgloss.NewStyle().Foreground(p.Warning)
	TextErrorStyle = lipgloss.NewStyle().Foreground(p.Error)

	TableHeaderStyle = lipgloss.NewStyle().Foreground(p.Secondary).Bold(true)
	BadgeStyle = lipgloss.NewStyle().
		Foreground(p.Foreground).
		Background(p.Surface).
		Padding(0, 1)
	EventKindStyle = lipgloss.NewStyle().Foreground(p.Secondary).Width(26)

	JSONKeyStyle = lipgloss.NewStyle().Foreground(p.Primary)
	JSONLiteralStyle = lipgloss.NewStyle().Foreground(p.Secondary)
}

// StatusStyle picks a style for an order or connection status word.
func StatusStyle(status string) lipgloss.Style {
	switch status {
	case "connected", "delivered", "completed", "active", "fresh", "in_stock", "pass":
		return TextSuccessStyle
	case "pending", "processing", "connecting", "stale", "low_stock", "warn":
		return TextWarningStyle
	case "cancelled", "failed", "disconnected", "out_of_stock", "fail":
		return TextErrorStyle
	}
	return TextMutedStyle
}

// nolint:gochecknoinits // bootstrap default theme before any style is accessed.
func init() {
	SetTheme(themes[DefaultTheme])
}
