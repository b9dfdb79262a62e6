package ui

import "github.com/charmbracelet/lipgloss"

// Semantic color palette.
var (
	colorPrimary    = lipgloss.Color("#00BFFF") // Cyan, primary accent
	colorAccent     = lipgloss.Color("#FFD700") // Gold, warnings and medium priority
	colorSuccess    = lipgloss.Color("#00E676") // Green, converged and low priority
	colorDanger     = lipgloss.Color("#FF5252") // Red, errors and high priority
	colorMuted      = lipgloss.Color("#636363") // Gray, de-emphasized
	colorMutedLight = lipgloss.Color("#8C8C8C") // Lighter gray, normal text
	colorWhite      = lipgloss.Color("#EEEEEE") // Off-white, primary text
)

// Status icons.
const (
	iconDone    = "✓"
	iconFailed  = "✗"
	iconWarning = "⚠"
	iconBullet  = "·"
)

var (
	styleTitle = lipgloss.NewStyle().
			Foreground(colorPrimary).
			Bold(true)

	styleSection = lipgloss.NewStyle().
			Foreground(colorWhite).
			Bold(true).
			MarginTop(1)

	styleLabel = lipgloss.NewStyle().
			Foreground(colorMutedLight).
			Width(22)

	styleValue = lipgloss.NewStyle().
			Foreground(colorWhite)

	styleDim = lipgloss.NewStyle().
			Foreground(colorMuted)

	styleSuccess = lipgloss.NewStyle().
			Foreground(colorSuccess)

	styleWarning = lipgloss.NewStyle().
			Foreground(colorAccent).
			Bold(true)

	styleError = lipgloss.NewStyle().
			Foreground(colorDanger).
			Bold(true)

	styleBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorMuted).
			Padding(0, 1)
)
