package ui

import (
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/asheshgoplani/agent-watch/internal/agents"
)

// Theme represents the current color scheme
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

var currentTheme Theme = ThemeDark

type palette struct {
	Bg, Surface, Border, Text, TextDim  lipgloss.Color
	Accent, Purple, Cyan, Green, Yellow lipgloss.Color
	Orange, Red, Comment                lipgloss.Color
}

// Tokyo Night
var darkColors = palette{
	Bg:      lipgloss.Color("#1a1b26"),
	Surface: lipgloss.Color("#24283b"),
	Border:  lipgloss.Color("#414868"),
	Text:    lipgloss.Color("#c0caf5"),
	TextDim: lipgloss.Color("#787fa0"),
	Accent:  lipgloss.Color("#7aa2f7"),
	Purple:  lipgloss.Color("#bb9af7"),
	Cyan:    lipgloss.Color("#7dcfff"),
	Green:   lipgloss.Color("#9ece6a"),
	Yellow:  lipgloss.Color("#e0af68"),
	Orange:  lipgloss.Color("#ff9e64"),
	Red:     lipgloss.Color("#f7768e"),
	Comment: lipgloss.Color("#787fa0"),
}

// Tokyo Night Light
var lightColors = palette{
	Bg:      lipgloss.Color("#d5d6db"),
	Surface: lipgloss.Color("#e9e9ec"),
	Border:  lipgloss.Color("#9699a3"),
	Text:    lipgloss.Color("#343b58"),
	TextDim: lipgloss.Color("#6a6d7c"),
	Accent:  lipgloss.Color("#34548a"),
	Purple:  lipgloss.Color("#7847bd"),
	Cyan:    lipgloss.Color("#166775"),
	Green:   lipgloss.Color("#485e30"),
	Yellow:  lipgloss.Color("#8f5e15"),
	Orange:  lipgloss.Color("#965027"),
	Red:     lipgloss.Color("#8c4351"),
	Comment: lipgloss.Color("#6a6d7c"),
}

// Active color variables (set by InitTheme)
var (
	ColorBg      lipgloss.Color
	ColorSurface lipgloss.Color
	ColorBorder  lipgloss.Color
	ColorText    lipgloss.Color
	ColorTextDim lipgloss.Color
	ColorAccent  lipgloss.Color
	ColorPurple  lipgloss.Color
	ColorCyan    lipgloss.Color
	ColorGreen   lipgloss.Color
	ColorYellow  lipgloss.Color
	ColorOrange  lipgloss.Color
	ColorRed     lipgloss.Color
	ColorComment lipgloss.Color
)

// themeMu protects global color/style variables during live theme switches.
var themeMu sync.RWMutex

// InitTheme sets the active color palette. Anything but "light" selects
// the dark palette.
func InitTheme(theme string) {
	themeMu.Lock()
	defer themeMu.Unlock()

	p := darkColors
	currentTheme = ThemeDark
	if theme == string(ThemeLight) {
		p = lightColors
		currentTheme = ThemeLight
	}
	ColorBg = p.Bg
	ColorSurface = p.Surface
	ColorBorder = p.Border
	ColorText = p.Text
	ColorTextDim = p.TextDim
	ColorAccent = p.Accent
	ColorPurple = p.Purple
	ColorCyan = p.Cyan
	ColorGreen = p.Green
	ColorYellow = p.Yellow
	ColorOrange = p.Orange
	ColorRed = p.Red
	ColorComment = p.Comment

	initStyles()
}

// GetCurrentTheme returns the active theme
func GetCurrentTheme() Theme {
	themeMu.RLock()
	defer themeMu.RUnlock()
	return currentTheme
}

func init() {
	InitTheme("dark")
}

// Base Styles
var (
	TitleStyle     lipgloss.Style
	PanelStyle     lipgloss.Style
	PanelTitle     lipgloss.Style
	HighlightStyle lipgloss.Style
	DimStyle       lipgloss.Style
	TextStyle      lipgloss.Style
	ErrorStyle     lipgloss.Style
	SuccessStyle   lipgloss.Style
	WarningStyle   lipgloss.Style
	InfoStyle      lipgloss.Style
)

// Status Indicator Styles
var (
	ProcessingStyle     lipgloss.Style
	ApprovalStyle       lipgloss.Style
	IdleStyle           lipgloss.Style
	UnknownStyle        lipgloss.Style
	ErrorIndicatorStyle lipgloss.Style
)

// Menu Bar Styles
var (
	MenuBarStyle       lipgloss.Style
	MenuKeyStyle       lipgloss.Style
	MenuDescStyle      lipgloss.Style
	MenuSeparatorStyle lipgloss.Style
)

// Agent list styles
var (
	AgentNameStyle     lipgloss.Style
	AgentNameSelStyle  lipgloss.Style
	AgentMetaStyle     lipgloss.Style
	CursorMarkerStyle  lipgloss.Style
	SelectedMarkStyle  lipgloss.Style
	RemoteBadgeStyle   lipgloss.Style
	ContextLowStyle    lipgloss.Style
	PreviewMetaStyle   lipgloss.Style
	FlashStyle         lipgloss.Style
	LogoBorderStyle    lipgloss.Style
	ConnectedStyle     lipgloss.Style
	DisconnectedStyle  lipgloss.Style
	InputBoxStyle      lipgloss.Style
	InputBoxFocusStyle lipgloss.Style
)

// ToolStyleCache provides pre-allocated styles for each tool.
var ToolStyleCache map[agents.Tool]lipgloss.Style

// DefaultToolStyle is used when tool is not in cache
var DefaultToolStyle lipgloss.Style

func initStyles() {
	TitleStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorAccent).
		Background(ColorSurface).
		Padding(0, 1)

	PanelStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder)

	PanelTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorCyan)

	HighlightStyle = lipgloss.NewStyle().
		Foreground(ColorBg).
		Background(ColorAccent).
		Bold(true)

	DimStyle = lipgloss.NewStyle().Foreground(ColorComment)
	TextStyle = lipgloss.NewStyle().Foreground(ColorText)

	ErrorStyle = lipgloss.NewStyle().
		Foreground(ColorRed).
		Bold(true)

	SuccessStyle = lipgloss.NewStyle().
		Foreground(ColorGreen).
		Bold(true)

	WarningStyle = lipgloss.NewStyle().
		Foreground(ColorYellow).
		Bold(true)

	InfoStyle = lipgloss.NewStyle().Foreground(ColorCyan)

	ProcessingStyle = lipgloss.NewStyle().Foreground(ColorGreen).Bold(true)
	ApprovalStyle = lipgloss.NewStyle().Foreground(ColorYellow).Bold(true)
	IdleStyle = lipgloss.NewStyle().Foreground(ColorTextDim)
	UnknownStyle = lipgloss.NewStyle().Foreground(ColorComment)
	ErrorIndicatorStyle = lipgloss.NewStyle().Foreground(ColorRed).Bold(true)

	MenuBarStyle = lipgloss.NewStyle().
		Background(ColorSurface).
		Foreground(ColorText).
		Padding(0, 1)
	MenuKeyStyle = lipgloss.NewStyle().
		Foreground(ColorBg).
		Background(ColorAccent).
		Bold(true).
		Padding(0, 1)
	MenuDescStyle = lipgloss.NewStyle().Foreground(ColorText)
	MenuSeparatorStyle = lipgloss.NewStyle().Foreground(ColorBorder)

	AgentNameStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorText)
	AgentNameSelStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorBg).Background(ColorAccent)
	AgentMetaStyle = lipgloss.NewStyle().Foreground(ColorTextDim)
	CursorMarkerStyle = lipgloss.NewStyle().Foreground(ColorAccent).Bold(true)
	SelectedMarkStyle = lipgloss.NewStyle().Foreground(ColorPurple).Bold(true)
	RemoteBadgeStyle = lipgloss.NewStyle().Foreground(ColorPurple)
	ContextLowStyle = lipgloss.NewStyle().Foreground(ColorOrange).Bold(true)
	PreviewMetaStyle = lipgloss.NewStyle().Foreground(ColorComment).Italic(true)
	FlashStyle = lipgloss.NewStyle().Foreground(ColorGreen)
	LogoBorderStyle = lipgloss.NewStyle().Foreground(ColorBorder)
	ConnectedStyle = lipgloss.NewStyle().Foreground(ColorGreen)
	DisconnectedStyle = lipgloss.NewStyle().Foreground(ColorRed)

	InputBoxStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder)
	InputBoxFocusStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorAccent)

	ToolStyleCache = map[agents.Tool]lipgloss.Style{
		agents.ToolClaude:   lipgloss.NewStyle().Foreground(ToolColor(agents.ToolClaude)),
		agents.ToolCodex:    lipgloss.NewStyle().Foreground(ToolColor(agents.ToolCodex)),
		agents.ToolGemini:   lipgloss.NewStyle().Foreground(ToolColor(agents.ToolGemini)),
		agents.ToolOpenCode: lipgloss.NewStyle().Foreground(ToolColor(agents.ToolOpenCode)),
	}
	DefaultToolStyle = lipgloss.NewStyle().Foreground(ColorText)
}

// MenuKey renders a key hint for the footer.
func MenuKey(key, description string) string {
	return MenuKeyStyle.Render(key) + " " + MenuDescStyle.Render(description)
}

// StatusStyle returns the style used for a status indicator and label.
func StatusStyle(kind agents.StatusKind) lipgloss.Style {
	switch kind {
	case agents.StatusProcessing:
		return ProcessingStyle
	case agents.StatusAwaitingApproval:
		return ApprovalStyle
	case agents.StatusIdle:
		return IdleStyle
	case agents.StatusError:
		return ErrorIndicatorStyle
	default:
		return UnknownStyle
	}
}

// ToolColor returns the brand color for a given tool
// Claude=orange (Anthropic), Gemini=purple (Google AI), Codex=cyan
func ToolColor(tool agents.Tool) lipgloss.Color {
	switch tool {
	case agents.ToolClaude:
		return ColorOrange
	case agents.ToolGemini:
		return ColorPurple
	case agents.ToolCodex:
		return ColorCyan
	case agents.ToolOpenCode:
		return ColorAccent
	default:
		return ColorTextDim
	}
}

// GetToolStyle returns cached style for tool or default.
// Read-locked to protect against concurrent map access during live theme switches.
func GetToolStyle(tool agents.Tool) lipgloss.Style {
	themeMu.RLock()
	defer themeMu.RUnlock()
	if style, ok := ToolStyleCache[tool]; ok {
		return style
	}
	return DefaultToolStyle
}

// getLogoIndicators returns 3 indicators based on status counts.
// Priority: approval > processing > idle
func getLogoIndicators(processing, waiting int) []string {
	indicators := make([]string, 0, 3)
	for i := 0; i < waiting && len(indicators) < 3; i++ {
		indicators = append(indicators, "⚠")
	}
	for i := 0; i < processing && len(indicators) < 3; i++ {
		indicators = append(indicators, "◐")
	}
	for len(indicators) < 3 {
		indicators = append(indicators, "○")
	}
	return indicators
}

func renderLogoIndicator(indicator string) string {
	switch indicator {
	case "⚠":
		return ApprovalStyle.Render(indicator)
	case "◐":
		return ProcessingStyle.Render(indicator)
	default:
		return IdleStyle.Render(indicator)
	}
}

// RenderLogoCompact renders the inline header logo, e.g. ⟨ ⚠ │ ◐ │ ○ ⟩.
func RenderLogoCompact(processing, waiting int) string {
	ind := getLogoIndicators(processing, waiting)
	bracket := lipgloss.NewStyle().Foreground(ColorAccent).Bold(true)
	return bracket.Render("⟨") +
		" " + renderLogoIndicator(ind[0]) +
		LogoBorderStyle.Render(" │ ") +
		renderLogoIndicator(ind[1]) +
		LogoBorderStyle.Render(" │ ") +
		renderLogoIndicator(ind[2]) + " " +
		bracket.Render("⟩")
}
