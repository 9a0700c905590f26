package tmux

import "strings"

// spinnerGlyphs are the braille frames agents put in the pane title while
// they are working.
const spinnerGlyphs = "⠿⠇⠋⠙⠸⠴⠦⠧⠖⠏⠹⠼⠷⠾⠽⠻⠐⠑⠒⠓"

// TitleShowsSpinner reports whether title contains a spinner frame.
func TitleShowsSpinner(title string) bool {
	return strings.ContainsAny(title, spinnerGlyphs)
}
