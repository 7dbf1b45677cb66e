package driver

import (
	"os"
	"strconv"

	"golang.org/x/term"
)

const (
	defaultWidth  = 80
	defaultHeight = 24
)

// ttySize returns the terminal dimensions, falling back to the COLUMNS and
// LINES environment variables and finally to 80x24.
func ttySize() (int, int) {
	if w, h, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 && h > 0 {
		return w, h
	}
	width, height := defaultWidth, defaultHeight
	if v, err := strconv.Atoi(os.Getenv("COLUMNS")); err == nil && v > 0 {
		width = v
	}
	if v, err := strconv.Atoi(os.Getenv("LINES")); err == nil && v > 0 {
		height = v
	}
	return width, height
}

func isInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}
