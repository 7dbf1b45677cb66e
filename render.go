package termrun

import (
	"io"
	"strings"

	"pkt.systems/termrun/schema"
)

const clearScreen = "\x1b[H\x1b[2J"

// writeFrame flattens the view tree and writes a full frame: clear-screen,
// then one output line per flattened row.
func writeFrame(w io.Writer, view schema.View, width int) error {
	if width <= 0 {
		width = defaultWidth
	}
	lines := flatten(view, width)
	var out strings.Builder
	out.WriteString(clearScreen)
	for _, line := range lines {
		out.WriteString(line)
		out.WriteString("\r\n")
	}
	_, err := io.WriteString(w, out.String())
	return err
}

// flatten turns a view node into output lines. Text is one line, a box
// draws border glyphs around its padded children, a row joins child lines
// side by side, a column stacks them.
func flatten(view schema.View, width int) []string {
	switch view.Kind {
	case schema.ViewText:
		return []string{view.Text}
	case schema.ViewBox:
		return flattenBox(view, width)
	case schema.ViewRow:
		return []string{flattenRow(view, width)}
	case schema.ViewColumn:
		var lines []string
		for _, child := range view.Children {
			lines = append(lines, flatten(child, width)...)
		}
		return lines
	default:
		return nil
	}
}

func flattenBox(view schema.View, width int) []string {
	var inner []string
	innerWidth := width - 4
	if innerWidth < 1 {
		innerWidth = 1
	}
	for _, child := range view.Children {
		inner = append(inner, flatten(child, innerWidth)...)
	}
	content := 0
	for _, line := range inner {
		if n := len([]rune(line)); n > content {
			content = n
		}
	}
	if content > innerWidth {
		content = innerWidth
	}
	lines := make([]string, 0, len(inner)+2)
	lines = append(lines, "┌"+strings.Repeat("─", content+2)+"┐")
	for _, line := range inner {
		lines = append(lines, "│ "+pad(line, content)+" │")
	}
	lines = append(lines, "└"+strings.Repeat("─", content+2)+"┘")
	return lines
}

func flattenRow(view schema.View, width int) string {
	parts := make([]string, 0, len(view.Children))
	for _, child := range view.Children {
		sub := flatten(child, width)
		if len(sub) > 0 {
			parts = append(parts, sub[0])
		}
	}
	if !view.Justify || len(parts) < 2 {
		return strings.Join(parts, " ")
	}
	used := 0
	for _, part := range parts {
		used += len([]rune(part))
	}
	gaps := len(parts) - 1
	space := width - used
	if space < gaps {
		return strings.Join(parts, " ")
	}
	var out strings.Builder
	for i, part := range parts {
		out.WriteString(part)
		if i == gaps {
			break
		}
		gap := space / gaps
		if i < space%gaps {
			gap++
		}
		out.WriteString(strings.Repeat(" ", gap))
	}
	return out.String()
}

// pad right-pads or truncates line to exactly n runes.
func pad(line string, n int) string {
	runes := []rune(line)
	if len(runes) > n {
		return string(runes[:n])
	}
	return line + strings.Repeat(" ", n-len(runes))
}
