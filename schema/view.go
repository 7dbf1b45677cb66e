package schema

// ViewKind selects a view node variant.
type ViewKind string

const (
	// ViewText emits a single line of text.
	ViewText ViewKind = "text"
	// ViewBox draws border glyphs around its stacked children.
	ViewBox ViewKind = "box"
	// ViewRow lays children out side by side on one line.
	ViewRow ViewKind = "row"
	// ViewColumn stacks children vertically.
	ViewColumn ViewKind = "column"
)

// View is a declarative description of what to render. The lifecycle manager
// flattens the tree into output lines; layout diffing is out of scope here.
type View struct {
	Kind     ViewKind
	Text     string
	Children []View
	// Justify spreads row children across the full container width instead
	// of joining them with single spaces.
	Justify bool
}

// Text constructs a text node.
func Text(s string) View {
	return View{Kind: ViewText, Text: s}
}

// Box constructs a bordered container.
func Box(children ...View) View {
	return View{Kind: ViewBox, Children: children}
}

// Row constructs a horizontal container.
func Row(children ...View) View {
	return View{Kind: ViewRow, Children: children}
}

// JustifiedRow constructs a horizontal container with justified gaps.
func JustifiedRow(children ...View) View {
	return View{Kind: ViewRow, Children: children, Justify: true}
}

// Column constructs a vertical container.
func Column(children ...View) View {
	return View{Kind: ViewColumn, Children: children}
}
