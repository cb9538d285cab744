package export

// Document is a layout-neutral description of a printable report. Each page
// starts on a fresh sheet.
type Document struct {
	Title string
	Pages []Page
}

// Letterhead is printed at the top of a page.
type Letterhead struct {
	Society  string
	College  string
	Address  string
	LogoPath string
}

// Page groups the blocks printed between the letterhead and the signatures.
type Page struct {
	Letterhead *Letterhead
	Title      string
	Blocks     []Block
	Signatures []string
}

// BlockKind selects how a block is drawn.
type BlockKind int

const (
	// BlockFields prints "label: value" lines, optionally numbered.
	BlockFields BlockKind = iota
	// BlockTable prints a bordered grid.
	BlockTable
	// BlockParagraph prints wrapped text.
	BlockParagraph
	// BlockForm prints labels followed by blank lines to fill in by hand.
	BlockForm
)

// Block is one section of a page.
type Block struct {
	Kind     BlockKind
	Heading  string
	Numbered bool
	Fields   []Field
	Table    *Table
	Text     string
}

// Field is a label with an optional value.
type Field struct {
	Label string
	Value string
}

// Table is a grid with an optional bold footer row. Widths are relative weights;
// nil means equal columns.
type Table struct {
	Header []string
	Rows   [][]string
	Footer []string
	Widths []float64
}

// Columns returns the widest row length in the table.
func (t *Table) Columns() int {
	n := len(t.Header)
	for _, row := range t.Rows {
		if len(row) > n {
			n = len(row)
		}
	}
	if len(t.Footer) > n {
		n = len(t.Footer)
	}
	return n
}
