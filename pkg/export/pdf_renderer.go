package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/jung-kurt/gofpdf"
)

// ErrSessionClosed is returned when a released session is reused.
var ErrSessionClosed = errors.New("render session closed")

// PDFOptions tunes page geometry and typography.
type PDFOptions struct {
	PageSize   string
	MarginMM   float64
	FontFamily string
}

// SessionObserver is notified as sessions open and close.
type SessionObserver interface {
	RenderSessionOpened()
	RenderSessionClosed()
}

// Session renders documents until it is closed.
type Session interface {
	Render(doc Document) ([]byte, error)
	Close() error
}

// Renderer hands out sessions scoped to one request.
type Renderer interface {
	Acquire(ctx context.Context) (Session, error)
}

// PDFRenderer hands out single-use render sessions.
type PDFRenderer struct {
	opts     PDFOptions
	observer SessionObserver
}

// NewPDFRenderer constructs a renderer; observer may be nil.
func NewPDFRenderer(opts PDFOptions, observer SessionObserver) *PDFRenderer {
	if opts.PageSize == "" {
		opts.PageSize = "A4"
	}
	if opts.MarginMM <= 0 {
		opts.MarginMM = 10
	}
	if opts.FontFamily == "" {
		opts.FontFamily = "Times"
	}
	return &PDFRenderer{opts: opts, observer: observer}
}

// Acquire opens a session. Callers must Close it on every path.
func (r *PDFRenderer) Acquire(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.observer != nil {
		r.observer.RenderSessionOpened()
	}
	return &PDFSession{opts: r.opts, observer: r.observer}, nil
}

// PDFSession renders documents until closed.
type PDFSession struct {
	opts     PDFOptions
	observer SessionObserver

	mu     sync.Mutex
	closed bool
}

// Close releases the session. It is safe to call more than once.
func (s *PDFSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.observer != nil {
		s.observer.RenderSessionClosed()
	}
	return nil
}

// Render draws doc and returns the complete PDF bytes. Nothing is returned on failure.
func (s *PDFSession) Render(doc Document) ([]byte, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, ErrSessionClosed
	}
	if len(doc.Pages) == 0 {
		return nil, fmt.Errorf("document has no pages")
	}

	pdf := gofpdf.New("P", "mm", s.opts.PageSize, "")
	m := s.opts.MarginMM
	pdf.SetMargins(m, m, m)
	pdf.SetAutoPageBreak(true, m)
	if doc.Title != "" {
		pdf.SetTitle(doc.Title, true)
	}

	w := &pageWriter{pdf: pdf, font: s.opts.FontFamily, tr: pdf.UnicodeTranslatorFromDescriptor("")}
	for _, page := range doc.Pages {
		w.page(page)
	}

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

type pageWriter struct {
	pdf  *gofpdf.Fpdf
	font string
	tr   func(string) string
}

const lineHeight = 6.0

func (w *pageWriter) contentWidth() float64 {
	pageW, _ := w.pdf.GetPageSize()
	left, _, right, _ := w.pdf.GetMargins()
	return pageW - left - right
}

func (w *pageWriter) page(p Page) {
	w.pdf.AddPage()
	if p.Letterhead != nil {
		w.letterhead(*p.Letterhead)
	}
	if p.Title != "" {
		w.pdf.SetFont(w.font, "BU", 13)
		w.pdf.CellFormat(0, 8, w.tr(p.Title), "", 1, "C", false, 0, "")
		w.pdf.Ln(3)
	}
	for _, b := range p.Blocks {
		w.block(b)
	}
	if len(p.Signatures) > 0 {
		w.signatures(p.Signatures)
	}
}

func (w *pageWriter) letterhead(h Letterhead) {
	left, top, _, _ := w.pdf.GetMargins()
	if h.LogoPath != "" {
		if _, err := os.Stat(h.LogoPath); err == nil {
			w.pdf.ImageOptions(h.LogoPath, left, top, 20, 0, false, gofpdf.ImageOptions{ReadDpi: true}, 0, "")
		}
	}
	w.pdf.SetFont(w.font, "", 10)
	w.pdf.CellFormat(0, 5, w.tr(h.Society), "", 1, "C", false, 0, "")
	w.pdf.SetFont(w.font, "B", 14)
	w.pdf.MultiCell(0, 7, w.tr(h.College), "", "C", false)
	w.pdf.SetFont(w.font, "", 10)
	w.pdf.CellFormat(0, 5, w.tr(h.Address), "", 1, "C", false, 0, "")
	y := w.pdf.GetY() + 2
	if y < top+22 && h.LogoPath != "" {
		y = top + 22
	}
	w.pdf.Line(left, y, left+w.contentWidth(), y)
	w.pdf.SetY(y + 4)
}

func (w *pageWriter) block(b Block) {
	if b.Heading != "" {
		w.pdf.SetFont(w.font, "B", 11)
		w.pdf.CellFormat(0, lineHeight+1, w.tr(b.Heading), "", 1, "L", false, 0, "")
	}
	switch b.Kind {
	case BlockFields:
		w.fields(b.Fields, b.Numbered)
	case BlockTable:
		if b.Table != nil {
			w.table(*b.Table)
		}
	case BlockParagraph:
		w.pdf.SetFont(w.font, "", 11)
		w.pdf.MultiCell(0, lineHeight, w.tr(b.Text), "", "L", false)
	case BlockForm:
		w.form(b.Fields)
	}
	w.pdf.Ln(4)
}

func (w *pageWriter) fields(fields []Field, numbered bool) {
	for i, f := range fields {
		label := f.Label
		if numbered {
			label = fmt.Sprintf("%d) %s", i+1, label)
		}
		w.pdf.SetFont(w.font, "B", 11)
		labelW := w.pdf.GetStringWidth(w.tr(label+": ")) + 1
		w.pdf.CellFormat(labelW, lineHeight, w.tr(label+": "), "", 0, "L", false, 0, "")
		w.pdf.SetFont(w.font, "", 11)
		w.pdf.MultiCell(0, lineHeight, w.tr(f.Value), "", "L", false)
	}
}

func (w *pageWriter) form(fields []Field) {
	left, _, _, _ := w.pdf.GetMargins()
	width := w.contentWidth()
	labelW := width * 0.4
	w.pdf.SetFont(w.font, "", 11)
	for _, f := range fields {
		w.pdf.CellFormat(labelW, lineHeight+4, w.tr(f.Label), "", 0, "L", false, 0, "")
		if f.Value != "" {
			w.pdf.CellFormat(width-labelW, lineHeight+4, w.tr(f.Value), "", 1, "L", false, 0, "")
			continue
		}
		y := w.pdf.GetY() + lineHeight + 2
		w.pdf.Line(left+labelW, y, left+width, y)
		w.pdf.Ln(lineHeight + 4)
	}
}

func (w *pageWriter) table(t Table) {
	cols := t.Columns()
	if cols == 0 {
		return
	}
	widths := w.columnWidths(t.Widths, cols)
	if len(t.Header) > 0 {
		w.pdf.SetFont(w.font, "B", 10)
		w.pdf.SetFillColor(235, 235, 235)
		w.row(t.Header, widths, true)
	}
	w.pdf.SetFont(w.font, "", 10)
	for _, r := range t.Rows {
		w.row(r, widths, false)
	}
	if len(t.Footer) > 0 {
		w.pdf.SetFont(w.font, "B", 10)
		w.row(t.Footer, widths, false)
	}
}

func (w *pageWriter) columnWidths(weights []float64, cols int) []float64 {
	total := 0.0
	for i := 0; i < cols && i < len(weights); i++ {
		total += weights[i]
	}
	widths := make([]float64, cols)
	content := w.contentWidth()
	for i := range widths {
		if len(weights) == cols && total > 0 {
			widths[i] = content * weights[i] / total
			continue
		}
		widths[i] = content / float64(cols)
	}
	return widths
}

// row draws a table row whose height fits the tallest wrapped cell.
func (w *pageWriter) row(cells []string, widths []float64, fill bool) {
	lines := 1
	for i, width := range widths {
		n := len(w.pdf.SplitLines([]byte(w.tr(cellAt(cells, i))), width-2))
		if n > lines {
			lines = n
		}
	}
	height := float64(lines) * lineHeight

	_, pageH := w.pdf.GetPageSize()
	_, _, _, bottom := w.pdf.GetMargins()
	if w.pdf.GetY()+height > pageH-bottom {
		w.pdf.AddPage()
	}

	x, y := w.pdf.GetXY()
	for i, width := range widths {
		style := "D"
		if fill {
			style = "FD"
		}
		w.pdf.Rect(x, y, width, height, style)
		w.pdf.SetXY(x+1, y)
		w.pdf.MultiCell(width-2, lineHeight, w.tr(cellAt(cells, i)), "", "C", false)
		x += width
	}
	left, _, _, _ := w.pdf.GetMargins()
	w.pdf.SetXY(left, y+height)
}

func (w *pageWriter) signatures(labels []string) {
	w.pdf.Ln(18)
	width := w.contentWidth() / float64(len(labels))
	w.pdf.SetFont(w.font, "B", 11)
	for i, label := range labels {
		align := "C"
		switch {
		case len(labels) > 1 && i == 0:
			align = "L"
		case len(labels) > 1 && i == len(labels)-1:
			align = "R"
		}
		w.pdf.CellFormat(width, lineHeight, w.tr(strings.TrimSpace(label)), "", 0, align, false, 0, "")
	}
	w.pdf.Ln(lineHeight)
}

func cellAt(cells []string, i int) string {
	if i < len(cells) {
		return cells[i]
	}
	return ""
}
