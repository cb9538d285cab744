package export

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingObserver struct {
	open int
}

func (o *countingObserver) RenderSessionOpened() { o.open++ }
func (o *countingObserver) RenderSessionClosed() { o.open-- }

func sampleDocument() Document {
	return Document{
		Title: "Exam report",
		Pages: []Page{
			{
				Letterhead: &Letterhead{Society: "Society", College: "College", Address: "Address"},
				Title:      "Practical Examination",
				Blocks: []Block{
					{Kind: BlockFields, Numbered: true, Fields: []Field{{Label: "Department", Value: "Computer Science"}}},
					{Kind: BlockTable, Table: &Table{
						Header: []string{"Sr. No.", "Name", "Amount"},
						Rows:   [][]string{{"1", "A very long name that certainly needs to wrap inside its cell", "Rs. 1,035"}},
						Footer: []string{"", "Total", "Rs. 1,035"},
						Widths: []float64{1, 4, 2},
					}},
					{Kind: BlockParagraph, Text: "one thousand and thirty five only"},
					{Kind: BlockForm, Fields: []Field{{Label: "Bank Name"}, {Label: "Amount", Value: "Rs. 1,035"}}},
				},
				Signatures: []string{"In Charge", "Vice Principal", "Principal"},
			},
			{Title: "Second page", Signatures: []string{"Staff"}},
		},
	}
}

func TestPDFSessionRender(t *testing.T) {
	observer := &countingObserver{}
	renderer := NewPDFRenderer(PDFOptions{}, observer)

	session, err := renderer.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, observer.open)

	data, err := session.Render(sampleDocument())
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(data[:4]))

	require.NoError(t, session.Close())
	require.NoError(t, session.Close())
	assert.Equal(t, 0, observer.open)

	_, err = session.Render(sampleDocument())
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestPDFSessionRejectsEmptyDocument(t *testing.T) {
	session, err := NewPDFRenderer(PDFOptions{}, nil).Acquire(context.Background())
	require.NoError(t, err)
	defer session.Close() //nolint:errcheck

	_, err = session.Render(Document{})
	assert.Error(t, err)
}

func TestAcquireHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewPDFRenderer(PDFOptions{}, nil).Acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
