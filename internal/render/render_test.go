package render

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRaster struct {
	pages   int
	openErr error
	text    map[int]string
	closed  bool
}

func (f *fakeRaster) Open(data []byte) (RasterDocument, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	return f, nil
}

func (f *fakeRaster) NumPage() int { return f.pages }

func (f *fakeRaster) Image(page int) (image.Image, error) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 20))
	img.Set(0, 0, color.RGBA{R: uint8(page), A: 255})
	return img, nil
}

func (f *fakeRaster) Bound(page int) (image.Rectangle, error) {
	return image.Rect(0, 0, 612, 792), nil
}

func (f *fakeRaster) Text(page int) (string, error) {
	return f.text[page], nil
}

func (f *fakeRaster) Close() error {
	f.closed = true
	return nil
}

type fakeText struct {
	pages   [][]TextBlock
	errs    map[int]error
	openErr error
	opened  bool
}

func (f *fakeText) Open(data []byte) (TextDocument, error) {
	f.opened = true
	if f.openErr != nil {
		return nil, f.openErr
	}
	return f, nil
}

func (f *fakeText) NumPage() int { return len(f.pages) }

func (f *fakeText) Blocks(page int, pageHeight float64) ([]TextBlock, error) {
	if err := f.errs[page]; err != nil {
		return nil, err
	}
	return f.pages[page], nil
}

var minimalPDF = []byte("%PDF-1.4\n%fake body\n")

func TestRenderer_RejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{name: "empty", data: nil, wantErr: ErrEmptyDocument},
		{name: "plain text", data: []byte("hello, not a pdf"), wantErr: ErrNotPDF},
		{name: "png header", data: []byte("\x89PNG\r\n\x1a\n...."), wantErr: ErrNotPDF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raster := &fakeRaster{pages: 1}
			r := NewRendererWith(raster, &fakeText{}, zerolog.Nop())

			_, err := r.Render(context.Background(), tt.data)

			require.Error(t, err)
			assert.True(t, IsDocumentParseError(err))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRenderer_OpenFailureIsParseError(t *testing.T) {
	cause := errors.New("broken xref table")
	r := NewRendererWith(&fakeRaster{openErr: cause}, &fakeText{}, zerolog.Nop())

	_, err := r.Render(context.Background(), minimalPDF)

	var parseErr *DocumentParseError
	require.ErrorAs(t, err, &parseErr)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "parse pdf document")
}

func TestRenderer_WalksPagesInOrder(t *testing.T) {
	raster := &fakeRaster{pages: 2}
	text := &fakeText{pages: [][]TextBlock{
		{{Text: "John Smith"}, {Text: "Period 01/01/2024 - 01/31/2024"}},
		{{Text: "15 March, 2024"}},
	}}
	r := NewRendererWith(raster, text, zerolog.Nop())

	pages, err := r.Render(context.Background(), minimalPDF)

	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, 1, pages[0].Number)
	assert.Equal(t, 2, pages[1].Number)
	assert.Equal(t, []string{"John Smith", "Period 01/01/2024 - 01/31/2024"}, pages[0].Texts())
	assert.Equal(t, 612.0, pages[0].Width)
	assert.Equal(t, 792.0, pages[0].Height)
	assert.NotNil(t, pages[1].Image)
	assert.True(t, raster.closed)
}

func TestRenderer_TextFailureKeepsPage(t *testing.T) {
	text := &fakeText{
		pages: [][]TextBlock{{{Text: "a"}}, {{Text: "b"}}},
		errs:  map[int]error{0: errors.New("bad content stream")},
	}
	r := NewRendererWith(&fakeRaster{pages: 2}, text, zerolog.Nop())

	pages, err := r.Render(context.Background(), minimalPDF)

	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Empty(t, pages[0].Blocks)
	assert.Equal(t, []string{"b"}, pages[1].Texts())
}

func TestRenderer_TextLayerFailureUsesRasterText(t *testing.T) {
	var logs bytes.Buffer
	raster := &fakeRaster{pages: 2, text: map[int]string{
		0: "John Smith\nPeriod 01/01/2024 - 01/31/2024\n\n  \n",
		1: "15 March, 2024\r\nGrocery Store\n",
	}}
	text := &fakeText{openErr: errors.New("malformed PDF: cross-reference table not found")}
	r := NewRendererWith(raster, text, zerolog.New(&logs))

	pages, err := r.Render(context.Background(), minimalPDF)

	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, []string{"John Smith", "Period 01/01/2024 - 01/31/2024"}, pages[0].Texts())
	assert.Equal(t, []string{"15 March, 2024", "Grocery Store"}, pages[1].Texts())
	assert.Equal(t, Box{X0: 0, Y0: 0, X1: 612, Y1: 396}, pages[0].Blocks[0].Box)
	assert.Contains(t, logs.String(), "Text layer unreadable")
}

func TestPlainBlocks_Empty(t *testing.T) {
	assert.Nil(t, plainBlocks(" \n\n\t", 612, 792))
}

func TestRenderer_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := NewRendererWith(&fakeRaster{pages: 3}, &fakeText{pages: make([][]TextBlock, 3)}, zerolog.Nop())

	visited := 0
	err := r.Walk(ctx, minimalPDF, func(ctx context.Context, p Page) error {
		visited++
		cancel()
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, visited)
}

func TestRenderer_CallbackErrorStopsWalk(t *testing.T) {
	stop := errors.New("stop")
	r := NewRendererWith(&fakeRaster{pages: 3}, &fakeText{pages: make([][]TextBlock, 3)}, zerolog.Nop())

	err := r.Walk(context.Background(), minimalPDF, func(ctx context.Context, p Page) error {
		return stop
	})

	assert.ErrorIs(t, err, stop)
	assert.False(t, IsDocumentParseError(err))
}

func TestLooksLikePDF(t *testing.T) {
	assert.True(t, LooksLikePDF([]byte("%PDF-1.7")))
	assert.True(t, LooksLikePDF(append([]byte("\xef\xbb\xbf junk "), minimalPDF...)))
	assert.False(t, LooksLikePDF([]byte("PK\x03\x04")))
	assert.False(t, LooksLikePDF(nil))
}

func TestLayoutTextSource_RejectsGarbage(t *testing.T) {
	_, err := LayoutTextSource{}.Open([]byte("%PDF-1.4 but nothing else"))
	assert.Error(t, err)
}

func glyph(s string, x, y float64) pdf.Text {
	return pdf.Text{S: s, X: x, Y: y, W: 5 * float64(len(s)), FontSize: 10}
}

func TestGroupLines(t *testing.T) {
	glyphs := []pdf.Text{
		glyph("Store", 40, 700),
		glyph("Grocery", 0, 700),
		glyph("15", 0, 720),
		glyph("March,", 15, 720.5),
		glyph("2024", 50, 720),
		glyph("   ", 0, 680),
	}

	blocks := groupLines(glyphs, 792)

	require.Len(t, blocks, 2)
	assert.Equal(t, "15 March, 2024", blocks[0].Text)
	assert.Equal(t, "Grocery Store", blocks[1].Text)

	box := blocks[0].Box
	assert.Equal(t, 0.0, box.X0)
	assert.Equal(t, 70.0, box.X1)
	assert.InDelta(t, 792-730.5, box.Y0, 0.001)
	assert.InDelta(t, 792-720.0, box.Y1, 0.001)
}

func TestGroupLines_JoinsAdjacentGlyphs(t *testing.T) {
	glyphs := []pdf.Text{
		{S: "U", X: 0, Y: 100, W: 6, FontSize: 10},
		{S: "S", X: 6, Y: 100, W: 6, FontSize: 10},
		{S: "D", X: 12, Y: 100, W: 6, FontSize: 10},
	}

	blocks := groupLines(glyphs, 200)

	require.Len(t, blocks, 1)
	assert.Equal(t, "USD", blocks[0].Text)
}

func TestGroupLines_Empty(t *testing.T) {
	assert.Nil(t, groupLines(nil, 792))
}

func TestBoxNormalize(t *testing.T) {
	tests := []struct {
		name string
		box  Box
		want [4]int
	}{
		{name: "full page", box: Box{0, 0, 612, 792}, want: [4]int{0, 0, 1000, 1000}},
		{name: "half", box: Box{306, 396, 612, 792}, want: [4]int{500, 500, 1000, 1000}},
		{name: "clamped", box: Box{-10, -5, 700, 900}, want: [4]int{0, 0, 1000, 1000}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.box.Normalize(612, 792))
		})
	}

	assert.Equal(t, [4]int{}, Box{1, 1, 2, 2}.Normalize(0, 0))
}

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return data
}

func TestDamagedXref(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want bool
	}{
		{name: "intact", data: readFixture(t, "statement.pdf"), want: false},
		{name: "stale offset", data: readFixture(t, "stale_xref.pdf"), want: true},
		{name: "no startxref", data: minimalPDF, want: true},
		{name: "offset past end", data: []byte("%PDF-1.4\nstartxref\n99999\n%%EOF\n"), want: true},
		{name: "xref stream", data: []byte("%PDF-1.5\n12 0 obj\n<< /Type /XRef >>\nstartxref\n9\n%%EOF\n"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, damagedXref(tt.data))
		})
	}
}

var statementLines = []string{
	"John Smith",
	"Period 01/01/2024 - 01/31/2024",
	"15 March, 2024",
	"Grocery Store",
	"-42.50 USD",
	"Completed",
}

func TestRenderer_RealPDF(t *testing.T) {
	var logs bytes.Buffer
	r := NewRenderer(zerolog.New(&logs))

	pages, err := r.Render(context.Background(), readFixture(t, "statement.pdf"))

	require.NoError(t, err)
	require.Len(t, pages, 1)
	page := pages[0]
	assert.Equal(t, 1, page.Number)
	assert.Equal(t, 612.0, page.Width)
	assert.Equal(t, 792.0, page.Height)
	require.NotNil(t, page.Image)
	assert.Equal(t, 612, page.Image.Bounds().Dx())
	assert.Equal(t, 792, page.Image.Bounds().Dy())

	assert.Equal(t, statementLines, page.Texts())
	for i, b := range page.Blocks {
		assert.Less(t, b.Box.Y0, b.Box.Y1, "block %d", i)
		if i > 0 {
			assert.Less(t, page.Blocks[i-1].Box.Y0, b.Box.Y0, "block %d", i)
		}
	}
	assert.Empty(t, logs.String())
}

func TestRenderer_StaleXrefStillRenders(t *testing.T) {
	data := readFixture(t, "stale_xref.pdf")
	_, err := LayoutTextSource{}.Open(data)
	require.Error(t, err)

	var logs bytes.Buffer
	pages, err := NewRenderer(zerolog.New(&logs)).Render(context.Background(), data)

	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, statementLines, pages[0].Texts())
	assert.Contains(t, logs.String(), `"repaired":true`)
	assert.Contains(t, logs.String(), "Text layer unreadable")
}
