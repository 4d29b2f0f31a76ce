package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"regexp"
	"strconv"

	"github.com/rs/zerolog"
)

// pdfMagic must appear within the first headerWindow bytes of a PDF file.
var pdfMagic = []byte("%PDF-")

const headerWindow = 1024

// trailerWindow is how far from the end the final startxref is looked for.
const trailerWindow = 1024

var (
	startXrefPattern = regexp.MustCompile(`startxref\s+(\d+)`)
	xrefStartPattern = regexp.MustCompile(`^\s*(xref|\d+\s+\d+\s+obj)`)
)

// Page is one rendered page. Number is 1-based; Width and Height are in points.
type Page struct {
	Number int
	Image  image.Image
	Width  float64
	Height float64
	Blocks []TextBlock
}

// Texts returns the text of every block in reading order.
func (p Page) Texts() []string {
	texts := make([]string, len(p.Blocks))
	for i, b := range p.Blocks {
		texts[i] = b.Text
	}
	return texts
}

// PageFunc is called once per page in document order. Returning an error
// stops the walk.
type PageFunc func(ctx context.Context, page Page) error

// Renderer turns PDF bytes into rasterized pages with their text blocks.
type Renderer struct {
	raster Rasterizer
	text   TextSource
	log    zerolog.Logger
}

// NewRenderer creates a Renderer backed by MuPDF for images and the PDF
// content streams for text.
func NewRenderer(log zerolog.Logger) *Renderer {
	return NewRendererWith(FitzRasterizer{DPI: DefaultDPI}, LayoutTextSource{}, log)
}

// NewRendererWith creates a Renderer with explicit backends.
func NewRendererWith(raster Rasterizer, text TextSource, log zerolog.Logger) *Renderer {
	return &Renderer{raster: raster, text: text, log: log}
}

// LooksLikePDF reports whether data carries a PDF header.
func LooksLikePDF(data []byte) bool {
	head := data
	if len(head) > headerWindow {
		head = head[:headerWindow]
	}
	return bytes.Contains(head, pdfMagic)
}

// damagedXref reports whether the final startxref offset does not point at a
// cross-reference table or stream. Such files only open after repair.
func damagedXref(data []byte) bool {
	tail := data[max(0, len(data)-trailerWindow):]
	matches := startXrefPattern.FindAllSubmatch(tail, -1)
	if len(matches) == 0 {
		return true
	}
	offset, err := strconv.Atoi(string(matches[len(matches)-1][1]))
	if err != nil || offset >= len(data) {
		return true
	}
	return !xrefStartPattern.Match(data[offset:])
}

// Walk renders the document page by page and hands each page to fn before
// rendering the next one. Failure to open the document for rasterization is
// reported as a *DocumentParseError; errors from fn and context cancellation
// are returned as they are.
func (r *Renderer) Walk(ctx context.Context, data []byte, fn PageFunc) error {
	if len(data) == 0 {
		return &DocumentParseError{Err: ErrEmptyDocument}
	}
	if !LooksLikePDF(data) {
		return &DocumentParseError{Err: ErrNotPDF}
	}

	if damagedXref(data) {
		r.log.Warn().Bool("repaired", true).Msg("PDF cross-reference table is damaged, rebuilding it from the document objects")
	}

	raster, err := r.raster.Open(data)
	if err != nil {
		return &DocumentParseError{Err: err}
	}
	defer func() {
		if cerr := raster.Close(); cerr != nil {
			r.log.Warn().Err(cerr).Msg("Failed to close rasterized document")
		}
	}()

	// The rasterizer has already accepted the document, so an unreadable
	// text layer falls back to the rasterizer's own text.
	text, err := r.text.Open(data)
	if err != nil {
		r.log.Warn().Err(err).Msg("Text layer unreadable, using rasterizer text")
		text = rasterText{doc: raster}
	}

	pages := raster.NumPage()
	if n := text.NumPage(); n != pages {
		r.log.Warn().Int("raster_pages", pages).Int("text_pages", n).Msg("Page count mismatch between raster and text layers")
	}

	for i := 0; i < pages; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		page, err := r.renderPage(raster, text, i)
		if err != nil {
			return err
		}
		if err := fn(ctx, page); err != nil {
			return err
		}
	}
	return nil
}

// Render collects every page of the document.
func (r *Renderer) Render(ctx context.Context, data []byte) ([]Page, error) {
	var pages []Page
	err := r.Walk(ctx, data, func(_ context.Context, p Page) error {
		pages = append(pages, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pages, nil
}

func (r *Renderer) renderPage(raster RasterDocument, text TextDocument, i int) (Page, error) {
	bounds, err := raster.Bound(i)
	if err != nil {
		return Page{}, &DocumentParseError{Err: err}
	}
	img, err := raster.Image(i)
	if err != nil {
		return Page{}, &DocumentParseError{Err: err}
	}

	page := Page{
		Number: i + 1,
		Image:  img,
		Width:  float64(bounds.Dx()),
		Height: float64(bounds.Dy()),
	}

	if i >= text.NumPage() {
		return page, nil
	}
	blocks, err := text.Blocks(i, page.Height)
	if err != nil {
		r.log.Warn().Err(err).Int("page", page.Number).Msg("Text extraction failed, continuing with no text")
		return page, nil
	}
	page.Blocks = blocks
	return page, nil
}

func (p Page) String() string {
	return fmt.Sprintf("page %d (%d blocks)", p.Number, len(p.Blocks))
}
