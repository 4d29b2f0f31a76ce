package render

import (
	"fmt"
	"image"

	"github.com/gen2brain/go-fitz"
)

// DefaultDPI matches the native PDF user-space resolution (1 point per pixel).
const DefaultDPI = 72.0

// Rasterizer opens documents for page rasterization.
type Rasterizer interface {
	Open(data []byte) (RasterDocument, error)
}

// RasterDocument is an opened document that can rasterize its pages.
// Page numbers are zero-based.
type RasterDocument interface {
	NumPage() int
	Image(page int) (image.Image, error)
	Bound(page int) (image.Rectangle, error)
	Text(page int) (string, error)
	Close() error
}

// FitzRasterizer renders pages with MuPDF.
type FitzRasterizer struct {
	DPI float64
}

// Open loads the document from memory.
func (f FitzRasterizer) Open(data []byte) (RasterDocument, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	dpi := f.DPI
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	return &fitzDocument{doc: doc, dpi: dpi}, nil
}

type fitzDocument struct {
	doc *fitz.Document
	dpi float64
}

func (d *fitzDocument) NumPage() int {
	return d.doc.NumPage()
}

func (d *fitzDocument) Image(page int) (image.Image, error) {
	img, err := d.doc.ImageDPI(page, d.dpi)
	if err != nil {
		return nil, fmt.Errorf("rasterize page %d: %w", page+1, err)
	}
	return img, nil
}

// Bound returns the page rectangle in points.
func (d *fitzDocument) Bound(page int) (image.Rectangle, error) {
	r, err := d.doc.Bound(page)
	if err != nil {
		return image.Rectangle{}, fmt.Errorf("page bounds %d: %w", page+1, err)
	}
	return r, nil
}

// Text returns the plain text MuPDF reads from the page, one line per row.
func (d *fitzDocument) Text(page int) (string, error) {
	text, err := d.doc.Text(page)
	if err != nil {
		return "", fmt.Errorf("read text of page %d: %w", page+1, err)
	}
	return text, nil
}

func (d *fitzDocument) Close() error {
	return d.doc.Close()
}
