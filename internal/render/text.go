package render

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Box is a rectangle in PDF points with a top-left origin.
type Box struct {
	X0, Y0, X1, Y1 float64
}

// Normalize scales the box to the 0..1000 grid used by layout-aware models,
// clamping every coordinate into range.
func (b Box) Normalize(width, height float64) [4]int {
	if width <= 0 || height <= 0 {
		return [4]int{}
	}
	scale := func(v, extent float64) int {
		n := int(v * 1000 / extent)
		if n < 0 {
			return 0
		}
		if n > 1000 {
			return 1000
		}
		return n
	}
	return [4]int{
		scale(b.X0, width),
		scale(b.Y0, height),
		scale(b.X1, width),
		scale(b.Y1, height),
	}
}

// TextBlock is one line of text in page reading order.
type TextBlock struct {
	Text string
	Box  Box
}

// TextSource opens documents for text-layout extraction.
type TextSource interface {
	Open(data []byte) (TextDocument, error)
}

// TextDocument yields the text blocks of each page. Page numbers are zero-based.
type TextDocument interface {
	NumPage() int
	Blocks(page int, pageHeight float64) ([]TextBlock, error)
}

// LayoutTextSource reads glyph runs from the PDF content streams.
type LayoutTextSource struct{}

// Open parses the document structure.
func (LayoutTextSource) Open(data []byte) (doc TextDocument, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = fmt.Errorf("open text layer: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open text layer: %w", err)
	}
	return &layoutDocument{reader: reader}, nil
}

type layoutDocument struct {
	reader *pdf.Reader
}

func (d *layoutDocument) NumPage() int {
	return d.reader.NumPage()
}

// Blocks groups the glyphs of a page into lines. The pdf library panics on
// malformed content streams, so that is reported as an error.
func (d *layoutDocument) Blocks(page int, pageHeight float64) (blocks []TextBlock, err error) {
	defer func() {
		if r := recover(); r != nil {
			blocks = nil
			err = fmt.Errorf("read text of page %d: %v", page+1, r)
		}
	}()

	p := d.reader.Page(page + 1)
	if p.V.IsNull() {
		return nil, nil
	}
	return groupLines(p.Content().Text, pageHeight), nil
}

const defaultFontSize = 10.0

// groupLines clusters glyphs sharing a baseline into blocks, ordered top to
// bottom. Within a line glyphs are ordered left to right and a space is
// inserted where the horizontal gap between two glyphs looks like a word break.
func groupLines(glyphs []pdf.Text, pageHeight float64) []TextBlock {
	if len(glyphs) == 0 {
		return nil
	}

	sorted := make([]pdf.Text, len(glyphs))
	copy(sorted, glyphs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Y != sorted[j].Y {
			return sorted[i].Y > sorted[j].Y
		}
		return sorted[i].X < sorted[j].X
	})

	var lines [][]pdf.Text
	var current []pdf.Text
	baseline := sorted[0].Y
	for _, g := range sorted {
		if len(current) > 0 && math.Abs(g.Y-baseline) > lineTolerance(g) {
			lines = append(lines, current)
			current = nil
		}
		if len(current) == 0 {
			baseline = g.Y
		}
		current = append(current, g)
	}
	if len(current) > 0 {
		lines = append(lines, current)
	}

	blocks := make([]TextBlock, 0, len(lines))
	for _, line := range lines {
		if b, ok := buildBlock(line, pageHeight); ok {
			blocks = append(blocks, b)
		}
	}
	return blocks
}

func lineTolerance(g pdf.Text) float64 {
	size := g.FontSize
	if size <= 0 {
		size = defaultFontSize
	}
	return math.Max(1, size*0.3)
}

func buildBlock(line []pdf.Text, pageHeight float64) (TextBlock, bool) {
	sort.SliceStable(line, func(i, j int) bool { return line[i].X < line[j].X })

	var sb strings.Builder
	x0, x1 := math.Inf(1), math.Inf(-1)
	minY, maxY, maxSize := math.Inf(1), math.Inf(-1), 0.0
	for i, g := range line {
		if i > 0 && needsSpace(line[i-1], g) {
			sb.WriteByte(' ')
		}
		sb.WriteString(g.S)

		x0 = math.Min(x0, g.X)
		x1 = math.Max(x1, g.X+g.W)
		minY = math.Min(minY, g.Y)
		maxY = math.Max(maxY, g.Y)
		maxSize = math.Max(maxSize, g.FontSize)
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return TextBlock{}, false
	}
	if maxSize <= 0 {
		maxSize = defaultFontSize
	}

	top := pageHeight - (maxY + maxSize)
	bottom := pageHeight - minY
	return TextBlock{
		Text: text,
		Box: Box{
			X0: math.Max(0, x0),
			Y0: math.Max(0, top),
			X1: math.Max(0, x1),
			Y1: math.Max(0, bottom),
		},
	}, true
}

func needsSpace(prev, cur pdf.Text) bool {
	if strings.HasSuffix(prev.S, " ") || strings.HasPrefix(cur.S, " ") {
		return false
	}
	size := prev.FontSize
	if size <= 0 {
		size = defaultFontSize
	}
	return cur.X-(prev.X+prev.W) > size*0.25
}

// rasterText reads plain page text from the rasterizer. MuPDF reports no glyph
// positions here, so each line gets a full-width box in an even vertical band.
type rasterText struct {
	doc RasterDocument
}

func (t rasterText) NumPage() int {
	return t.doc.NumPage()
}

func (t rasterText) Blocks(page int, pageHeight float64) ([]TextBlock, error) {
	raw, err := t.doc.Text(page)
	if err != nil {
		return nil, err
	}
	bounds, err := t.doc.Bound(page)
	if err != nil {
		return nil, err
	}
	return plainBlocks(raw, float64(bounds.Dx()), pageHeight), nil
}

func plainBlocks(raw string, width, height float64) []TextBlock {
	var lines []string
	for _, l := range strings.Split(raw, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) == 0 {
		return nil
	}

	step := height / float64(len(lines))
	blocks := make([]TextBlock, len(lines))
	for i, l := range lines {
		blocks[i] = TextBlock{
			Text: l,
			Box:  Box{X0: 0, Y0: float64(i) * step, X1: width, Y1: float64(i+1) * step},
		}
	}
	return blocks
}
