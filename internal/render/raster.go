package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"strings"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/skip2/go-qrcode"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/goregular"
)

// Page geometry in millimetres.
const (
	PageWidthMM    = 210.0
	marginMM       = 20.0
	contentWidthMM = PageWidthMM - 2*marginMM
	headerHeightMM = 28.0
	gapMM          = 4.0
	qrSizeMM       = 22.0
	boxPaddingMM   = 3.0
	cellPaddingMM  = 1.5
	ptToMM         = 25.4 / 72
)

const (
	colorText        = "#111827"
	colorBorder      = "#9ca3af"
	colorMuted       = "#6b7280"
	colorAccent      = "#b91c1c"
	colorPatientBG   = "#f9fafb"
	colorTableHead   = "#e5e7eb"
	colorRemarksBG   = "#fefce8"
	colorFooterRule  = "#000000"
	tableBorderWidth = 0.25
)

// Share of the content width taken by each table column.
var columnShares = []float64{0.35, 0.2, 0.27, 0.18}

var ErrResolution = errors.New("pixels per millimetre must be positive")

type weight int

const (
	regular weight = iota
	bold
	italic
)

// Rasterizer paints a Layout onto one tall image, the way a browser would
// capture the whole report before it is cut into pages.
type Rasterizer struct {
	scale     float64
	minHeight float64
	fonts     map[weight]*truetype.Font
}

// NewRasterizer draws at pixelsPerMM. Layouts shorter than minHeightMM are
// padded to it, with the signatory and footer kept at the bottom.
func NewRasterizer(pixelsPerMM, minHeightMM float64) (*Rasterizer, error) {
	if !(pixelsPerMM > 0) {
		return nil, ErrResolution
	}

	fonts := make(map[weight]*truetype.Font, 3)
	for w, ttf := range map[weight][]byte{regular: goregular.TTF, bold: gobold.TTF, italic: goitalic.TTF} {
		f, err := truetype.Parse(ttf)
		if err != nil {
			return nil, fmt.Errorf("failed to parse font: %w", err)
		}
		fonts[w] = f
	}

	return &Rasterizer{scale: pixelsPerMM, minHeight: minHeightMM, fonts: fonts}, nil
}

// Raster is a painted report laid out over WidthMM x HeightMM. The image may
// run up to one pixel past HeightMM when the height is not a whole number of
// pixels; pagination follows HeightMM.
type Raster struct {
	dc       *gg.Context
	scale    float64
	WidthMM  float64
	HeightMM float64
}

// ImageSizeMM is the physical size of the painted image.
func (r *Raster) ImageSizeMM() (w, h float64) {
	b := r.dc.Image().Bounds()
	return float64(b.Dx()) / r.scale, float64(b.Dy()) / r.scale
}

func (r *Raster) Image() image.Image { return r.dc.Image() }

func (r *Raster) EncodePNG(w io.Writer) error { return r.dc.EncodePNG(w) }

func (r *Rasterizer) Rasterize(l Layout) (*Raster, error) {
	top, bottom := splitBlocks(l.Blocks)

	measure := r.newPainter(gg.NewContext(1, 1), false)
	topH := measure.blocks(top, 0)
	bottomH := measure.blocks(bottom, 0)

	height := marginMM + topH + gapMM + bottomH + marginMM
	if height < r.minHeight {
		height = r.minHeight
	}

	w := int(math.Round(PageWidthMM * r.scale))
	h := int(math.Ceil(height * r.scale))
	dc := gg.NewContext(w, h)
	dc.SetColor(color.White)
	dc.Clear()

	p := r.newPainter(dc, true)
	p.blocks(top, marginMM)
	p.blocks(bottom, height-marginMM-bottomH)
	if p.err != nil {
		return nil, p.err
	}

	return &Raster{dc: dc, scale: r.scale, WidthMM: PageWidthMM, HeightMM: height}, nil
}

// splitBlocks separates the blocks pinned to the bottom of the report.
func splitBlocks(blocks []Block) (top, bottom []Block) {
	for _, b := range blocks {
		switch b.Kind {
		case BlockSignatory, BlockFooter:
			bottom = append(bottom, b)
		default:
			top = append(top, b)
		}
	}
	return top, bottom
}

type faceKey struct {
	w    weight
	size float64
}

// painter walks blocks top to bottom in millimetres. With draw unset it only
// measures, which is how the image height is known before allocating it.
type painter struct {
	dc    *gg.Context
	scale float64
	fonts map[weight]*truetype.Font
	faces map[faceKey]font.Face
	draw  bool
	err   error
}

func (r *Rasterizer) newPainter(dc *gg.Context, draw bool) *painter {
	return &painter{
		dc:    dc,
		scale: r.scale,
		fonts: r.fonts,
		faces: map[faceKey]font.Face{},
		draw:  draw,
	}
}

func (p *painter) blocks(list []Block, y float64) float64 {
	total := 0.0
	for i, b := range list {
		if i > 0 {
			total += gapMM
		}
		total += p.block(b, y+total)
	}
	return total
}

func (p *painter) block(b Block, y float64) float64 {
	switch b.Kind {
	case BlockHeader:
		return p.header(b, y)
	case BlockSpacer:
		return headerHeightMM
	case BlockPatient:
		return p.patient(b, y)
	case BlockTitle:
		return p.title(b, y)
	case BlockTable:
		return p.table(b, y)
	case BlockPlaceholder:
		return p.placeholder(b, y)
	case BlockDescription:
		return p.description(b, y)
	case BlockSignatory:
		return p.signatory(b, y)
	case BlockFooter:
		return p.footer(b, y)
	}
	return 0
}

func (p *painter) header(b Block, y float64) float64 {
	center := PageWidthMM / 2

	p.setFont(bold, 20)
	p.setColor(colorText)
	p.text(b.Title, center, y+3, 0.5)

	ly := y + 3 + lineHeight(20)
	p.setFont(regular, 10)
	for _, l := range b.Lines {
		p.text(l, center, ly, 0.5)
		ly += lineHeight(10)
	}

	p.line(marginMM, y+headerHeightMM-1, marginMM+contentWidthMM, y+headerHeightMM-1, colorText, 0.6)
	return headerHeightMM
}

func (p *painter) patient(b Block, y float64) float64 {
	const size = 10.5
	lh := lineHeight(size)
	titleH := lineHeight(11) + 1.5

	inner := contentWidthMM - 2*boxPaddingMM
	if b.QRCode != "" {
		inner -= qrSizeMM + boxPaddingMM
	}

	rows := [][]Field{}
	for i := 0; i < len(b.Fields); i += 3 {
		end := i + 3
		if end > len(b.Fields) {
			end = len(b.Fields)
		}
		rows = append(rows, b.Fields[i:end])
	}

	colW := inner / 3
	bodyH := 0.0
	rowHeights := make([]float64, len(rows))
	for i, row := range rows {
		maxLines := 1
		for _, f := range row {
			if n := len(p.labeledLines(f, colW-1, size)); n > maxLines {
				maxLines = n
			}
		}
		rowHeights[i] = float64(maxLines)*lh + 1
		bodyH += rowHeights[i]
	}

	height := boxPaddingMM + titleH + 1 + bodyH + boxPaddingMM
	if b.QRCode != "" {
		if qh := boxPaddingMM + titleH + 1 + qrSizeMM + boxPaddingMM; qh > height {
			height = qh
		}
	}
	if !p.draw {
		return height
	}

	p.box(marginMM, y, contentWidthMM, height, colorPatientBG, colorBorder)

	p.setFont(bold, 11)
	p.setColor(colorText)
	p.text(strings.ToUpper(b.Title), PageWidthMM/2, y+boxPaddingMM, 0.5)
	ruleY := y + boxPaddingMM + titleH
	p.line(marginMM+boxPaddingMM, ruleY, marginMM+contentWidthMM-boxPaddingMM, ruleY, colorBorder, 0.25)

	ry := ruleY + 1
	for i, row := range rows {
		for j, f := range row {
			p.labeled(f, marginMM+boxPaddingMM+float64(j)*colW, ry, colW-1, size)
		}
		ry += rowHeights[i]
	}

	if b.QRCode != "" {
		p.qrcode(b.QRCode, marginMM+contentWidthMM-boxPaddingMM-qrSizeMM, ruleY+1)
	}
	return height
}

func (p *painter) title(b Block, y float64) float64 {
	const size = 14
	lh := lineHeight(size)

	p.setFont(bold, size)
	p.setColor(colorAccent)
	p.text(b.Title, PageWidthMM/2, y, 0.5)
	if p.draw {
		w := p.textWidth(b.Title)
		p.line(PageWidthMM/2-w/2, y+lh-0.5, PageWidthMM/2+w/2, y+lh-0.5, colorAccent, 0.35)
	}
	return lh + 1
}

func (p *painter) table(b Block, y float64) float64 {
	widths := make([]float64, len(columnShares))
	for i, s := range columnShares {
		widths[i] = s * contentWidthMM
	}

	total := p.tableRow(b.Columns, widths, y, bold, colorTableHead)
	for _, row := range b.Rows {
		total += p.tableRow(row, widths, y+total, regular, "")
	}
	return total
}

func (p *painter) tableRow(cells []string, widths []float64, y float64, w weight, fill string) float64 {
	const size = 10
	lh := lineHeight(size)

	p.setFont(w, size)
	wrapped := make([][]string, len(widths))
	maxLines := 1
	for i := range widths {
		cell := ""
		if i < len(cells) {
			cell = cells[i]
		}
		wrapped[i] = p.wrap(cell, widths[i]-2*cellPaddingMM)
		if len(wrapped[i]) > maxLines {
			maxLines = len(wrapped[i])
		}
	}
	height := float64(maxLines)*lh + 2*cellPaddingMM
	if !p.draw {
		return height
	}

	x := marginMM
	for i, cw := range widths {
		if fill != "" {
			p.fillRect(x, y, cw, height, fill)
		}
		p.strokeRect(x, y, cw, height, colorBorder, tableBorderWidth)
		p.setColor(colorText)
		for j, l := range wrapped[i] {
			p.text(l, x+cw/2, y+cellPaddingMM+float64(j)*lh, 0.5)
		}
		x += cw
	}
	return height
}

func (p *painter) placeholder(b Block, y float64) float64 {
	const size = 10.5
	p.setFont(regular, size)
	p.setColor(colorMuted)
	for i, l := range b.Lines {
		p.text(l, PageWidthMM/2, y+1+float64(i)*lineHeight(size), 0.5)
	}
	return float64(len(b.Lines))*lineHeight(size) + 2
}

func (p *painter) description(b Block, y float64) float64 {
	const size = 10
	lh := lineHeight(size)
	inner := contentWidthMM - 2*boxPaddingMM

	p.setFont(regular, size)
	var lines []string
	for _, l := range b.Lines {
		lines = append(lines, p.wrap(l, inner)...)
	}

	height := boxPaddingMM + lineHeight(10.5) + 1 + float64(len(lines))*lh + boxPaddingMM
	if !p.draw {
		return height
	}

	p.box(marginMM, y, contentWidthMM, height, colorRemarksBG, colorBorder)

	p.setFont(bold, 10.5)
	p.setColor(colorAccent)
	p.text(b.Title, marginMM+boxPaddingMM, y+boxPaddingMM, 0)

	p.setFont(regular, size)
	p.setColor(colorText)
	ly := y + boxPaddingMM + lineHeight(10.5) + 1
	for _, l := range lines {
		p.text(l, marginMM+boxPaddingMM, ly, 0)
		ly += lh
	}
	return height
}

func (p *painter) signatory(b Block, y float64) float64 {
	right := marginMM + contentWidthMM - 10
	height := 0.0

	sizes := []struct {
		w    weight
		size float64
	}{{bold, 10.5}, {italic, 9}}
	for i, l := range b.Lines {
		s := sizes[len(sizes)-1]
		if i < len(sizes) {
			s = sizes[i]
		}
		p.setFont(s.w, s.size)
		p.setColor(colorText)
		p.text(l, right, y+height, 1)
		height += lineHeight(s.size)
	}
	return height + 1
}

func (p *painter) footer(b Block, y float64) float64 {
	const size = 9
	lh := lineHeight(size)

	p.line(marginMM, y, marginMM+contentWidthMM, y, colorFooterRule, 0.5)
	height := 2.5

	for _, f := range b.Fields {
		label := f.Label + " :"
		p.setFont(regular, size)
		lines := p.wrap(label+" "+f.Value, contentWidthMM)
		for i, l := range lines {
			if i == 0 && strings.HasPrefix(l, label) {
				p.centeredLabeled(label, strings.TrimPrefix(l, label), PageWidthMM/2, y+height, size)
			} else {
				p.setFont(regular, size)
				p.setColor(colorText)
				p.text(l, PageWidthMM/2, y+height, 0.5)
			}
			height += lh
		}
	}
	return height + 1
}

// labeledLines wraps "Label: value" the way labeled draws it.
func (p *painter) labeledLines(f Field, width, size float64) []string {
	p.setFont(bold, size)
	labelW := p.textWidth(f.Label + ": ")
	p.setFont(regular, size)
	return p.wrap(f.Value, math.Max(width-labelW, 10))
}

func (p *painter) labeled(f Field, x, y, width, size float64) {
	lines := p.labeledLines(f, width, size)

	p.setFont(bold, size)
	p.setColor(colorText)
	label := f.Label + ": "
	p.text(label, x, y, 0)
	labelW := p.textWidth(label)

	p.setFont(regular, size)
	for i, l := range lines {
		p.text(l, x+labelW, y+float64(i)*lineHeight(size), 0)
	}
}

func (p *painter) centeredLabeled(label, rest string, center, y, size float64) {
	p.setFont(bold, size)
	labelW := p.textWidth(label)
	p.setFont(regular, size)
	restW := p.textWidth(rest)

	x := center - (labelW+restW)/2
	p.setColor(colorText)
	p.setFont(bold, size)
	p.text(label, x, y, 0)
	p.setFont(regular, size)
	p.text(rest, x+labelW, y, 0)
}

func (p *painter) qrcode(content string, x, y float64) {
	if !p.draw {
		return
	}
	q, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		p.err = fmt.Errorf("failed to encode QR code: %w", err)
		return
	}
	q.DisableBorder = true
	p.dc.DrawImage(q.Image(int(p.px(qrSizeMM))), int(p.px(x)), int(p.px(y)))
}

func lineHeight(size float64) float64 {
	return size * ptToMM * 1.4
}

func (p *painter) px(mm float64) float64 { return mm * p.scale }

func (p *painter) setFont(w weight, size float64) {
	k := faceKey{w: w, size: size}
	face, ok := p.faces[k]
	if !ok {
		face = truetype.NewFace(p.fonts[w], &truetype.Options{
			Size:    size,
			DPI:     p.scale * 25.4,
			Hinting: font.HintingFull,
		})
		p.faces[k] = face
	}
	p.dc.SetFontFace(face)
}

func (p *painter) setColor(hex string) {
	if p.draw {
		p.dc.SetHexColor(hex)
	}
}

func (p *painter) textWidth(s string) float64 {
	w, _ := p.dc.MeasureString(s)
	return w / p.scale
}

func (p *painter) wrap(s string, width float64) []string {
	if strings.TrimSpace(s) == "" {
		return []string{""}
	}
	return p.dc.WordWrap(s, p.px(width))
}

// text draws s with its top edge at y. ax anchors x: 0 left, 0.5 center,
// 1 right.
func (p *painter) text(s string, x, y, ax float64) {
	if !p.draw || s == "" {
		return
	}
	p.dc.DrawStringAnchored(s, p.px(x), p.px(y), ax, 1)
}

func (p *painter) line(x1, y1, x2, y2 float64, hex string, width float64) {
	if !p.draw {
		return
	}
	p.dc.SetHexColor(hex)
	p.dc.SetLineWidth(p.px(width))
	p.dc.DrawLine(p.px(x1), p.px(y1), p.px(x2), p.px(y2))
	p.dc.Stroke()
}

func (p *painter) fillRect(x, y, w, h float64, hex string) {
	p.dc.SetHexColor(hex)
	p.dc.DrawRectangle(p.px(x), p.px(y), p.px(w), p.px(h))
	p.dc.Fill()
}

func (p *painter) strokeRect(x, y, w, h float64, hex string, width float64) {
	p.dc.SetHexColor(hex)
	p.dc.SetLineWidth(p.px(width))
	p.dc.DrawRectangle(p.px(x), p.px(y), p.px(w), p.px(h))
	p.dc.Stroke()
}

func (p *painter) box(x, y, w, h float64, fill, stroke string) {
	p.dc.DrawRoundedRectangle(p.px(x), p.px(y), p.px(w), p.px(h), p.px(1.5))
	p.dc.SetHexColor(fill)
	p.dc.FillPreserve()
	p.dc.SetHexColor(stroke)
	p.dc.SetLineWidth(p.px(0.3))
	p.dc.Stroke()
}
