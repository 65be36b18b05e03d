package render

import (
	"errors"
	"fmt"

	"github.com/jwalitptl/labreport/internal/model"
)

const (
	ContentTypePDF  = "application/pdf"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Document is a finished export.
type Document struct {
	Filename    string
	ContentType string
	Pages       int
	Data        []byte
}

type Config struct {
	PixelsPerMM float64
	// PageHeight is the vertical step between PDF pages in millimetres.
	PageHeight float64
	Letterhead Letterhead
}

// Renderer turns saved report content into previews and files. It holds no
// per-report state and may be shared.
type Renderer struct {
	raster     *Rasterizer
	pageHeight float64
	letterhead Letterhead
}

func NewRenderer(cfg Config) (*Renderer, error) {
	if !(cfg.PageHeight > 0) {
		return nil, ErrPageHeight
	}
	raster, err := NewRasterizer(cfg.PixelsPerMM, cfg.PageHeight)
	if err != nil {
		return nil, err
	}
	return &Renderer{raster: raster, pageHeight: cfg.PageHeight, letterhead: cfg.Letterhead}, nil
}

func (r *Renderer) Compose(c model.ReportContent) Layout {
	return Compose(c, r.letterhead)
}

func (r *Renderer) PDF(c model.ReportContent) (*Document, error) {
	layout := r.Compose(c)

	raster, err := r.raster.Rasterize(layout)
	if err != nil {
		return nil, fmt.Errorf("failed to rasterize report: %w", err)
	}

	title := "Lab Report"
	if c.ReportName != "" {
		title = ReportTitle(c.ReportName)
	}
	data, pages, err := assemblePDF(raster, r.pageHeight, title)
	if err != nil {
		return nil, err
	}

	return &Document{
		Filename:    layout.Filename,
		ContentType: ContentTypePDF,
		Pages:       pages,
		Data:        data,
	}, nil
}

func (r *Renderer) XLSX(c model.ReportContent) (*Document, error) {
	data, err := buildXLSX(c, r.letterhead)
	if err != nil {
		return nil, err
	}
	return &Document{
		Filename:    Filename(c.Patient, ".xlsx"),
		ContentType: ContentTypeXLSX,
		Pages:       1,
		Data:        data,
	}, nil
}

// ErrUnknownFormat is returned by Export for anything but pdf and xlsx.
var ErrUnknownFormat = errors.New("unknown export format")

// Export renders c in the named format.
func (r *Renderer) Export(c model.ReportContent, format string) (*Document, error) {
	switch format {
	case "pdf", "":
		return r.PDF(c)
	case "xlsx":
		return r.XLSX(c)
	}
	return nil, ErrUnknownFormat
}
