package render

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
)

const reportImage = "report"

// assemblePDF cuts the raster into A4 pages. Each page shows the whole image
// shifted up by the page's offset; the page boundary clips the rest.
func assemblePDF(raster *Raster, pageHeight float64, title string) ([]byte, int, error) {
	offsets, err := Paginate(raster.HeightMM, pageHeight)
	if err != nil {
		return nil, 0, err
	}

	var img bytes.Buffer
	if err := raster.EncodePNG(&img); err != nil {
		return nil, 0, fmt.Errorf("failed to encode report image: %w", err)
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetTitle(title, true)
	pdf.SetCreator("labreport", true)

	opts := fpdf.ImageOptions{ImageType: "PNG", AllowNegativePosition: true}
	pdf.RegisterImageOptionsReader(reportImage, opts, &img)

	pageW, _ := pdf.GetPageSize()
	fit := pageW / raster.WidthMM
	imgW, imgH := raster.ImageSizeMM()
	for _, offset := range offsets {
		pdf.AddPage()
		pdf.ImageOptions(reportImage, 0, offset*fit, imgW*fit, imgH*fit, false, opts, 0, "")
	}

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, 0, fmt.Errorf("failed to write PDF: %w", err)
	}
	return out.Bytes(), pdf.PageCount(), nil
}
