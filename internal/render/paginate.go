package render

import (
	"errors"
	"math"
)

var ErrPageHeight = errors.New("page height must be positive")

// tolerance absorbs rounding from converting pixels back to millimetres, so
// a layout of exactly n pages does not spill onto an empty n+1th.
const tolerance = 1e-6

// Paginate returns the vertical offset of the full image on each page:
// 0, -P, -2P and so on. There are ceil(H/P) pages, and never fewer than one,
// so a partial last page is kept and an empty layout still prints a page.
func Paginate(totalHeight, pageHeight float64) ([]float64, error) {
	if !(pageHeight > 0) || math.IsInf(pageHeight, 0) {
		return nil, ErrPageHeight
	}
	if math.IsNaN(totalHeight) || math.IsInf(totalHeight, 0) {
		return nil, errors.New("invalid total height")
	}

	pages := 1
	if totalHeight > pageHeight {
		pages = int(math.Ceil(totalHeight/pageHeight - tolerance))
	}

	offsets := make([]float64, pages)
	for i := 1; i < pages; i++ {
		offsets[i] = -float64(i) * pageHeight
	}
	return offsets, nil
}
