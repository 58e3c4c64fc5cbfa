package docimage

import (
	"image"
	"image/color"
	"math"
)

// detectSize bounds the thumbnail the detector works on.
const detectSize = 400

// OrientationDetector estimates how far an image must be turned clockwise
// (0, 90, 180 or 270) to make its text upright. ok is false when the
// estimate is inconclusive.
type OrientationDetector interface {
	Detect(img image.Image) (angle int, ok bool)
}

// ProjectionDetector estimates text-line direction from ink projection
// profiles. Text lines produce a strongly alternating profile across the
// lines and a flat one along them. The side holding line starts (left
// aligned text, ragged ends) is the heavier one and gives the direction.
type ProjectionDetector struct {
	// Dominance is the factor one profile's variation must exceed the other
	// by; zero means 1.3.
	Dominance float64
	// Balance is the factor one half's ink must exceed the other's by; zero
	// means 1.15.
	Balance float64
}

func (d ProjectionDetector) Detect(img image.Image) (int, bool) {
	dom, bal := d.Dominance, d.Balance
	if dom <= 0 {
		dom = 1.3
	}
	if bal <= 0 {
		bal = 1.15
	}

	rows, cols := inkProfiles(img)
	rowCV, colCV := variation(rows), variation(cols)
	if rowCV == 0 && colCV == 0 {
		return 0, false
	}

	switch {
	case colCV > rowCV*dom:
		// vertical lines: line starts at the top mean the page was turned
		// clockwise, at the bottom counter-clockwise.
		top, bottom := halves(rows)
		switch {
		case top > bottom*bal:
			return 270, true
		case bottom > top*bal:
			return 90, true
		}
	case rowCV > colCV*dom:
		left, right := halves(cols)
		switch {
		case left > right*bal:
			return 0, true
		case right > left*bal:
			return 180, true
		}
	}
	return 0, false
}

// inkProfiles counts dark pixels per row and per column.
func inkProfiles(img image.Image) (rows, cols []float64) {
	b := img.Bounds()
	rows = make([]float64, b.Dy())
	cols = make([]float64, b.Dx())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y < 128 {
				rows[y-b.Min.Y]++
				cols[x-b.Min.X]++
			}
		}
	}
	return rows, cols
}

// variation is the coefficient of variation of p (0 for an empty profile).
func variation(p []float64) float64 {
	if len(p) == 0 {
		return 0
	}
	var sum float64
	for _, v := range p {
		sum += v
	}
	mean := sum / float64(len(p))
	if mean == 0 {
		return 0
	}
	var ss float64
	for _, v := range p {
		ss += (v - mean) * (v - mean)
	}
	return math.Sqrt(ss/float64(len(p))) / mean
}

func halves(p []float64) (first, second float64) {
	mid := len(p) / 2
	for i, v := range p {
		if i < mid {
			first += v
		} else {
			second += v
		}
	}
	return first, second
}
