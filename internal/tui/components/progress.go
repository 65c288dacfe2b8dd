package components

import (
	"fmt"
	"strings"
)

const (
	doneChar   = "■"
	failedChar = "▨"
	emptyChar  = "□"
)

// Progress renders board progress like: ■■■▨□□□□ 37%
// Done tasks fill from the left, failed tasks follow, and the percentage
// counts done tasks only.
type Progress struct {
	Done   int
	Failed int
	Total  int
	Width  int // character width of the bar portion
}

// NewProgress creates a new Progress instance.
func NewProgress(done, failed, total, width int) Progress {
	return Progress{
		Done:   done,
		Failed: failed,
		Total:  total,
		Width:  width,
	}
}

// View returns the rendered progress bar string.
func (p Progress) View() string {
	if p.Total <= 0 || p.Width <= 0 {
		return ""
	}

	done := clamp(p.Done, 0, p.Total)
	failed := clamp(p.Failed, 0, p.Total-done)

	percent := (done * 100) / p.Total
	doneCells := (done * p.Width) / p.Total
	failedCells := ((done+failed)*p.Width)/p.Total - doneCells

	bar := strings.Repeat(doneChar, doneCells) +
		strings.Repeat(failedChar, failedCells) +
		strings.Repeat(emptyChar, p.Width-doneCells-failedCells)

	return fmt.Sprintf("%s %d%%", bar, percent)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
