package processor

import (
	"fmt"
	"image"
)

// CoverSize returns the smallest size with the source aspect ratio that covers
// tw x th on both axes. The branch is picked by comparing srcW/srcH with tw/th
// through cross multiplication, so equal ratios never depend on float
// rounding. The scaled side is rounded half up and is at least 1.
func CoverSize(srcW, srcH, tw, th int) (rw, rh int) {
	if int64(srcW)*int64(th) > int64(tw)*int64(srcH) {
		// source relatively wider: match height
		return scaleRound(srcW, th, srcH), th
	}
	return tw, scaleRound(srcH, tw, srcW)
}

// scaleRound returns round(v*num/den) with halves rounded up, minimum 1.
func scaleRound(v, num, den int) int {
	n := (2*int64(v)*int64(num) + int64(den)) / (2 * int64(den))
	if n < 1 {
		return 1
	}
	return int(n)
}

// CenterOffset returns the top-left corner of a tw x th window centered in a
// rw x rh image. It panics when the window does not fit, which means the
// cover-fit step is broken.
func CenterOffset(rw, rh, tw, th int) image.Point {
	left := (rw - tw) / 2
	top := (rh - th) / 2
	if rw < tw || rh < th {
		panic(fmt.Sprintf("processor: crop offset (%d,%d) negative for %dx%d inside %dx%d", left, top, tw, th, rw, rh))
	}
	return image.Pt(left, top)
}

// clampOffset keeps a tw x th window at p inside a rw x rh image.
func clampOffset(p image.Point, rw, rh, tw, th int) image.Point {
	p.X = min(max(p.X, 0), rw-tw)
	p.Y = min(max(p.Y, 0), rh-th)
	return p
}
