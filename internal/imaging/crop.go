package imaging

import "image"

// cropBlackBorders removes uniform black framing captured from window
// shadows or recording padding. Returns the cropped image and true when a
// border of at least minBorderPx was trimmed; otherwise the original image
// and false. A fully black image is left untouched.
func cropBlackBorders(img image.Image) (image.Image, bool) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return img, false
	}

	rowHasContent := make([]bool, h)
	colHasContent := make([]bool, w)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if !isBlack(img, bounds.Min.X+x, bounds.Min.Y+y) {
				rowHasContent[y] = true
				colHasContent[x] = true
			}
		}
	}

	top := firstTrue(rowHasContent)
	if top < 0 {
		return img, false // completely black
	}
	bottom := lastTrue(rowHasContent)
	left := firstTrue(colHasContent)
	right := lastTrue(colHasContent)

	maxBorder := max(max(top, h-1-bottom), max(left, w-1-right))
	if maxBorder < minBorderPx {
		return img, false
	}
	if left >= right || top >= bottom {
		return img, false
	}

	rect := image.Rect(bounds.Min.X+left, bounds.Min.Y+top, bounds.Min.X+right+1, bounds.Min.Y+bottom+1)
	if sub, ok := img.(interface {
		SubImage(image.Rectangle) image.Image
	}); ok {
		return sub.SubImage(rect), true
	}
	return img, false
}

// isBlack reports whether the pixel at (x, y) has all RGB channels at or
// below the black threshold.
func isBlack(img image.Image, x, y int) bool {
	r, g, b, _ := img.At(x, y).RGBA()
	// RGBA returns 16-bit channels; compare against the 8-bit threshold.
	const scale = 0x101
	return r <= blackThreshold*scale && g <= blackThreshold*scale && b <= blackThreshold*scale
}

func firstTrue(v []bool) int {
	for i, b := range v {
		if b {
			return i
		}
	}
	return -1
}

func lastTrue(v []bool) int {
	for i := len(v) - 1; i >= 0; i-- {
		if v[i] {
			return i
		}
	}
	return -1
}
