package ui

import (
	"image"
)

// =============================================================================
// Frame filters
// =============================================================================
// Night mode renders a frame as red-only luminance with a 1.6x gain, which
// keeps a dark room dark while watching. coverCrop trims a frame to the
// aspect ratio of its tile for the "cover" resize mode.
// =============================================================================

// nightModeLUT maps luminance to the boosted red value.
var nightModeLUT [256]uint8

func init() {
	for i := range nightModeLUT {
		v := float64(i) * 1.6
		if v > 255 {
			v = 255
		}
		nightModeLUT[i] = uint8(v)
	}
}

// luma is the ITU-R BT.601 luminance of an 8-bit RGB triple.
func luma(r, g, b uint8) uint8 {
	return uint8((299*uint32(r) + 587*uint32(g) + 114*uint32(b)) / 1000)
}

// applyNightMode writes the night rendition of src into dst, reusing dst's
// pixel buffer when it is large enough, and returns it.
func applyNightMode(src image.Image, dst *image.RGBA) *image.RGBA {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	need := w * h * 4

	if dst != nil && cap(dst.Pix) >= need {
		dst.Pix = dst.Pix[:need]
		dst.Stride = w * 4
		dst.Rect = image.Rect(0, 0, w, h)
	} else {
		dst = image.NewRGBA(image.Rect(0, 0, w, h))
	}

	switch s := src.(type) {
	case *image.YCbCr:
		// Decoded JPEG: Y already is the luminance.
		for y := 0; y < h; y++ {
			yOff := (y+bounds.Min.Y-s.Rect.Min.Y)*s.YStride + (bounds.Min.X - s.Rect.Min.X)
			dOff := y * dst.Stride
			for x := 0; x < w; x++ {
				setRed(dst.Pix[dOff:dOff+4], nightModeLUT[s.Y[yOff+x]])
				dOff += 4
			}
		}
	case *image.RGBA:
		for y := 0; y < h; y++ {
			sOff := (y+bounds.Min.Y-s.Rect.Min.Y)*s.Stride + (bounds.Min.X-s.Rect.Min.X)*4
			dOff := y * dst.Stride
			for x := 0; x < w; x++ {
				p := s.Pix[sOff : sOff+4]
				setRed(dst.Pix[dOff:dOff+4], nightModeLUT[luma(p[0], p[1], p[2])])
				sOff += 4
				dOff += 4
			}
		}
	default:
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				r, g, b, _ := src.At(x+bounds.Min.X, y+bounds.Min.Y).RGBA()
				off := y*dst.Stride + x*4
				setRed(dst.Pix[off:off+4], nightModeLUT[luma(uint8(r>>8), uint8(g>>8), uint8(b>>8))])
			}
		}
	}
	return dst
}

func setRed(px []uint8, v uint8) {
	px[0] = v
	px[1] = 0
	px[2] = 0
	px[3] = 255
}

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// coverCrop returns the centered region of src with the aspect ratio of a
// w x h tile. Images that cannot be sliced, and degenerate sizes, are
// returned unchanged.
func coverCrop(src image.Image, w, h float32) image.Image {
	if w <= 0 || h <= 0 {
		return src
	}
	si, ok := src.(subImager)
	if !ok {
		return src
	}

	b := src.Bounds()
	sw, sh := float32(b.Dx()), float32(b.Dy())
	if sw == 0 || sh == 0 {
		return src
	}

	target := w / h
	r := b
	switch current := sw / sh; {
	case current > target:
		cw := int(sh * target)
		x0 := b.Min.X + (b.Dx()-cw)/2
		r = image.Rect(x0, b.Min.Y, x0+cw, b.Max.Y)
	case current < target:
		ch := int(sw / target)
		y0 := b.Min.Y + (b.Dy()-ch)/2
		r = image.Rect(b.Min.X, y0, b.Max.X, y0+ch)
	default:
		return src
	}
	if r.Empty() {
		return src
	}
	return si.SubImage(r)
}
