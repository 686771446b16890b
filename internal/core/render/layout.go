package render

// pxPerInch is the resolution at which an image is shown at native size.
const pxPerInch = 96.0

// box is a rectangle in the writer's unit (mm for PDF, EMU for OOXML).
type box struct {
	X, Y, W, H float64
}

// fitImage scales a w x h pixel image into content, preserving aspect ratio
// and never exceeding native size. unitsPerPx converts pixels at 96 DPI to
// the box unit. The result is centered in content.
func fitImage(w, h int, content box, unitsPerPx float64) box {
	nw := float64(w) * unitsPerPx
	nh := float64(h) * unitsPerPx
	scale := min(1.0, content.W/nw, content.H/nh)
	fw, fh := nw*scale, nh*scale
	return box{
		X: content.X + (content.W-fw)/2,
		Y: content.Y + (content.H-fh)/2,
		W: fw,
		H: fh,
	}
}

const (
	mmPerInch  = 25.4
	emuPerPx   = 9525 // 914400 EMU per inch / 96
	emuPerTwip = 635
)
