package pose

import "math"

// AngleBetween returns the angle at vertex b between rays b->a and b->c,
// in degrees within [0, 180]. Coincident points yield 0.
func AngleBetween(a, b, c Point) float64 {
	if a == b || c == b {
		return 0
	}

	radians := math.Atan2(c.Y-b.Y, c.X-b.X) - math.Atan2(a.Y-b.Y, a.X-b.X)
	angle := math.Abs(radians * 180.0 / math.Pi)
	if angle > 180.0 {
		angle = 360.0 - angle
	}

	if math.IsNaN(angle) {
		return 0
	}
	return angle
}

// AboveLine reports whether p lies above the line through a and b in image
// space. Only meaningful for lines closer to horizontal than vertical; for
// steeper lines it returns false.
func AboveLine(p, a, b Point) bool {
	dx := b.X - a.X
	dy := b.Y - a.Y
	if math.Abs(dx) <= math.Abs(dy) {
		return false
	}
	lineY := a.Y + dy*(p.X-a.X)/dx
	return p.Y < lineY
}

// HorizontalOffset is the absolute x distance between two points.
func HorizontalOffset(a, b Point) float64 {
	return math.Abs(a.X - b.X)
}
