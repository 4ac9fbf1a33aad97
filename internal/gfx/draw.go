package gfx

// Line draws a straight line from (x0,y0) to (x1,y1) using the integer
// Bresenham algorithm. Both endpoints are plotted; swapping them produces
// the same pixel set.
func Line(s Surface, x0, y0, x1, y1 int, c Color) {
	// Error-term ties resolve differently per direction, so step from a
	// canonical endpoint to keep the pixel set order-independent.
	if x1 < x0 || (x1 == x0 && y1 < y0) {
		x0, x1 = x1, x0
		y0, y1 = y1, y0
	}
	dx := abs(x1 - x0)
	dy := abs(y1 - y0)
	sx := 1
	if x0 > x1 {
		sx = -1
	}
	sy := 1
	if y0 > y1 {
		sy = -1
	}
	err := dx - dy

	for {
		s.SetPixel(x0, y0, c)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}
}

// Rect draws the rectangle [x,x+w)×[y,y+h). Filled mode paints the whole
// area; outline mode paints the four 1px border segments. Zero width or
// height is a no-op.
func Rect(s Surface, x, y, w, h int, c Color, filled bool) {
	if w <= 0 || h <= 0 {
		return
	}
	if filled {
		for py := y; py < y+h; py++ {
			for px := x; px < x+w; px++ {
				s.SetPixel(px, py, c)
			}
		}
		return
	}
	Line(s, x, y, x+w-1, y, c)
	Line(s, x, y+h-1, x+w-1, y+h-1, c)
	Line(s, x, y, x, y+h-1, c)
	Line(s, x+w-1, y, x+w-1, y+h-1, c)
}

// Circle draws a circle of radius r centered at (cx,cy) using the integer
// midpoint algorithm. Filled mode connects the four symmetric horizontal
// spans per step; outline mode plots the eight symmetric points.
func Circle(s Surface, cx, cy, r int, c Color, filled bool) {
	if r < 0 {
		return
	}
	x := 0
	y := r
	d := 3 - 2*r

	for y >= x {
		if filled {
			Line(s, cx-x, cy-y, cx+x, cy-y, c)
			Line(s, cx-x, cy+y, cx+x, cy+y, c)
			Line(s, cx-y, cy-x, cx+y, cy-x, c)
			Line(s, cx-y, cy+x, cx+y, cy+x, c)
		} else {
			s.SetPixel(cx+x, cy+y, c)
			s.SetPixel(cx-x, cy+y, c)
			s.SetPixel(cx+x, cy-y, c)
			s.SetPixel(cx-x, cy-y, c)
			s.SetPixel(cx+y, cy+x, c)
			s.SetPixel(cx-y, cy+x, c)
			s.SetPixel(cx+y, cy-x, c)
			s.SetPixel(cx-y, cy-x, c)
		}
		x++
		if d > 0 {
			y--
			d += 4*(x-y) + 10
		} else {
			d += 4*x + 6
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
