package viz

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// Braille Patterns: 2x4 dots
// 1 4
// 2 5
// 3 6
// 7 8
//
// Unicode offset 0x2800
var pixelMap = [4][2]int{
	{0x1, 0x8},
	{0x2, 0x10},
	{0x4, 0x20},
	{0x40, 0x80},
}

const blank = 0x2800

type Canvas struct {
	Width, Height int
	Grid          [][]rune
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{
		Width:  w,
		Height: h,
		Grid:   make([][]rune, h),
	}
	for i := range c.Grid {
		c.Grid[i] = make([]rune, w)
	}
	c.Clear()
	return c
}

// Set sets a pixel at (x, y) in sub-pixel coordinates. The canvas size in
// sub-pixels is (Width*2) x (Height*4).
func (c *Canvas) Set(x, y int) {
	if x < 0 || y < 0 {
		return
	}
	col, row := x/2, y/4
	if col >= c.Width || row >= c.Height {
		return
	}
	c.Grid[row][col] |= rune(pixelMap[y%4][x%2])
}

// Lit reports whether the sub-pixel (x, y) is set.
func (c *Canvas) Lit(x, y int) bool {
	if x < 0 || y < 0 || x/2 >= c.Width || y/4 >= c.Height {
		return false
	}
	return c.Grid[y/4][x/2]&rune(pixelMap[y%4][x%2]) != 0
}

func (c *Canvas) Clear() {
	for i := range c.Grid {
		for j := range c.Grid[i] {
			c.Grid[i][j] = blank
		}
	}
}

// Count returns the number of lit sub-pixels.
func (c *Canvas) Count() int {
	n := 0
	for _, row := range c.Grid {
		for _, r := range row {
			bits := r - blank
			for ; bits != 0; bits &= bits - 1 {
				n++
			}
		}
	}
	return n
}

func (c *Canvas) String() string {
	var b strings.Builder
	for _, row := range c.Grid {
		b.WriteString(string(row) + "\n")
	}
	return b.String()
}

// Plane selects the two axes a particle cloud is projected onto.
type Plane int

const (
	PlaneXZ Plane = iota
	PlaneYZ
	PlaneXY
)

func (p Plane) String() string {
	switch p {
	case PlaneYZ:
		return "y-z"
	case PlaneXY:
		return "x-y"
	default:
		return "x-z"
	}
}

// ParsePlane accepts "x-z", "y-z" and "x-y" with or without the dash.
func ParsePlane(s string) (Plane, error) {
	switch s {
	case "x-z", "xz":
		return PlaneXZ, nil
	case "y-z", "yz":
		return PlaneYZ, nil
	case "x-y", "xy":
		return PlaneXY, nil
	}
	return PlaneXZ, fmt.Errorf("viz: unknown plane %q", s)
}

// Next cycles through the planes.
func (p Plane) Next() Plane { return (p + 1) % 3 }

// Project returns the horizontal and vertical coordinates of v in the plane.
func (p Plane) Project(v r3.Vec) (u, w float64) {
	switch p {
	case PlaneYZ:
		return v.Y, v.Z
	case PlaneXY:
		return v.X, v.Y
	default:
		return v.X, v.Z
	}
}

// Scatter clears the canvas and plots points projected onto plane, scaled
// so that the box [0, extent] fills the canvas. The vertical axis points up.
func (c *Canvas) Scatter(points []r3.Vec, extent r3.Vec, plane Plane) {
	c.Clear()
	eu, ew := plane.Project(extent)
	if !(eu > 0 && ew > 0) {
		return
	}
	pw, ph := float64(c.Width*2-1), float64(c.Height*4-1)
	for _, pt := range points {
		u, w := plane.Project(pt)
		if u < 0 || w < 0 || u > eu || w > ew {
			continue
		}
		c.Set(int(u/eu*pw+0.5), int((1-w/ew)*ph+0.5))
	}
}
