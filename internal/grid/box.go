package grid

import "github.com/san-kum/mpmsim/internal/shape"

// Box is a half-open block of node indices [Lo, Hi) on each axis.
type Box struct {
	Lo, Hi [3]int
}

// EmptyBox returns a box that any Extend call replaces.
func EmptyBox() Box {
	const big = int(^uint(0) >> 1)
	return Box{Lo: [3]int{big, big, big}, Hi: [3]int{-big, -big, -big}}
}

func (b Box) Empty() bool {
	return b.Hi[0] <= b.Lo[0] || b.Hi[1] <= b.Lo[1] || b.Hi[2] <= b.Lo[2]
}

// Size returns the node count per axis.
func (b Box) Size() [3]int {
	if b.Empty() {
		return [3]int{}
	}
	return [3]int{b.Hi[0] - b.Lo[0], b.Hi[1] - b.Lo[1], b.Hi[2] - b.Lo[2]}
}

func (b Box) Len() int {
	s := b.Size()
	return s[0] * s[1] * s[2]
}

// Coord maps a box-local index to lattice coordinates.
func (b Box) Coord(n int) (i, j, k int) {
	s := b.Size()
	return b.Lo[0] + n%s[0], b.Lo[1] + (n/s[0])%s[1], b.Lo[2] + n/(s[0]*s[1])
}

// Local maps lattice coordinates inside the box to the box-local index.
func (b Box) Local(i, j, k int) int {
	s := b.Size()
	return (i - b.Lo[0]) + (j-b.Lo[1])*s[0] + (k-b.Lo[2])*s[0]*s[1]
}

// ExtendStencil grows b to cover every node of s.
func (b Box) ExtendStencil(s *shape.Stencil) Box {
	for a := 0; a < 3; a++ {
		if s.Base[a] < b.Lo[a] {
			b.Lo[a] = s.Base[a]
		}
		if hi := s.Base[a] + s.Width; hi > b.Hi[a] {
			b.Hi[a] = hi
		}
	}
	return b
}

// Union returns the smallest box covering b and o.
func (b Box) Union(o Box) Box {
	if o.Empty() {
		return b
	}
	if b.Empty() {
		return o
	}
	for a := 0; a < 3; a++ {
		b.Lo[a] = min(b.Lo[a], o.Lo[a])
		b.Hi[a] = max(b.Hi[a], o.Hi[a])
	}
	return b
}
