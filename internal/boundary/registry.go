package boundary

import (
	"fmt"
	"sort"
)

// Registry is a sparse node → condition map over a lattice of dims nodes.
// It is filled before a run and read concurrently during it.
type Registry struct {
	dims  [3]int
	conds map[int]Condition
}

func NewRegistry(dims [3]int) *Registry {
	return &Registry{dims: dims, conds: make(map[int]Condition)}
}

func (r *Registry) index(i, j, k int) (int, error) {
	if i < 0 || i >= r.dims[0] || j < 0 || j >= r.dims[1] || k < 0 || k >= r.dims[2] {
		return 0, fmt.Errorf("%w: node (%d,%d,%d) outside grid %v", ErrInvalidBoundary, i, j, k, r.dims)
	}
	return i + j*r.dims[0] + k*r.dims[0]*r.dims[1], nil
}

// Set assigns c to node (i,j,k), replacing any earlier condition. A free
// condition removes the entry.
func (r *Registry) Set(i, j, k int, c Condition) error {
	n, err := r.index(i, j, k)
	if err != nil {
		return err
	}
	c, err = c.Normalize()
	if err != nil {
		return err
	}
	if c.Kind == Free {
		delete(r.conds, n)
		return nil
	}
	r.conds[n] = c
	return nil
}

// SetBox assigns c to every node with lo <= (i,j,k) <= hi and returns the
// number of nodes assigned. Both corners must be lattice nodes with lo <= hi
// on every axis; nothing is assigned otherwise.
func (r *Registry) SetBox(lo, hi [3]int, c Condition) (int, error) {
	if _, err := r.index(lo[0], lo[1], lo[2]); err != nil {
		return 0, fmt.Errorf("box corner lo: %w", err)
	}
	if _, err := r.index(hi[0], hi[1], hi[2]); err != nil {
		return 0, fmt.Errorf("box corner hi: %w", err)
	}
	for a := 0; a < 3; a++ {
		if lo[a] > hi[a] {
			return 0, fmt.Errorf("%w: box %v..%v is inverted on axis %d", ErrInvalidBoundary, lo, hi, a)
		}
	}
	if _, err := c.Normalize(); err != nil {
		return 0, err
	}
	n := 0
	for k := lo[2]; k <= hi[2]; k++ {
		for j := lo[1]; j <= hi[1]; j++ {
			for i := lo[0]; i <= hi[0]; i++ {
				if err := r.Set(i, j, k, c); err != nil {
					return n, err
				}
				n++
			}
		}
	}
	return n, nil
}

// Get returns the condition of lattice node n; unassigned nodes are free.
func (r *Registry) Get(n int) (Condition, bool) {
	c, ok := r.conds[n]
	return c, ok
}

func (r *Registry) Len() int { return len(r.conds) }

// Each visits the assigned nodes in index order.
func (r *Registry) Each(fn func(node int, c Condition)) {
	keys := make([]int, 0, len(r.conds))
	for n := range r.conds {
		keys = append(keys, n)
	}
	sort.Ints(keys)
	for _, n := range keys {
		fn(n, r.conds[n])
	}
}

// Counts returns the number of nodes per kind.
func (r *Registry) Counts() map[Kind]int {
	out := make(map[Kind]int)
	for _, c := range r.conds {
		out[c.Kind]++
	}
	return out
}
