package mask

// grid is a mutable boolean raster used during mask construction.
// The published types.Mask copies out of it.
type grid struct {
	w, h  int
	cells []bool
}

func newGrid(w, h int) *grid {
	return &grid{w: w, h: h, cells: make([]bool, w*h)}
}

func (g *grid) at(x, y int) bool {
	if x < 0 || y < 0 || x >= g.w || y >= g.h {
		return false
	}
	return g.cells[y*g.w+x]
}

func (g *grid) set(x, y int, v bool) { g.cells[y*g.w+x] = v }

// diskOffsets returns the neighborhood offsets of a disk-shaped structuring
// element with the given radius.
func diskOffsets(radius int) [][2]int {
	var offs [][2]int
	r2 := radius * radius
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy <= r2 {
				offs = append(offs, [2]int{dx, dy})
			}
		}
	}
	return offs
}

// dilate sets each cell true if any cell under the structuring element is true.
func dilate(g *grid, offs [][2]int) *grid {
	out := newGrid(g.w, g.h)
	for y := 0; y < g.h; y++ {
		for x := 0; x < g.w; x++ {
			for _, o := range offs {
				if g.at(x+o[0], y+o[1]) {
					out.set(x, y, true)
					break
				}
			}
		}
	}
	return out
}

// erode keeps a cell true only if every in-bounds cell under the structuring
// element is true. Out-of-bounds neighbors are ignored so tissue touching the
// thumbnail border is not eaten away.
func erode(g *grid, offs [][2]int) *grid {
	out := newGrid(g.w, g.h)
	for y := 0; y < g.h; y++ {
		for x := 0; x < g.w; x++ {
			keep := g.at(x, y)
			if !keep {
				continue
			}
			for _, o := range offs {
				nx, ny := x+o[0], y+o[1]
				if nx < 0 || ny < 0 || nx >= g.w || ny >= g.h {
					continue
				}
				if !g.at(nx, ny) {
					keep = false
					break
				}
			}
			out.set(x, y, keep)
		}
	}
	return out
}

// closing fills gaps smaller than the structuring element: dilate then erode.
func closing(g *grid, radius int) *grid {
	if radius < 1 {
		return g
	}
	offs := diskOffsets(radius)
	return erode(dilate(g, offs), offs)
}

// opening removes specks smaller than the structuring element: erode then dilate.
func opening(g *grid, radius int) *grid {
	if radius < 1 {
		return g
	}
	offs := diskOffsets(radius)
	return dilate(erode(g, offs), offs)
}

// removeSmallComponents clears 4-connected components below minArea cells.
func removeSmallComponents(g *grid, minArea int) {
	if minArea <= 1 {
		return
	}
	visited := make([]bool, len(g.cells))
	var stack []int

	for start := range g.cells {
		if !g.cells[start] || visited[start] {
			continue
		}

		// Flood fill collecting the component.
		component := []int{start}
		visited[start] = true
		stack = append(stack[:0], start)
		for len(stack) > 0 {
			idx := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			x, y := idx%g.w, idx/g.w
			for _, n := range [4][2]int{{x - 1, y}, {x + 1, y}, {x, y - 1}, {x, y + 1}} {
				nx, ny := n[0], n[1]
				if nx < 0 || ny < 0 || nx >= g.w || ny >= g.h {
					continue
				}
				nidx := ny*g.w + nx
				if g.cells[nidx] && !visited[nidx] {
					visited[nidx] = true
					component = append(component, nidx)
					stack = append(stack, nidx)
				}
			}
		}

		if len(component) < minArea {
			for _, idx := range component {
				g.cells[idx] = false
			}
		}
	}
}
