package game

// FilterMode selects how a boolean entity state participates in a query.
type FilterMode uint8

const (
	FilterAny   FilterMode = iota // state is ignored
	FilterOnly                    // only entities in the state
	FilterNever                   // only entities not in the state
)

func (m FilterMode) admits(state bool) bool {
	switch m {
	case FilterOnly:
		return state
	case FilterNever:
		return !state
	default:
		return true
	}
}

// QueryFilter narrows a radius query.
type QueryFilter struct {
	Flying       FilterMode
	Burrowed     FilterMode
	IncludeDying bool
	Exclude      map[EntityID]struct{}
}

// DefaultFilter matches what most towers want: any altitude, nothing
// underground, nothing already dead.
func DefaultFilter() QueryFilter {
	return QueryFilter{Flying: FilterAny, Burrowed: FilterNever}
}

func (f *QueryFilter) admits(e *Enemy) bool {
	if e.removed || e.ReachedGoal {
		return false
	}
	if e.Dead && !f.IncludeDying {
		return false
	}
	if !f.Flying.admits(e.Flying()) {
		return false
	}
	if !f.Burrowed.admits(e.Burrowed()) {
		return false
	}
	if f.Exclude != nil {
		if _, skip := f.Exclude[e.ID]; skip {
			return false
		}
	}
	return true
}

// SpatialGrid buckets enemies by the cell containing their centre. It is
// rebuilt wholesale once per tick and read-only until the next rebuild.
type SpatialGrid struct {
	cellSize float64
	cols     int
	rows     int
	cells    [][]*Enemy
}

// NewSpatialGrid creates a grid covering width x height.
func NewSpatialGrid(width, height, cellSize float64) *SpatialGrid {
	if cellSize <= 0 {
		cellSize = GridCellSize
	}
	cols := int(width/cellSize) + 1
	rows := int(height/cellSize) + 1
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}
	cells := make([][]*Enemy, cols*rows)
	for i := range cells {
		cells[i] = make([]*Enemy, 0, 4)
	}
	return &SpatialGrid{cellSize: cellSize, cols: cols, rows: rows, cells: cells}
}

// Clear empties every cell, keeping capacity.
func (g *SpatialGrid) Clear() {
	for i := range g.cells {
		clear(g.cells[i])
		g.cells[i] = g.cells[i][:0]
	}
}

// Rebuild clears the grid and inserts every enemy not yet removed.
func (g *SpatialGrid) Rebuild(enemies []*Enemy) {
	g.Clear()
	for _, e := range enemies {
		if e.removed {
			continue
		}
		idx := g.cellIndex(e.Pos.X, e.Pos.Y)
		g.cells[idx] = append(g.cells[idx], e)
	}
}

func (g *SpatialGrid) cellCoord(v float64, n int) int {
	c := int(v / g.cellSize)
	if v < 0 {
		c = 0
	}
	if c >= n {
		c = n - 1
	}
	return c
}

func (g *SpatialGrid) cellIndex(x, y float64) int {
	return g.cellCoord(y, g.rows)*g.cols + g.cellCoord(x, g.cols)
}

// Query returns enemies whose centre lies within radius of center.
func (g *SpatialGrid) Query(center Vec2, radius float64, filter QueryFilter) []*Enemy {
	return g.QueryInto(nil, center, radius, filter)
}

// QueryInto appends matches to dst and returns it. Cells on the grid border
// hold everything clamped onto them, so the exact distance test is what
// decides membership.
func (g *SpatialGrid) QueryInto(dst []*Enemy, center Vec2, radius float64, filter QueryFilter) []*Enemy {
	if radius < 0 {
		return dst
	}
	minCol := g.cellCoord(center.X-radius, g.cols)
	maxCol := g.cellCoord(center.X+radius, g.cols)
	minRow := g.cellCoord(center.Y-radius, g.rows)
	maxRow := g.cellCoord(center.Y+radius, g.rows)
	radiusSq := radius * radius
	for row := minRow; row <= maxRow; row++ {
		base := row * g.cols
		for col := minCol; col <= maxCol; col++ {
			for _, e := range g.cells[base+col] {
				if e.Pos.DistSq(center) > radiusSq {
					continue
				}
				if !filter.admits(e) {
					continue
				}
				dst = append(dst, e)
			}
		}
	}
	return dst
}
