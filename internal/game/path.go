package game

// Path is an immutable ordered waypoint sequence shared by every enemy that
// walks it. Paths are authored outside the core.
type Path struct {
	waypoints  []Vec2
	cumulative []float64 // distance from the first waypoint to waypoint i
}

// NewPath copies the given waypoints. A path needs at least one waypoint;
// an empty input yields a single waypoint at the origin.
func NewPath(waypoints []Vec2) *Path {
	copied := append([]Vec2(nil), waypoints...)
	if len(copied) == 0 {
		copied = []Vec2{{}}
	}
	cum := make([]float64, len(copied))
	for i := 1; i < len(copied); i++ {
		cum[i] = cum[i-1] + copied[i].Sub(copied[i-1]).Len()
	}
	return &Path{waypoints: copied, cumulative: cum}
}

// Len returns the number of waypoints.
func (p *Path) Len() int { return len(p.waypoints) }

// Waypoint returns waypoint i clamped into range.
func (p *Path) Waypoint(i int) Vec2 {
	if i < 0 {
		i = 0
	}
	if i >= len(p.waypoints) {
		i = len(p.waypoints) - 1
	}
	return p.waypoints[i]
}

// Start is the spawn point.
func (p *Path) Start() Vec2 { return p.waypoints[0] }

// Goal is the final waypoint.
func (p *Path) Goal() Vec2 { return p.waypoints[len(p.waypoints)-1] }

// Length is the total walking distance.
func (p *Path) Length() float64 { return p.cumulative[len(p.cumulative)-1] }

// DistanceAt returns the walking distance from the start to waypoint i.
func (p *Path) DistanceAt(i int) float64 {
	if i < 0 {
		return 0
	}
	if i >= len(p.cumulative) {
		return p.Length()
	}
	return p.cumulative[i]
}

// DefaultPaths returns the two lanes used when no map is supplied: a
// serpentine main lane and a shorter flanking lane.
func DefaultPaths() []*Path {
	main := NewPath([]Vec2{
		{X: 0, Y: 150}, {X: 400, Y: 150}, {X: 400, Y: 450}, {X: 900, Y: 450},
		{X: 900, Y: 200}, {X: 1300, Y: 200}, {X: 1300, Y: 700}, {X: 1600, Y: 700},
	})
	flank := NewPath([]Vec2{
		{X: 0, Y: 750}, {X: 600, Y: 750}, {X: 600, Y: 600}, {X: 1300, Y: 600},
		{X: 1300, Y: 700}, {X: 1600, Y: 700},
	})
	return []*Path{main, flank}
}
