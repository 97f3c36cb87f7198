package particles

// IDOrder is an interface for mapping particle IDs to their 3D index on a
// lattice of initial positions.
type IDOrder interface {
	// IDToIndex converts an ID to its 3-index equivalent on the lattice.
	IDToIndex(id int64) [3]int
	// IndexToID converts a 3-index on the lattice to its ID.
	IndexToID(i [3]int) int64
	// Span returns the number of lattice points along each axis.
	Span() [3]int
}

// Type assertions
var (
	_ IDOrder = &ZMajorUnigrid{ }
)

// ZMajorUnigrid is the IDOrder of a z-major uniform-mass grid. This is the
// ordering used by, e.g., 2LPTic and many other codes. See the IDOrder
// interface for documentation of the methods.
type ZMajorUnigrid struct {
	n int
	n64 int64
}

// NewZMajorUnigrid returns a z-major uniform density grid with width n on each
// side.
func NewZMajorUnigrid(n int) *ZMajorUnigrid {
	return &ZMajorUnigrid{ n, int64(n) }
}

func (g *ZMajorUnigrid) IDToIndex(id int64) [3]int {
	return [3]int{
		int(id / (g.n64 * g.n64)),
		int((id / g.n64) % g.n64),
		int(id % g.n64),
	}
}

func (g *ZMajorUnigrid) IndexToID(i [3]int) int64 {
	return int64(i[2]) + int64(i[1])*g.n64 + int64(i[0])*g.n64*g.n64
}

func (g *ZMajorUnigrid) Span() [3]int {
	return [3]int{ g.n, g.n, g.n }
}
