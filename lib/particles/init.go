package particles

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	g_error "github.com/phil-mansfield/tracers/lib/error"
)

// Lattice returns the state of n particles placed at the centers of a cubic
// lattice that fills the box, in the order given by a ZMajorUnigrid. n must be
// a perfect cube. Components past the position are zero.
func Lattice(n int64, nComponents int, box [3]float64) ([]float64, error) {
	nSide := round(math.Cbrt(float64(n)))
	if int64(nSide)*int64(nSide)*int64(nSide) != n {
		return nil, g_error.Config("Lattice initial conditions need a "+
			"perfect cube of particles, but %d were requested.", n)
	}

	order := NewZMajorUnigrid(nSide)
	state := make([]float64, n*int64(nComponents))
	for id := int64(0); id < n; id++ {
		idx := order.IDToIndex(id)
		row := state[id*int64(nComponents):]
		for k := 0; k < 3; k++ {
			row[k] = (float64(idx[k]) + 0.5) * box[k] / float64(nSide)
		}
	}
	return state, nil
}

// Uniform returns the state of n particles drawn uniformly from the box with
// the given seed. Components past the position are zero.
func Uniform(n int64, nComponents int, box [3]float64, seed uint64) []float64 {
	src := rand.NewSource(seed)
	dist := [3]distuv.Uniform{ }
	for k := range dist {
		dist[k] = distuv.Uniform{ Min: 0, Max: box[k], Src: src }
	}

	state := make([]float64, n*int64(nComponents))
	for id := int64(0); id < n; id++ {
		row := state[id*int64(nComponents):]
		for k := 0; k < 3; k++ {
			// Rounding can reach Max.
			if row[k] = dist[k].Rand(); row[k] >= box[k] { row[k] = 0 }
		}
	}
	return state
}

// Load appends the particles in a global state array which are owned by
// rank to set. state holds set.NComponents values per particle, in id order.
func Load(set *Set, state []float64, rank int, owner OwnerFunc) {
	nc := set.NComponents
	for id := 0; id*nc < len(state); id++ {
		row := state[id*nc: (id+1)*nc]
		if owner(row) == rank {
			set.Append(int64(id), row, nil, 0)
		}
	}
	set.Reindex()
}
