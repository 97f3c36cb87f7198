/*package particles contains the per-worker particle container and the
functions which sort particles into buckets and move them between workers.*/
package particles

import (
	"fmt"
)

// Set holds the particles owned by one worker. Each particle occupies one
// local slot, and every array below is indexed by slot:
//
//   IDs      - the particle's global id.
//   State    - NComponents values; the first three are the position.
//   History  - MaxOrder past RHS samples of NComponents values each, newest
//              first.
//   Count    - the number of valid samples in History.
//
// Slots are not stable: Swap, Redistribute, and Truncate all move
// particles around. Use Lookup to find a particle by id.
type Set struct {
	NComponents, MaxOrder int

	IDs     []int64
	State   []float64
	History []float64
	Count   []int

	lookup map[int64]int
}

// NewSet creates an empty Set.
func NewSet(nComponents, maxOrder int) *Set {
	if nComponents < 3 {
		panic(fmt.Sprintf("Particles need at least 3 state components, "+
			"but %d were requested.", nComponents))
	} else if maxOrder < 0 {
		panic(fmt.Sprintf("Negative history length %d.", maxOrder))
	}
	return &Set{ NComponents: nComponents, MaxOrder: maxOrder }
}

// Len returns the number of particles in the Set.
func (s *Set) Len() int { return len(s.IDs) }

// historyWidth is the number of History values per particle.
func (s *Set) historyWidth() int { return s.MaxOrder * s.NComponents }

// Row returns the state of the particle in slot i.
func (s *Set) Row(i int) []float64 {
	nc := s.NComponents
	return s.State[i*nc: (i+1)*nc]
}

// Position returns the first three state values of the particle in slot i.
func (s *Set) Position(i int) []float64 {
	return s.State[i*s.NComponents: i*s.NComponents + 3]
}

// HistoryRow returns the k-th most recent RHS sample of the particle in slot
// i.
func (s *Set) HistoryRow(i, k int) []float64 {
	nc := s.NComponents
	start := i*s.historyWidth() + k*nc
	return s.History[start: start + nc]
}

// Append adds a particle to the end of the Set. history may be nil, in
// which case the particle starts with no history.
func (s *Set) Append(id int64, state, history []float64, count int) {
	if len(state) != s.NComponents {
		panic(fmt.Sprintf("Particle %d has %d state values, but the Set "+
			"has %d components.", id, len(state), s.NComponents))
	}

	s.IDs = append(s.IDs, id)
	s.State = append(s.State, state...)
	if history == nil {
		s.History = append(s.History, make([]float64, s.historyWidth())...)
		count = 0
	} else {
		s.History = append(s.History, history[:s.historyWidth()]...)
	}
	s.Count = append(s.Count, count)

	if s.lookup != nil { s.lookup[id] = len(s.IDs) - 1 }
}

// Swap exchanges the particles in slots i and j, keeping every array in
// lock-step.
func (s *Set) Swap(i, j int) {
	if i == j { return }

	s.IDs[i], s.IDs[j] = s.IDs[j], s.IDs[i]
	s.Count[i], s.Count[j] = s.Count[j], s.Count[i]
	swapRows(s.State, i, j, s.NComponents)
	swapRows(s.History, i, j, s.historyWidth())

	if s.lookup != nil {
		s.lookup[s.IDs[i]], s.lookup[s.IDs[j]] = i, j
	}
}

func swapRows(x []float64, i, j, width int) {
	ri, rj := x[i*width: (i+1)*width], x[j*width: (j+1)*width]
	for k := range ri {
		ri[k], rj[k] = rj[k], ri[k]
	}
}

// Truncate drops every particle in slot n and above.
func (s *Set) Truncate(n int) {
	if s.lookup != nil {
		for _, id := range s.IDs[n:] { delete(s.lookup, id) }
	}
	s.IDs = s.IDs[:n]
	s.Count = s.Count[:n]
	s.State = s.State[:n*s.NComponents]
	s.History = s.History[:n*s.historyWidth()]
}

// Transfer appends the particles in the slots from to dest. dest must have
// the same shape as s.
func (s *Set) Transfer(dest *Set, from []int) error {
	if dest.NComponents != s.NComponents || dest.MaxOrder != s.MaxOrder {
		return fmt.Errorf("Can't transfer particles with %d components and "+
			"%d history slots into a Set with %d and %d.", s.NComponents,
			s.MaxOrder, dest.NComponents, dest.MaxOrder)
	}

	hw := s.historyWidth()
	for _, i := range from {
		dest.Append(s.IDs[i], s.Row(i), s.History[i*hw: (i+1)*hw], s.Count[i])
	}
	return nil
}

// Reindex rebuilds the id -> slot map used by Lookup.
func (s *Set) Reindex() {
	s.lookup = make(map[int64]int, len(s.IDs))
	for i, id := range s.IDs {
		s.lookup[id] = i
	}
}

// Lookup returns the slot of the particle with the given id and false if
// this worker doesn't own it.
func (s *Set) Lookup(id int64) (int, bool) {
	if s.lookup == nil { s.Reindex() }
	i, ok := s.lookup[id]
	return i, ok
}
