package decision

import "github.com/wildvale/server/internal/core/ecs"

// tieRNG is a splitmix64 stream seeded from the owning entity's stable
// identity and the current tick, never from wall-clock time or addresses,
// so repeated runs over the same input trace are bit-reproducible.
type tieRNG struct {
	state uint64
}

func newTieRNG(entity ecs.EntityID, tick uint64) *tieRNG {
	return &tieRNG{state: uint64(entity) ^ (tick * 0x9e3779b97f4a7c15)}
}

func (r *tieRNG) next() uint64 {
	r.state += 0x9e3779b97f4a7c15
	z := r.state
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// float64 returns a value in [0,1).
func (r *tieRNG) float64() float64 {
	return float64(r.next()>>11) / (1 << 53)
}
