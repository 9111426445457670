package usersync

import "math/rand"

// Shuffler reorders bidders in place. Tests inject a deterministic implementation.
type Shuffler interface {
	Shuffle(v []string)
}

type randomShuffler struct{}

// NewShuffler returns a Shuffler backed by math/rand.
func NewShuffler() Shuffler {
	return randomShuffler{}
}

func (randomShuffler) Shuffle(v []string) {
	rand.Shuffle(len(v), func(i, j int) { v[i], v[j] = v[j], v[i] })
}
