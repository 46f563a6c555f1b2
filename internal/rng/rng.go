package rng

// Generator provides random numbers
type Generator interface {
	// Intn will return a random number up to but not including n
	Intn(n int) int

	// Int63 will return a non-negative random 63-bit integer
	Int63() int64
}

// Seed returns a fresh shuffle seed for a game whose creator did not pick one
func Seed(g Generator) int64 {
	if g == nil {
		g = Crypto{}
	}

	return g.Int63()
}
