package deck

// Hand represents the cards a player flipped during a round, in draw order
type Hand []Card

// AddCard adds a card to the hand
func (h *Hand) AddCard(card Card) {
	*h = append(*h, card)
}

// HasRank returns true if the hand contains a card of the same rank
func (h Hand) HasRank(card Card) bool {
	for _, c := range h {
		if c == card {
			return true
		}
	}

	return false
}

// Sum returns the sum of all ranks in the hand
func (h Hand) Sum() int {
	sum := 0
	for _, c := range h {
		sum += c.Rank()
	}

	return sum
}

// DistinctRanks returns the number of different ranks in the hand
func (h Hand) DistinctRanks() int {
	seen := make(map[Card]bool, len(h))
	for _, c := range h {
		seen[c] = true
	}

	return len(seen)
}

// Duplicates returns the number of cards whose rank already appeared earlier in the hand
func (h Hand) Duplicates() int {
	return len(h) - h.DistinctRanks()
}

// LastCard returns the last card in the hand
// The second value is false if the hand is empty
func (h Hand) LastCard() (Card, bool) {
	n := len(h)
	if n == 0 {
		return 0, false
	}

	return h[n-1], true
}

func (h Hand) String() string {
	return CardsToString(h)
}

// Clone returns a clone of the hand
func (h Hand) Clone() Hand {
	h2 := make(Hand, len(h))
	copy(h2, h)

	return h2
}
