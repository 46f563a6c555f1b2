package deck

import (
	"crypto/sha1" // nolint:gosec
	"encoding/hex"
	"errors"
	"math/rand"
)

// Size is the number of cards in a Flip 7 deck
const Size = 79

// ErrEndOfDeck is an error when Draw() is attempted and there are no more cards
var ErrEndOfDeck = errors.New("end of deck reached")

// Deck represents the Flip 7 deck
// Cards is the draw pile, top of the pile first. Discards holds cards taken out of play.
type Deck struct {
	Cards    []Card `json:"drawPile"`
	Discards []Card `json:"discardPile"`
	seed     int64
	rng      *rand.Rand
}

// Build returns the canonical, unshuffled card distribution:
// one 0, one 1, and n copies of every rank n from 2 to 12
func Build() []Card {
	cards := make([]Card, 0, Size)
	cards = append(cards, 0)
	for rank := Card(1); rank <= MaxRank; rank++ {
		copies := int(rank)
		for i := 0; i < copies; i++ {
			cards = append(cards, rank)
		}
	}

	return cards
}

// New returns a new deck of cards.
// Important! this deck is unshuffled. You must call the Shuffle() method to shuffle the cards
func New() *Deck {
	return &Deck{
		Cards:    Build(),
		Discards: []Card{},
	}
}

// Shuffle rebuilds the full deck and shuffles it with the given seed.
// The permutation only depends on the seed, so the same seed always yields the same draw order.
func (d *Deck) Shuffle(seed int64) {
	d.Cards = Build()
	d.Discards = []Card{}
	d.seed = seed
	d.rng = rand.New(rand.NewSource(seed)) // nolint:gosec

	for j := len(d.Cards) - 1; j > 0; j-- {
		i := d.rng.Intn(j + 1)

		d.Cards[i], d.Cards[j] = d.Cards[j], d.Cards[i]
	}
}

// GetSeed returns the seed used to shuffle the deck
func (d *Deck) GetSeed() int64 {
	return d.seed
}

// HashCode returns a SHA1 hash code of the draw pile.
func (d *Deck) HashCode() string {
	hash := sha1.New() // nolint:gosec
	for _, card := range d.Cards {
		_, _ = hash.Write([]byte{byte(card)})
	}

	return hex.EncodeToString(hash.Sum(nil))
}

// Draw will draw the next card
// If there are no more cards, an ErrEndOfDeck is returned
func (d *Deck) Draw() (Card, error) {
	if len(d.Cards) == 0 {
		return 0, ErrEndOfDeck
	}

	card := d.Cards[0]
	d.Cards = d.Cards[1:]

	return card, nil
}

// Discard moves the cards onto the discard pile
func (d *Deck) Discard(cards ...Card) {
	d.Discards = append(d.Discards, cards...)
}

// CanDraw returns true if there are {want} cards left in the deck
func (d *Deck) CanDraw(want int) bool {
	return len(d.Cards) >= want
}

// CardsLeft returns the number of cards left in the deck
func (d *Deck) CardsLeft() int {
	return len(d.Cards)
}

// Total returns the number of cards held by the deck across the draw and discard piles
func (d *Deck) Total() int {
	return len(d.Cards) + len(d.Discards)
}

// Restore replaces the piles and seed, used when rebuilding a deck from a saved state
func (d *Deck) Restore(seed int64, drawPile, discardPile []Card) {
	d.seed = seed
	d.rng = nil
	d.Cards = append([]Card{}, drawPile...)
	d.Discards = append([]Card{}, discardPile...)
}
