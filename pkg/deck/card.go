package deck

import (
	"fmt"
	"strconv"
	"strings"
)

// Card is an individual Flip 7 number card
// Cards carry nothing but their rank, so two cards of the same rank are interchangeable
type Card int

// rank bounds
const (
	MinRank Card = 0
	MaxRank Card = 12
)

// Rank returns the numeric rank of the card
func (c Card) Rank() int {
	return int(c)
}

// Valid returns true if the rank is in [MinRank, MaxRank]
func (c Card) Valid() bool {
	return c >= MinRank && c <= MaxRank
}

func (c Card) String() string {
	return strconv.Itoa(int(c))
}

// CardFromString returns a Card from the string.
// The string must be a base-10 rank between 0 and 12
func CardFromString(s string) Card {
	rank, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		panic(fmt.Sprintf("could not parse card `%s`: %v", s, err))
	}

	c := Card(rank)
	if !c.Valid() {
		panic(fmt.Sprintf("card out of range: %s", s))
	}

	return c
}

// CardsFromString will returns a slice of cards from a comma separated list of ranks
func CardsFromString(s string) []Card {
	if s == "" {
		return []Card{}
	}

	parts := strings.Split(s, ",")
	cards := make([]Card, len(parts))
	for i, part := range parts {
		cards[i] = CardFromString(part)
	}

	return cards
}

// CardsToString converts a slice of cards into a comma separated list of ranks
func CardsToString(cards []Card) string {
	s := make([]string, len(cards))
	for i, c := range cards {
		s[i] = c.String()
	}

	return strings.Join(s, ",")
}
