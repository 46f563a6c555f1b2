package deck

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuild(t *testing.T) {
	cards := Build()
	assert.Equal(t, Size, len(cards))

	counts := make(map[Card]int)
	for _, c := range cards {
		counts[c]++
	}

	assert.Equal(t, 1, counts[0])
	assert.Equal(t, 1, counts[1])
	for rank := Card(2); rank <= MaxRank; rank++ {
		assert.Equal(t, int(rank), counts[rank], "rank %d", rank)
	}

	assert.Equal(t, 13, len(counts))
}

func TestNewDeck(t *testing.T) {
	deck := New()

	assert.Equal(t, 79, deck.CardsLeft())
	assert.Equal(t, Card(0), deck.Cards[0])
	assert.Equal(t, Card(12), deck.Cards[78])
	assert.Equal(t, 0, len(deck.Discards))

	unshuffled := deck.HashCode()
	deck.Shuffle(1)
	assert.Equal(t, 79, deck.CardsLeft())
	assert.NotEqual(t, unshuffled, deck.HashCode())
	assert.Equal(t, int64(1), deck.GetSeed())
}

func TestDeck_ShuffleIsDeterministic(t *testing.T) {
	for _, seed := range []int64{0, 1, 42, -7, 1 << 40} {
		d1 := New()
		d1.Shuffle(seed)
		d2 := New()
		d2.Shuffle(seed)

		assert.Equal(t, d1.HashCode(), d2.HashCode(), "seed %d", seed)

		for i := 0; i < 20; i++ {
			c1, err1 := d1.Draw()
			c2, err2 := d2.Draw()
			assert.NoError(t, err1)
			assert.NoError(t, err2)
			assert.Equal(t, c1, c2)
		}
	}

	d1 := New()
	d1.Shuffle(1)
	d2 := New()
	d2.Shuffle(2)
	assert.NotEqual(t, d1.HashCode(), d2.HashCode())
}

func TestDeck_ShuffleRebuilds(t *testing.T) {
	d := New()
	d.Shuffle(9)
	expected := d.HashCode()

	c, _ := d.Draw()
	d.Discard(c)
	assert.Equal(t, 78, d.CardsLeft())
	assert.Equal(t, 79, d.Total())

	d.Shuffle(9)
	assert.Equal(t, 79, d.CardsLeft())
	assert.Equal(t, 0, len(d.Discards))
	assert.Equal(t, expected, d.HashCode())
}

func TestDeck_Draw(t *testing.T) {
	deck := New()

	if !deck.CanDraw(79) {
		t.Errorf("expected CanDraw(79) to be true")
	}

	if deck.CanDraw(80) {
		t.Errorf("expected CanDraw(80) to be false")
	}

	for i := 0; i < 79; i++ {
		_, err := deck.Draw()
		if err != nil {
			t.Errorf("expected err to be nil, got %v", err)
		}
	}

	if deck.CanDraw(1) {
		t.Errorf("expected CanDraw(1) to be false")
	}

	_, err := deck.Draw()
	if err != ErrEndOfDeck {
		t.Errorf("expected err to be ErrEndOfDeck, got %#v", err)
	}

	deck.Shuffle(3)
	if !deck.CanDraw(79) {
		t.Errorf("expected Shuffle() to reshuffle the deck")
	}
}

func TestDeck_Restore(t *testing.T) {
	d := New()
	d.Restore(5, CardsFromString("3,4"), CardsFromString("12"))

	assert.Equal(t, int64(5), d.GetSeed())
	assert.Equal(t, 3, d.Total())

	c, err := d.Draw()
	assert.NoError(t, err)
	assert.Equal(t, Card(3), c)
}

func TestCardsFromString(t *testing.T) {
	assert.Equal(t, []Card{0, 12, 7}, CardsFromString("0, 12,7"))
	assert.Equal(t, "0,12,7", CardsToString([]Card{0, 12, 7}))
	assert.Equal(t, []Card{}, CardsFromString(""))
	assert.Panics(t, func() { CardFromString("13") })
	assert.Panics(t, func() { CardFromString("x") })
}
