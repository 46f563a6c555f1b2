package broker

import (
	"errors"
	"testing"

	"flip7-server/pkg/flip7"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	subjects []string
	payloads [][]byte
	drained  bool
	err      error
}

func (f *fakeConn) Publish(subj string, data []byte) error {
	if f.err != nil {
		return f.err
	}

	f.subjects = append(f.subjects, subj)
	f.payloads = append(f.payloads, data)
	return nil
}

func (f *fakeConn) Drain() error {
	f.drained = true
	return nil
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "flip7.game.abc.state", Subject("", "abc"))
	assert.Equal(t, "prod.games.abc.state", Subject("prod.games", "abc"))
	assert.Equal(t, "flip7.game.*.state", Subject("", "*"))
}

func TestNATSPublisher_Publish(t *testing.T) {
	logger, _ := test.NewNullLogger()
	fc := &fakeConn{}
	p := newNATSPublisher(logger, fc, "")

	g, err := flip7.NewGame(logger, "g1", []flip7.PlayerInfo{{ID: "p1", Name: "One"}}, 3, flip7.DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, g.StartRound())

	assert.NoError(t, p.Publish("g1", g.Snapshot()))
	require.Len(t, fc.subjects, 1)
	assert.Equal(t, "flip7.game.g1.state", fc.subjects[0])

	snap, err := decode(fc.payloads[0])
	assert.NoError(t, err)
	assert.Equal(t, g.Snapshot(), snap)

	fc.err = errors.New("nats: connection closed")
	assert.EqualError(t, p.Publish("g1", g.Snapshot()), "nats: connection closed")

	p.Close()
	assert.True(t, fc.drained)
}

func TestNew_WithoutURL(t *testing.T) {
	logger, _ := test.NewNullLogger()
	p, err := New(logger, "", "")
	assert.NoError(t, err)
	assert.Equal(t, Nop{}, p)
	assert.NoError(t, p.Publish("g1", &flip7.Snapshot{}))
	p.Close()
}

func TestDecode_Invalid(t *testing.T) {
	_, err := decode([]byte("{"))
	assert.ErrorIs(t, err, flip7.ErrValidation)
}
