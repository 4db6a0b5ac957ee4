package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTerminal(t *testing.T) {
	base := errors.New("boom")

	assert.True(t, IsTerminal(Terminal(base)))
	assert.True(t, IsTerminal(Terminalf("listing %d gone", 42)))
	assert.False(t, IsTerminal(base))
	assert.False(t, IsTerminal(nil))
	assert.Nil(t, Terminal(nil))
}

func TestTerminal_SurvivesWrapping(t *testing.T) {
	inner := Terminal(errors.New("status 422"))
	wrapped := fmt.Errorf("call adapter: %w", inner)

	assert.True(t, IsTerminal(wrapped))
	assert.ErrorContains(t, wrapped, "status 422")
}

func TestTerminal_UnwrapsToCause(t *testing.T) {
	err := Terminal(ErrManualPortal)

	assert.ErrorIs(t, err, ErrManualPortal)
}

func TestSnapshotEquals(t *testing.T) {
	pub := &Publication{PayloadSnapshot: []byte(`{"a":1}`)}

	assert.True(t, pub.SnapshotEquals([]byte(`{"a":1}`)))
	assert.True(t, pub.SnapshotEquals([]byte(`{ "a": 1 }`)), "jsonb whitespace differences do not matter")
	assert.False(t, pub.SnapshotEquals([]byte(`{"a":2}`)))
	assert.False(t, pub.SnapshotEquals(nil), "no payload never matches")

	empty := &Publication{}
	assert.False(t, empty.SnapshotEquals([]byte(`{"a":1}`)), "no snapshot never matches")
}
