package lobby

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/needle-drop/lobby-service/internal/domain"
)

func TestRegistryLeaveEvictsEmptyRoom(t *testing.T) {
	r := NewRegistry(domain.Position{X: 100, Y: 100}, domain.Bounds{})
	r.Join("42", domain.Participant{SessionID: "a"})
	r.Join("42", domain.Participant{SessionID: "b"})

	_, evicted, err := r.Leave("a")
	require.NoError(t, err)
	assert.False(t, evicted)

	p, evicted, err := r.Leave("b")
	require.NoError(t, err)
	assert.True(t, evicted)
	assert.Equal(t, "42", p.RoomID)
	assert.False(t, r.HasRoom("42"))

	_, _, err = r.Leave("b")
	assert.ErrorIs(t, err, domain.ErrNotInRoom)
}

func TestRegistrySpawnIsClamped(t *testing.T) {
	r := NewRegistry(domain.Position{X: 5000, Y: -1}, domain.Bounds{MaxX: 100, MaxY: 100})
	p := r.Join("42", domain.Participant{SessionID: "a"})
	assert.Equal(t, domain.Position{X: 100, Y: 0}, p.Position)
}

func TestRingOverwritesOldest(t *testing.T) {
	rb := newRing[int](3)
	for i := 1; i <= 5; i++ {
		rb.Push(i)
	}
	assert.Equal(t, []int{3, 4, 5}, rb.Snapshot())
	rb.Reset()
	assert.Empty(t, rb.Snapshot())
	rb.Push(9)
	assert.Equal(t, []int{9}, rb.Snapshot())
}
