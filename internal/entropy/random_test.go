package entropy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_SameSeedSameStream(t *testing.T) {
	a := New(7)
	b := New(7)
	for i := 0; i < 100; i++ {
		assert.Equal(t, a.Uint64(), b.Uint64())
	}
}

func TestResolve(t *testing.T) {
	assert.Equal(t, uint64(42), Resolve(42))
	assert.NotZero(t, Resolve(0))
}

func TestDerive(t *testing.T) {
	t.Run("deterministic", func(t *testing.T) {
		assert.Equal(t, Derive(1, 2, 3), Derive(1, 2, 3))
	})

	t.Run("keys separate streams", func(t *testing.T) {
		assert.NotEqual(t, Derive(1, 0, 0), Derive(1, 0, 1))
		assert.NotEqual(t, Derive(1, 0, 1), Derive(1, 1, 0))
		assert.NotEqual(t, Derive(1), Derive(2))
	})

	t.Run("never zero", func(t *testing.T) {
		for i := uint64(0); i < 1000; i++ {
			assert.NotZero(t, Derive(i, i))
		}
	})
}

func TestChance_Bounds(t *testing.T) {
	rng := New(1)
	for i := 0; i < 100; i++ {
		assert.False(t, Chance(rng, 0))
		assert.True(t, Chance(rng, 1))
		assert.False(t, Chance(rng, -0.5))
		assert.True(t, Chance(rng, 1.5))
	}
}

func TestChance_Frequency(t *testing.T) {
	rng := New(99)
	hits := 0
	const n = 20000
	for i := 0; i < n; i++ {
		if Chance(rng, 0.3) {
			hits++
		}
	}
	assert.InDelta(t, 0.3, float64(hits)/n, 0.02)
}
