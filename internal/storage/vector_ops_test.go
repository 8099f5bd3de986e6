package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSerializeVector(t *testing.T) {
	v := []float32{0.5, -1.25, 3}
	blob := serializeVector(v)
	assert.Len(t, blob, 12)
	assert.Equal(t, v, deserializeVector(blob))
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0},
		{"length mismatch", []float32{1}, []float32{1, 0}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CosineSimilarity(tt.a, tt.b), 1e-6)
		})
	}
}

func TestSortCandidates(t *testing.T) {
	c := []candidate{
		{chunkID: "b", score: 0.5},
		{chunkID: "a", score: 0.5},
		{chunkID: "z", score: 0.9},
	}
	sortCandidates(c)
	assert.Equal(t, []string{"z", "a", "b"}, []string{c[0].chunkID, c[1].chunkID, c[2].chunkID})

	assert.Len(t, topCandidates(c, 2), 2)
	assert.Len(t, topCandidates(c, 10), 3)
	assert.Empty(t, topCandidates(c, 0))
}
