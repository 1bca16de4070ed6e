package samples_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bouncegrid/bounce/pkg/samples"
)

func TestRegisterAssignsIndices(t *testing.T) {
	r := samples.NewRegistry()
	assert.Equal(t, 0, r.Register("kit/kick.wav"))
	assert.Equal(t, 1, r.Register("kit/snare.wav"))
	assert.Equal(t, 2, r.Len())

	p, ok := r.Path(1)
	assert.True(t, ok)
	assert.Equal(t, "kit/snare.wav", p)

	s, ok := r.Get(0)
	assert.True(t, ok)
	assert.Equal(t, samples.Sample{Index: 0, Name: "kick", Path: "kit/kick.wav"}, s)
}

func TestOutOfRange(t *testing.T) {
	r := samples.FromPaths([]string{"a.wav"})
	for _, idx := range []int{-1, 1, 99} {
		_, ok := r.Path(idx)
		assert.False(t, ok, "index %d", idx)
	}
}

func TestLookupFirstWins(t *testing.T) {
	r := samples.FromPaths([]string{"one/hat.wav", "two/hat.ogg", "tom.wav"})
	idx, ok := r.Lookup("hat")
	assert.True(t, ok)
	assert.Equal(t, 0, idx)
	_, ok = r.Lookup("cymbal")
	assert.False(t, ok)

	all := r.All()
	assert.Len(t, all, 3)
	all[0].Path = "changed"
	p, _ := r.Path(0)
	assert.Equal(t, "one/hat.wav", p, "All must return a copy")
}
