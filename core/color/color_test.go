package color

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"#FF0000", "#ff0000"},
		{"ff0000", "#ff0000"},
		{" #Ff 00 00 ", "#ff0000"},
		{"FF0000FF", "#ff0000"},
		{"#f00", "#ff0000"},
		{"Red", "#ff0000"},
		{"Galaxy Black", "galaxyblack"},
		{"", ""},
		{"#12345", "#12345"},
	}
	for _, c := range cases {
		t.Run(c.in, func(t *testing.T) {
			assert.Equal(t, c.want, Normalize(c.in))
		})
	}
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal("#FF0000", "ff0000ff"))
	assert.True(t, Equal("white", "#FFFFFF"))
	assert.False(t, Equal("#FF0000", "#FE0000"))
}

func TestAreSimilarReflexive(t *testing.T) {
	for _, c := range []string{"#FF0000", "black", "not-a-colour", ""} {
		assert.True(t, AreSimilar(c, c), c)
	}
}

func TestAreSimilarSymmetric(t *testing.T) {
	pairs := [][2]string{
		{"#FF0000", "#FE0101"},
		{"#FF0000", "#00FF00"},
		{"#202020", "#232323"},
		{"#FFFFFF", "#F0F0F0"},
		{"unknown", "#000000"},
	}
	for _, p := range pairs {
		assert.Equal(t, AreSimilar(p[0], p[1]), AreSimilar(p[1], p[0]), "%v", p)
	}
}

func TestAreSimilarTolerance(t *testing.T) {
	assert.True(t, AreSimilar("#FF0000", "#FA0505"))
	assert.False(t, AreSimilar("#FF0000", "#00FF00"))
	assert.False(t, AreSimilar("#000000", "#FFFFFF"))
	assert.False(t, AreSimilar("galaxy", "#000000"))
}

func TestComparerThreshold(t *testing.T) {
	strict := Comparer{Threshold: 0.0001}
	assert.False(t, strict.AreSimilar("#FF0000", "#FA0505"))
	assert.True(t, strict.AreSimilar("#FF0000", "ff0000"))

	var zero Comparer
	assert.Equal(t, AreSimilar("#FF0000", "#FA0505"), zero.AreSimilar("#FF0000", "#FA0505"))
}

func TestDistance(t *testing.T) {
	d, ok := Default.Distance("#FF0000", "#FF0000")
	assert.True(t, ok)
	assert.InDelta(t, 0, d, 1e-9)

	_, ok = Default.Distance("red-ish", "#FF0000")
	assert.False(t, ok)
}
