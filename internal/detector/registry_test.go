package detector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistryResolve(t *testing.T) {
	r := Default()

	id, mask, ok := r.Resolve("ITS")
	require.True(t, ok)
	assert.Equal(t, ID(0), id)
	assert.Equal(t, uint64(1), mask)

	id, mask, ok = r.Resolve("tof")
	require.True(t, ok)
	assert.Equal(t, ID(3), id)
	assert.Equal(t, uint64(1<<3), mask)
}

func TestResolveUnknown(t *testing.T) {
	r := Default()
	id, mask, ok := r.Resolve("XYZ")
	assert.False(t, ok)
	assert.Equal(t, Invalid, id)
	assert.Zero(t, mask)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "FT0", Normalize("  ft0 "))
	assert.Equal(t, "MID", Normalize("Mid"))
}

func TestIDMask(t *testing.T) {
	assert.Zero(t, Invalid.Mask())
	assert.False(t, Invalid.Valid())
	assert.Equal(t, uint64(1<<11), ID(11).Mask())
}

func TestMaskNames(t *testing.T) {
	r := Default()
	_, its, _ := r.Resolve("ITS")
	_, zdc, _ := r.Resolve("ZDC")
	assert.Equal(t, []string{"ITS", "ZDC"}, MaskNames(r, its|zdc))
	assert.Empty(t, MaskNames(r, 0))
	assert.Equal(t, "?", r.Name(Invalid))
}
