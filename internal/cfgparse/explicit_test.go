package cfgparse

import (
	"errors"
	"testing"

	"github.com/roach88/ctprun/internal/detector"
	"github.com/roach88/ctprun/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const explicitSample = `# CTP configuration
PARTITION: PHYSICS_1
VERSION: 2

INPUTS:
MT0A FT0 L0 0x1
MVBA FV0 L0 2
0VBA FV0 L0 0b100
DESCRIPTORS:
DMB MT0A MVBA
DV0 0VBA
DEMPTY
CLUSTERS:
CENT ITS TPC TOF
FWD FT0 FV0 XYZ
CLASSES:
CMB 1 DMB CENT
CV0 4 DV0 FWD
`

func TestParseExplicit_Sample(t *testing.T) {
	cfg, err := ParseExplicit(explicitSample, detector.Default())
	require.NoError(t, err)

	assert.Equal(t, "PHYSICS_1", cfg.Name)
	assert.Equal(t, "2", cfg.Version)

	require.Len(t, cfg.Inputs(), 3)
	inp, ok := cfg.InputByName("0VBA")
	require.True(t, ok)
	assert.Equal(t, uint64(4), inp.Mask)
	assert.Equal(t, "FV0", inp.DetectorName)
	assert.Equal(t, "L0", inp.Level)

	require.Len(t, cfg.Descriptors(), 3)
	dmb, ok := cfg.DescriptorByName("DMB")
	require.True(t, ok)
	assert.Equal(t, []string{"MT0A", "MVBA"}, dmb.InputNames())
	assert.Equal(t, uint64(0x3), dmb.InputsMask())
	empty, ok := cfg.DescriptorByName("DEMPTY")
	require.True(t, ok)
	assert.Equal(t, uint64(0), empty.InputsMask())

	cent, ok := cfg.ClusterByName("CENT")
	require.True(t, ok)
	assert.Equal(t, []string{"ITS", "TPC", "TOF"}, cent.Detectors)
	assert.Equal(t, uint64(0b1011), cent.DetectorMask)

	fwd, ok := cfg.ClusterByName("FWD")
	require.True(t, ok)
	assert.Equal(t, []string{"FT0", "FV0"}, fwd.Detectors, "unknown detector is skipped")
	assert.Equal(t, uint64(1<<12|1<<13), fwd.DetectorMask)

	require.Len(t, cfg.Classes(), 2)
	cmb := cfg.Classes()[0]
	assert.Equal(t, "CMB", cmb.Name)
	assert.Same(t, dmb, cmb.Descriptor)
	assert.Same(t, cent, cmb.Cluster)
	assert.Equal(t, uint64(0b101), cfg.TriggerClassMask())
	assert.Equal(t, []int{0, 2}, cfg.TriggerClassList())
}

func TestParseExplicit_Deterministic(t *testing.T) {
	a, err := ParseExplicit(explicitSample, detector.Default())
	require.NoError(t, err)
	b, err := ParseExplicit(explicitSample, detector.Default())
	require.NoError(t, err)

	assert.Equal(t, a.String(), b.String())
}

func TestParseExplicit_HeaderWithSurroundingText(t *testing.T) {
	cfg, err := ParseExplicit("  PARTITION:   LHC22_PbPb  \nVERSION:v7\n", detector.Default())
	require.NoError(t, err)
	assert.Equal(t, "LHC22_PbPb", cfg.Name)
	assert.Equal(t, "v7", cfg.Version)
}

func TestParseExplicit_EmptyText(t *testing.T) {
	cfg, err := ParseExplicit("", detector.Default())
	require.NoError(t, err)
	assert.Empty(t, cfg.Classes())
	assert.Equal(t, uint64(0), cfg.TriggerClassMask())
}

func TestParseExplicit_ClusterMaskFromRegistry(t *testing.T) {
	reg := testutil.NewFakeRegistry().
		Add("detA", 1, 0x10).
		Add("detB", 2, 0x100)

	cfg, err := ParseExplicit("CLUSTERS:\nc1 detA detB\n", reg)
	require.NoError(t, err)

	cl, ok := cfg.ClusterByName("c1")
	require.True(t, ok)
	assert.Equal(t, uint64(0x110), cl.DetectorMask)
	assert.Equal(t, []string{"DETA", "DETB"}, cl.Detectors)
}

func TestParseExplicit_Errors(t *testing.T) {
	tests := []struct {
		name string
		text string
		code string
		line int
	}{
		{
			name: "undefined input in descriptor",
			text: "INPUTS:\nMT0A FT0 L0 1\nDESCRIPTORS:\nD1 MT0A MISSING\n",
			code: ErrUnknownInput,
			line: 4,
		},
		{
			name: "input field count",
			text: "INPUTS:\nMT0A FT0 1\n",
			code: ErrFieldCount,
			line: 2,
		},
		{
			name: "input bad mask",
			text: "INPUTS:\nMT0A FT0 L0 0xZZ\n",
			code: ErrBadNumber,
			line: 2,
		},
		{
			name: "input unknown detector",
			text: "INPUTS:\nMT0A NOPE L0 1\n",
			code: ErrUnknownDetector,
			line: 2,
		},
		{
			name: "duplicate input",
			text: "INPUTS:\nMT0A FT0 L0 1\nMT0A FT0 L0 2\n",
			code: ErrDuplicate,
			line: 3,
		},
		{
			name: "class field count",
			text: "CLASSES:\nCMB 1 DMB\n",
			code: ErrFieldCount,
			line: 2,
		},
		{
			name: "class mask not a number",
			text: "CLASSES:\nCMB 0x1 DMB CENT\n",
			code: ErrBadNumber,
			line: 2,
		},
		{
			name: "class mask two bits",
			text: "CLASSES:\nCMB 3 DMB CENT\n",
			code: ErrBadClassMask,
			line: 2,
		},
		{
			name: "class mask zero",
			text: "CLASSES:\nCMB 0 DMB CENT\n",
			code: ErrBadClassMask,
			line: 2,
		},
		{
			name: "class unknown descriptor",
			text: "CLUSTERS:\nCENT ITS\nCLASSES:\nCMB 1 DMB CENT\n",
			code: ErrUnknownDescriptor,
			line: 4,
		},
		{
			name: "class unknown cluster",
			text: "DESCRIPTORS:\nDMB\nCLASSES:\nCMB 1 DMB CENT\n",
			code: ErrUnknownCluster,
			line: 4,
		},
		{
			name: "class bit reused",
			text: "DESCRIPTORS:\nDMB\nCLUSTERS:\nCENT ITS\nCLASSES:\nC1 2 DMB CENT\nC2 2 DMB CENT\n",
			code: ErrDuplicate,
			line: 7,
		},
		{
			name: "data before any header",
			text: "# comment\nMT0A FT0 L0 1\n",
			code: ErrLineOutsideSection,
			line: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseExplicit(tt.text, detector.Default())
			require.Error(t, err)
			assert.Nil(t, cfg)

			var pe *ParseError
			require.True(t, errors.As(err, &pe), "expected *ParseError, got %T", err)
			assert.Equal(t, tt.code, pe.Code)
			assert.Equal(t, tt.line, pe.Line)
			assert.True(t, IsParseError(err, tt.code))
			assert.True(t, IsParseError(err, ""))
		})
	}
}

func TestParseError_Message(t *testing.T) {
	_, err := ParseExplicit("INPUTS:\nMT0A FT0 L0 1\nDESCRIPTORS:\nD1 MISSING\n", detector.Default())
	require.Error(t, err)
	assert.Equal(t, `[E203] line 4: DESCRIPTORS: input "MISSING" not defined in INPUTS: "D1 MISSING"`, err.Error())
}

func TestIsParseError_OtherErrors(t *testing.T) {
	assert.False(t, IsParseError(errors.New("plain"), ""))
	assert.False(t, IsParseError(nil, ErrFieldCount))
	assert.False(t, IsParseError(&ParseError{Code: ErrBadNumber}, ErrFieldCount))
}
