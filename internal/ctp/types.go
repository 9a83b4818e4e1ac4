package ctp

import (
	"fmt"
	"math/bits"
	"slices"

	"github.com/RoaringBitmap/roaring"

	"github.com/roach88/ctprun/internal/detector"
)

// NumBCs is the number of bunch crossings in one LHC orbit, i.e. the width
// of a BCMask.
const NumBCs = 3564

// NumClasses is the size of the trigger class space.
const NumClasses = 64

// NoDescriptorMask is returned by DescriptorInputsMask when the descriptor
// does not exist.
const NoDescriptorMask = ^uint64(0)

// GeneratorNames is the fixed vocabulary of generator names.
var GeneratorNames = []string{"bcd1m", "bcd2m", "bcd10", "bcd20", "rnd1m", "rnd2m", "rnd10", "rnd20"}

// IsGenerator reports whether name belongs to GeneratorNames.
func IsGenerator(name string) bool {
	return slices.Contains(GeneratorNames, name)
}

// BCMask selects bunch crossings within an orbit.
type BCMask struct {
	Name string
	bcs  *roaring.Bitmap
}

// NewBCMask returns an empty mask.
func NewBCMask(name string) *BCMask {
	return &BCMask{Name: name, bcs: roaring.New()}
}

// Set selects bunch crossing bc. Positions outside [0, NumBCs) are rejected.
func (m *BCMask) Set(bc uint32) error {
	if bc >= NumBCs {
		return fmt.Errorf("bunch crossing %d out of range [0,%d)", bc, NumBCs)
	}
	m.bcs.Add(bc)
	return nil
}

// Test reports whether bunch crossing bc is selected.
func (m *BCMask) Test(bc uint32) bool {
	return m.bcs.Contains(bc)
}

// Count returns the number of selected bunch crossings.
func (m *BCMask) Count() int {
	return int(m.bcs.GetCardinality())
}

// BCs returns the selected bunch crossings in ascending order.
func (m *BCMask) BCs() []uint32 {
	return m.bcs.ToArray()
}

// Generator is a random or periodic trigger source.
type Generator struct {
	Name      string
	Frequency string
}

// Input is a hardware trigger condition tied to one detector.
type Input struct {
	Name         string
	Detector     detector.ID
	DetectorName string
	Level        string
	Mask         uint64
}

// Descriptor is a named combination of inputs.
type Descriptor struct {
	Name   string
	Inputs []*Input
}

// InputsMask is the OR of the referenced inputs' masks.
func (d *Descriptor) InputsMask() uint64 {
	var mask uint64
	for _, inp := range d.Inputs {
		mask |= inp.Mask
	}
	return mask
}

// InputNames lists the referenced inputs in definition order.
func (d *Descriptor) InputNames() []string {
	names := make([]string, len(d.Inputs))
	for i, inp := range d.Inputs {
		names[i] = inp.Name
	}
	return names
}

// Detector is one detector's participation record (an LTG entry).
// ID is detector.Invalid when the name on the LTG line did not resolve.
type Detector struct {
	ID         detector.ID
	Name       string
	HBAccepted bool
	Mode       string
	FErst      bool
}

// Cluster is a named group of detectors.
type Cluster struct {
	Name string
	// HWMask is the explicit hardware mask; only the inferred dialect sets it.
	HWMask       uint64
	DetectorMask uint64
	Detectors    []string
}

// Class is a trigger class: one bit of the class space combining a
// descriptor and a cluster. Descriptor is nil when the inferred dialect
// could not resolve it.
type Class struct {
	Name       string
	Mask       uint64
	Descriptor *Descriptor
	Cluster    *Cluster
}

// Index returns the class bit index, or -1 when the mask is empty.
func (c *Class) Index() int {
	if c.Mask == 0 {
		return -1
	}
	return bits.TrailingZeros64(c.Mask)
}

// ClassMaskFromIndex returns the single-bit class mask for index.
func ClassMaskFromIndex(index uint64) (uint64, error) {
	if index >= NumClasses {
		return 0, fmt.Errorf("%w: class index %d >= %d", ErrInvalid, index, NumClasses)
	}
	return 1 << index, nil
}
