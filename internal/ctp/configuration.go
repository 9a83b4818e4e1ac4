package ctp

import (
	"fmt"
	"slices"

	"github.com/roach88/ctprun/internal/detector"
)

// Configuration is one parsed trigger configuration.
type Configuration struct {
	Name      string
	Version   string
	RunNumber uint32

	bcMasks     []*BCMask
	generators  []Generator
	inputs      []*Input
	descriptors []*Descriptor
	detectors   []*Detector
	clusters    []*Cluster
	classes     []*Class
}

// New returns an empty configuration.
func New() *Configuration {
	return &Configuration{}
}

// The accessors below return the configuration's own slices. Callers must
// not modify them.

func (c *Configuration) BCMasks() []*BCMask         { return c.bcMasks }
func (c *Configuration) Generators() []Generator    { return c.generators }
func (c *Configuration) Inputs() []*Input           { return c.inputs }
func (c *Configuration) Descriptors() []*Descriptor { return c.descriptors }
func (c *Configuration) Detectors() []*Detector     { return c.detectors }
func (c *Configuration) Clusters() []*Cluster       { return c.clusters }
func (c *Configuration) Classes() []*Class          { return c.classes }

// AddBCMask appends a mask. Names are unique.
func (c *Configuration) AddBCMask(m *BCMask) error {
	if c.HasBCMask(m.Name) {
		return fmt.Errorf("%w: bc mask %q", ErrDuplicateName, m.Name)
	}
	c.bcMasks = append(c.bcMasks, m)
	return nil
}

// AddGenerator appends a generator. The name is not checked against
// GeneratorNames.
func (c *Configuration) AddGenerator(g Generator) {
	c.generators = append(c.generators, g)
}

// AddInput appends an input. Names are unique.
func (c *Configuration) AddInput(inp *Input) error {
	if _, ok := c.InputByName(inp.Name); ok {
		return fmt.Errorf("%w: input %q", ErrDuplicateName, inp.Name)
	}
	c.inputs = append(c.inputs, inp)
	return nil
}

// AddDescriptor appends a descriptor. Names are unique and every referenced
// input must already belong to the configuration.
func (c *Configuration) AddDescriptor(d *Descriptor) error {
	if _, ok := c.DescriptorByName(d.Name); ok {
		return fmt.Errorf("%w: descriptor %q", ErrDuplicateName, d.Name)
	}
	for _, inp := range d.Inputs {
		if !slices.Contains(c.inputs, inp) {
			return fmt.Errorf("%w: descriptor %q uses input %q", ErrUnknownReference, d.Name, inp.Name)
		}
	}
	c.descriptors = append(c.descriptors, d)
	return nil
}

// AddDetector appends a detector participation record. One record is kept
// per LTG line, so no uniqueness is enforced.
func (c *Configuration) AddDetector(d *Detector) {
	c.detectors = append(c.detectors, d)
}

// LastDetector returns the most recently added participation record, or nil.
func (c *Configuration) LastDetector() *Detector {
	if len(c.detectors) == 0 {
		return nil
	}
	return c.detectors[len(c.detectors)-1]
}

// AddCluster appends a cluster. Names are unique.
func (c *Configuration) AddCluster(cl *Cluster) error {
	if _, ok := c.ClusterByName(cl.Name); ok {
		return fmt.Errorf("%w: cluster %q", ErrDuplicateName, cl.Name)
	}
	c.clusters = append(c.clusters, cl)
	return nil
}

// LastCluster returns the most recently added cluster, or nil.
func (c *Configuration) LastCluster() *Cluster {
	if len(c.clusters) == 0 {
		return nil
	}
	return c.clusters[len(c.clusters)-1]
}

// AddClass appends a trigger class. The mask must be a single bit not used
// by another class, and a non-nil descriptor or cluster must already belong
// to the configuration.
func (c *Configuration) AddClass(cls *Class) error {
	if cls.Mask == 0 || cls.Mask&(cls.Mask-1) != 0 {
		return fmt.Errorf("%w: class %q mask 0x%x is not a single bit", ErrInvalid, cls.Name, cls.Mask)
	}
	if c.TriggerClassMask()&cls.Mask != 0 {
		return fmt.Errorf("%w: class %q index %d already used", ErrDuplicateName, cls.Name, cls.Index())
	}
	if cls.Descriptor != nil && !slices.Contains(c.descriptors, cls.Descriptor) {
		return fmt.Errorf("%w: class %q uses descriptor %q", ErrUnknownReference, cls.Name, cls.Descriptor.Name)
	}
	if cls.Cluster != nil && !slices.Contains(c.clusters, cls.Cluster) {
		return fmt.Errorf("%w: class %q uses cluster %q", ErrUnknownReference, cls.Name, cls.Cluster.Name)
	}
	c.classes = append(c.classes, cls)
	return nil
}

// InputByName looks up an input.
func (c *Configuration) InputByName(name string) (*Input, bool) {
	for _, inp := range c.inputs {
		if inp.Name == name {
			return inp, true
		}
	}
	return nil, false
}

// DescriptorByName looks up a descriptor.
func (c *Configuration) DescriptorByName(name string) (*Descriptor, bool) {
	for _, d := range c.descriptors {
		if d.Name == name {
			return d, true
		}
	}
	return nil, false
}

// ClusterByName looks up a cluster.
func (c *Configuration) ClusterByName(name string) (*Cluster, bool) {
	for _, cl := range c.clusters {
		if cl.Name == name {
			return cl, true
		}
	}
	return nil, false
}

// HasBCMask reports whether a mask with that name exists.
func (c *Configuration) HasBCMask(name string) bool {
	for _, m := range c.bcMasks {
		if m.Name == name {
			return true
		}
	}
	return false
}

// InputMask returns the named input's mask, or 0 if there is no such input.
func (c *Configuration) InputMask(name string) uint64 {
	if inp, ok := c.InputByName(name); ok {
		return inp.Mask
	}
	return 0
}

// IsMaskInInputs reports whether some input has exactly this mask.
func (c *Configuration) IsMaskInInputs(mask uint64) bool {
	for _, inp := range c.inputs {
		if inp.Mask == mask {
			return true
		}
	}
	return false
}

// DescriptorInputsMask returns the aggregated inputs mask of the named
// descriptor, or NoDescriptorMask if there is no such descriptor.
func (c *Configuration) DescriptorInputsMask(name string) uint64 {
	if d, ok := c.DescriptorByName(name); ok {
		return d.InputsMask()
	}
	return NoDescriptorMask
}

// DetectorInputs groups inputs by detector id.
func (c *Configuration) DetectorInputs() map[detector.ID][]*Input {
	m := make(map[detector.ID][]*Input)
	for _, inp := range c.inputs {
		m[inp.Detector] = append(m[inp.Detector], inp)
	}
	return m
}

// TriggerClassMask is the OR of all class masks.
func (c *Configuration) TriggerClassMask() uint64 {
	var mask uint64
	for _, cls := range c.classes {
		mask |= cls.Mask
	}
	return mask
}

// TriggerClassList returns the set bit indices of TriggerClassMask in
// ascending order.
func (c *Configuration) TriggerClassList() []int {
	mask := c.TriggerClassMask()
	var list []int
	for i := 0; i < NumClasses; i++ {
		if mask&(1<<uint(i)) != 0 {
			list = append(list, i)
		}
	}
	return list
}
