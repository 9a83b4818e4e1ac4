package ctp

import (
	"bytes"
	"fmt"
	"io"
	"strings"
)

// WriteTo writes a line-oriented, human-readable dump of the configuration.
// The output is deterministic for a given configuration.
func (c *Configuration) WriteTo(w io.Writer) (int64, error) {
	var b bytes.Buffer

	fmt.Fprintf(&b, "Configuration: %s\n", c.Name)
	fmt.Fprintf(&b, " Version: %s\n", c.Version)
	fmt.Fprintf(&b, " Run: %d\n", c.RunNumber)

	fmt.Fprintf(&b, "CTP BC masks: %d\n", len(c.bcMasks))
	for _, m := range c.bcMasks {
		fmt.Fprintf(&b, " BC mask: %s bcs:%d\n", m.Name, m.Count())
	}
	fmt.Fprintf(&b, "CTP generators: %d\n", len(c.generators))
	for _, g := range c.generators {
		fmt.Fprintf(&b, " Generator: %s frequency:%s\n", g.Name, g.Frequency)
	}
	fmt.Fprintf(&b, "CTP inputs: %d\n", len(c.inputs))
	for _, inp := range c.inputs {
		fmt.Fprintf(&b, " Input: %s detector:%s level:%s mask:0x%x\n", inp.Name, inp.DetectorName, inp.Level, inp.Mask)
	}
	fmt.Fprintf(&b, "CTP descriptors: %d\n", len(c.descriptors))
	for _, d := range c.descriptors {
		fmt.Fprintf(&b, " Descriptor: %s inputs:%s mask:0x%x\n", d.Name, strings.Join(d.InputNames(), ","), d.InputsMask())
	}
	fmt.Fprintf(&b, "CTP detectors: %d\n", len(c.detectors))
	for _, d := range c.detectors {
		fmt.Fprintf(&b, " Detector: %s id:%d hbaccepted:%t mode:%s ferst:%t\n", d.Name, d.ID, d.HBAccepted, d.Mode, d.FErst)
	}
	fmt.Fprintf(&b, "CTP clusters: %d\n", len(c.clusters))
	for _, cl := range c.clusters {
		fmt.Fprintf(&b, " Cluster: %s detectors:%s hwmask:0x%x mask:0x%x\n", cl.Name, strings.Join(cl.Detectors, ","), cl.HWMask, cl.DetectorMask)
	}
	fmt.Fprintf(&b, "CTP classes: %d\n", len(c.classes))
	for _, cls := range c.classes {
		fmt.Fprintf(&b, " Class: %s index:%d descriptor:%s cluster:%s\n", cls.Name, cls.Index(), descriptorName(cls.Descriptor), clusterName(cls.Cluster))
	}

	return b.WriteTo(w)
}

// String returns the WriteTo dump.
func (c *Configuration) String() string {
	var sb strings.Builder
	_, _ = c.WriteTo(&sb)
	return sb.String()
}

func descriptorName(d *Descriptor) string {
	if d == nil {
		return "-"
	}
	return d.Name
}

func clusterName(cl *Cluster) string {
	if cl == nil {
		return "-"
	}
	return cl.Name
}
