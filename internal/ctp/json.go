package ctp

import "encoding/json"

// The JSON form replaces entity pointers with names so a configuration can
// be archived and read back by other tools.

type bcMaskJSON struct {
	Name string   `json:"name"`
	BCs  []uint32 `json:"bcs"`
}

type inputJSON struct {
	Name     string `json:"name"`
	Detector string `json:"detector"`
	Level    string `json:"level"`
	Mask     uint64 `json:"mask"`
}

type descriptorJSON struct {
	Name   string   `json:"name"`
	Inputs []string `json:"inputs"`
	Mask   uint64   `json:"mask"`
}

type detectorJSON struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	HBAccepted bool   `json:"hb_accepted"`
	Mode       string `json:"mode,omitempty"`
	FErst      bool   `json:"ferst"`
}

type clusterJSON struct {
	Name         string   `json:"name"`
	HWMask       uint64   `json:"hw_mask"`
	DetectorMask uint64   `json:"detector_mask"`
	Detectors    []string `json:"detectors"`
}

type classJSON struct {
	Name       string `json:"name"`
	Index      int    `json:"index"`
	Descriptor string `json:"descriptor,omitempty"`
	Cluster    string `json:"cluster,omitempty"`
}

type generatorJSON struct {
	Name      string `json:"name"`
	Frequency string `json:"frequency"`
}

type configurationJSON struct {
	Name        string           `json:"name"`
	Version     string           `json:"version"`
	RunNumber   uint32           `json:"run_number"`
	BCMasks     []bcMaskJSON     `json:"bc_masks"`
	Generators  []generatorJSON  `json:"generators"`
	Inputs      []inputJSON      `json:"inputs"`
	Descriptors []descriptorJSON `json:"descriptors"`
	Detectors   []detectorJSON   `json:"detectors"`
	Clusters    []clusterJSON    `json:"clusters"`
	Classes     []classJSON      `json:"classes"`
	ClassMask   uint64           `json:"class_mask"`
}

// MarshalJSON implements json.Marshaler.
func (c *Configuration) MarshalJSON() ([]byte, error) {
	out := configurationJSON{
		Name:        c.Name,
		Version:     c.Version,
		RunNumber:   c.RunNumber,
		BCMasks:     make([]bcMaskJSON, 0, len(c.bcMasks)),
		Generators:  make([]generatorJSON, 0, len(c.generators)),
		Inputs:      make([]inputJSON, 0, len(c.inputs)),
		Descriptors: make([]descriptorJSON, 0, len(c.descriptors)),
		Detectors:   make([]detectorJSON, 0, len(c.detectors)),
		Clusters:    make([]clusterJSON, 0, len(c.clusters)),
		Classes:     make([]classJSON, 0, len(c.classes)),
		ClassMask:   c.TriggerClassMask(),
	}
	for _, m := range c.bcMasks {
		out.BCMasks = append(out.BCMasks, bcMaskJSON{Name: m.Name, BCs: m.BCs()})
	}
	for _, g := range c.generators {
		out.Generators = append(out.Generators, generatorJSON{Name: g.Name, Frequency: g.Frequency})
	}
	for _, inp := range c.inputs {
		out.Inputs = append(out.Inputs, inputJSON{Name: inp.Name, Detector: inp.DetectorName, Level: inp.Level, Mask: inp.Mask})
	}
	for _, d := range c.descriptors {
		out.Descriptors = append(out.Descriptors, descriptorJSON{Name: d.Name, Inputs: d.InputNames(), Mask: d.InputsMask()})
	}
	for _, d := range c.detectors {
		out.Detectors = append(out.Detectors, detectorJSON{ID: int(d.ID), Name: d.Name, HBAccepted: d.HBAccepted, Mode: d.Mode, FErst: d.FErst})
	}
	for _, cl := range c.clusters {
		out.Clusters = append(out.Clusters, clusterJSON{Name: cl.Name, HWMask: cl.HWMask, DetectorMask: cl.DetectorMask, Detectors: cl.Detectors})
	}
	for _, cls := range c.classes {
		cj := classJSON{Name: cls.Name, Index: cls.Index()}
		if cls.Descriptor != nil {
			cj.Descriptor = cls.Descriptor.Name
		}
		if cls.Cluster != nil {
			cj.Cluster = cls.Cluster.Name
		}
		out.Classes = append(out.Classes, cj)
	}
	return json.Marshal(out)
}
