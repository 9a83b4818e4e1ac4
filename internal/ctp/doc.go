// Package ctp holds the trigger configuration model: bunch-crossing masks,
// generators, inputs, descriptors, detector participation records, clusters
// and trigger classes.
//
// A Configuration is built once by a parser (see internal/cfgparse) and is
// read-only afterwards, apart from the run number stamped by the tracker.
// Collections are append-only and searched linearly; they hold tens of
// entries.
//
// Descriptors reference Inputs, and Classes reference a Descriptor and a
// Cluster, by pointer. A referenced entity must already be in the same
// Configuration when the referrer is added.
package ctp
