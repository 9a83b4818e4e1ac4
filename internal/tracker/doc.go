// Package tracker keeps the set of live data-taking runs and retires them
// when they drop out of the periodic counter feed.
//
// A run is started with its configuration text (inferred dialect). Each
// counter snapshot names the currently active runs in a fixed block of
// slots; a live run that is missing from every slot in a snapshot is
// stopped. Stopping stamps the end time, hands the configuration and the
// collected scalers to the archive, and drops the run regardless of
// whether the archive accepted them.
//
// Tracker is safe for concurrent use: every operation holds one mutex, so
// a start and an observation for the same run are serialized.
package tracker
