// Package cfgparse turns trigger configuration text into a ctp.Configuration.
//
// Two dialects exist and the caller picks one; nothing is auto-detected.
//
// The explicit dialect (ParseExplicit) switches section on header lines
// such as "INPUTS:" and "CLASSES:". It expects machine-generated input and
// fails the whole parse on the first structural violation, returning a
// *ParseError that names the line and the rule.
//
// The inferred dialect (ParseInferred) has no headers. Each line's section
// is guessed from keywords, and the guess carries over to continuation
// lines. Malformed tokens and lines are reported as Diagnostics and skipped,
// never aborting the parse. The per-line transition is the pure function
// Step, so the state machine can be exercised one line at a time. Classes
// are built in two phases: Step records a PendingClass and Link resolves it
// once every line has been read.
package cfgparse
