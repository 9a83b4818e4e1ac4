package cli

import (
	"fmt"
	"strconv"
	"strings"
)

// FeedKind is the action named by a feed line.
type FeedKind int

const (
	FeedSkip FeedKind = iota
	FeedStart
	FeedScalers
	FeedStop
)

func (k FeedKind) String() string {
	switch k {
	case FeedStart:
		return "start"
	case FeedScalers:
		return "scalers"
	case FeedStop:
		return "stop"
	default:
		return "skip"
	}
}

// FeedCommand is one parsed line of a run feed.
//
// Feed lines:
//
//	start <run> <config-file>
//	scalers <timestamp> <counter>...
//	stop <run>
//
// Blank lines and lines starting with '#' are skipped.
type FeedCommand struct {
	Kind     FeedKind
	Line     int
	Run      uint32
	Path     string
	Snapshot string
}

// ParseFeedLine parses line n of a feed.
func ParseFeedLine(n int, line string) (FeedCommand, error) {
	line = strings.TrimSpace(line)
	cmd := FeedCommand{Line: n}
	if line == "" || line[0] == '#' {
		return cmd, nil
	}

	fields := strings.Fields(line)
	verb := fields[0]
	rest := strings.TrimSpace(line[len(verb):])
	fields = fields[1:]

	switch verb {
	case "start":
		if len(fields) != 2 {
			return cmd, fmt.Errorf("line %d: start needs <run> <config-file>, got %q", n, line)
		}
		run, err := parseRunNumber(fields[0])
		if err != nil {
			return cmd, fmt.Errorf("line %d: %w", n, err)
		}
		cmd.Kind, cmd.Run, cmd.Path = FeedStart, run, fields[1]
	case "stop":
		if len(fields) != 1 {
			return cmd, fmt.Errorf("line %d: stop needs <run>, got %q", n, line)
		}
		run, err := parseRunNumber(fields[0])
		if err != nil {
			return cmd, fmt.Errorf("line %d: %w", n, err)
		}
		cmd.Kind, cmd.Run = FeedStop, run
	case "scalers":
		if rest == "" {
			return cmd, fmt.Errorf("line %d: scalers line without snapshot", n)
		}
		cmd.Kind, cmd.Snapshot = FeedScalers, rest
	default:
		return cmd, fmt.Errorf("line %d: unknown feed verb %q", n, verb)
	}
	return cmd, nil
}

func parseRunNumber(s string) (uint32, error) {
	run, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("bad run number %q", s)
	}
	return uint32(run), nil
}
