package cfgparse

import (
	"fmt"

	"github.com/roach88/ctprun/internal/ctp"
)

// Link completes pending classes from the inferred dialect.
//
// Fields of a pending class are read as "<name> [<descriptor> ...]". A
// missing name becomes "class<index>". A descriptor that is not in cfg
// leaves the class with a nil Descriptor and yields a warning; the class is
// still added. Classes whose bit is already taken are dropped with a
// warning.
func Link(cfg *ctp.Configuration, pending []*PendingClass) []Diagnostic {
	var diags []Diagnostic
	warn := func(pc *PendingClass, format string, args ...any) {
		diags = append(diags, Diagnostic{
			Line:     pc.Line,
			Content:  pc.Content,
			Severity: SeverityWarning,
			Message:  fmt.Sprintf(format, args...),
		})
	}

	for _, pc := range pending {
		mask, err := ctp.ClassMaskFromIndex(pc.Index)
		if err != nil {
			warn(pc, "%v", err)
			continue
		}
		cls := &ctp.Class{
			Name:    fmt.Sprintf("class%d", pc.Index),
			Mask:    mask,
			Cluster: pc.Cluster,
		}
		if len(pc.Fields) > 0 {
			cls.Name = pc.Fields[0]
		}
		if len(pc.Fields) > 1 {
			if desc, ok := cfg.DescriptorByName(pc.Fields[1]); ok {
				cls.Descriptor = desc
			} else {
				warn(pc, "class %q: descriptor %q unresolved", cls.Name, pc.Fields[1])
			}
		}
		if err := cfg.AddClass(cls); err != nil {
			warn(pc, "%v", err)
		}
	}
	return diags
}
