package orchestrator

import (
	"fmt"
	"sort"
)

// Problem 偏好配置问题类别
type Problem string

const (
	ProblemUnregistered      Problem = "unregistered"
	ProblemUnsupported       Problem = "unsupported"
	ProblemUnknownCapability Problem = "unknown capability"
)

// Warning flags one preference entry that can never succeed as configured.
type Warning struct {
	Capability string    `json:"capability"`
	Provider   string    `json:"provider"`
	Operation  Operation `json:"operation,omitempty"`
	Problem    Problem   `json:"problem"`
}

func (w Warning) String() string {
	switch w.Problem {
	case ProblemUnregistered:
		return fmt.Sprintf("%s: provider %q is not registered", w.Capability, w.Provider)
	case ProblemUnsupported:
		return fmt.Sprintf("%s: provider %q does not support %s", w.Capability, w.Provider, w.Operation)
	default:
		return fmt.Sprintf("%s: unknown capability", w.Capability)
	}
}

// ValidatePreferences checks every preference list against the registry.
// Nothing is mutated; the result is ordered by capability and then list order.
func ValidatePreferences(reg *Registry, prefs map[string][]string) []Warning {
	providers := reg.snapshot()

	capabilities := make([]string, 0, len(prefs))
	for c := range prefs {
		capabilities = append(capabilities, c)
	}
	sort.Strings(capabilities)

	var warnings []Warning
	for _, capability := range capabilities {
		ops, known := CapabilityOperations[capability]
		if !known {
			warnings = append(warnings, Warning{Capability: capability, Problem: ProblemUnknownCapability})
			continue
		}
		for _, name := range prefs[capability] {
			p, ok := providers[name]
			if !ok {
				warnings = append(warnings, Warning{Capability: capability, Provider: name, Problem: ProblemUnregistered})
				continue
			}
			for _, op := range ops {
				if !p.Operations().Has(op) {
					warnings = append(warnings, Warning{
						Capability: capability,
						Provider:   name,
						Operation:  op,
						Problem:    ProblemUnsupported,
					})
				}
			}
		}
	}
	return warnings
}

// LogWarnings reports each warning through l and returns how many there were.
func LogWarnings(l Logger, warnings []Warning) int {
	if l == nil {
		l = nopLogger{}
	}
	for _, w := range warnings {
		l.WarnTag(logTag, "偏好配置: %s", w.String())
	}
	return len(warnings)
}
