package x86level

import (
	"fmt"
	"slices"
	"strings"
)

// String returns a human-readable summary of the probe: every level with
// its verdict and, per required feature, the flag spelling that satisfied it.
func (hf *HostFeatures) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Source: %s", hf.Source)
	if hf.Path != "" {
		fmt.Fprintf(&b, " (%s)", hf.Path)
	}
	b.WriteString("\n")
	if hf.SourceError != nil {
		fmt.Fprintf(&b, "Source error: %v\n", hf.SourceError)
	}
	if hf.KernelVersion != "" {
		fmt.Fprintf(&b, "Kernel: %s\n", hf.KernelVersion)
	}
	if hf.CPUBrand != "" {
		fmt.Fprintf(&b, "CPU: %s\n", hf.CPUBrand)
	}
	fmt.Fprintf(&b, "Flags: %d\n", hf.Flags.Len())
	b.WriteString("\n")

	for _, l := range LevelValues() {
		writeLevel(&b, hf.Flags, l, slices.Contains(hf.Levels, l))
	}

	b.WriteString("\n")
	if highest, ok := hf.Highest(); ok {
		fmt.Fprintf(&b, "Highest level: %s\n", highest)
	} else {
		b.WriteString("Highest level: none\n")
	}
	if hf.CPUIDLevel > 0 {
		fmt.Fprintf(&b, "CPUID level: %s\n", Level(hf.CPUIDLevel-1))
	}

	return b.String()
}

func writeLevel(b *strings.Builder, flags FlagSet, l Level, supported bool) {
	fmt.Fprintf(b, "%s: %s\n", l, yesNo(supported))
	for _, f := range l.Features() {
		if flag, ok := MatchedFlag(flags, f); ok {
			fmt.Fprintf(b, "  %s: yes (%s)\n", f, flag)
		} else {
			fmt.Fprintf(b, "  %s: no (want %s)\n", f, strings.Join(f.Flags(), " | "))
		}
	}
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
