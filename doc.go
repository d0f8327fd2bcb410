// Package x86level detects the x86-64 microarchitecture level of the host CPU.
//
// It reads the CPU flags the kernel exposes in /proc/cpuinfo and compares them
// against the fixed requirement lists of the x86-64 psABI levels:
// x86-64 (baseline), x86-64-v2, x86-64-v3 and x86-64-v4. Build and deployment
// tooling uses the result to pick the binary variant built for the running
// machine.
//
// # Quick Start
//
// Print the strictest level the host supports:
//
//	hf, err := x86level.Probe()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	out, err := x86level.Select(hf.Levels, x86level.ModeHighest)
//	if errors.Is(err, x86level.ErrNoLevelSupported) {
//	    log.Fatal("old or unusual hardware")
//	}
//	fmt.Println(out) // e.g. x86-64-v3
//
// # Model
//
// A [FlagSet] holds the raw tokens reported by the kernel (e.g. "sse4_2").
// Tokens of every "flags" line are merged, so a flag reported by any logical
// CPU counts.
//
// A [Feature] is an abstract capability (e.g. SSE4-2) satisfied by any of its
// registered flag spellings, see [Feature.Flags]. Some capabilities have more
// than one spelling: POPCNT is reported as "popcnt" or, on older AMD parts,
// only as "abm".
//
// A [Level] requires all of its features. [SupportedLevels] evaluates every
// level independently, so a partial flag report never shifts the result to a
// level it does not fully satisfy.
//
// # Errors
//
// Asking about a feature or level that is not in the static tables fails with
// an error wrapping [ErrUnknownFeature] or [ErrUnknownLevel], never with a
// silent false. An unreadable /proc/cpuinfo is not an error: the probe
// reports it in [HostFeatures.SourceError] and no level is satisfied.
package x86level
