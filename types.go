package x86level

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

var (
	// ErrUnknownFeature is returned when a [Feature] is not registered in the feature table.
	ErrUnknownFeature = errors.New("unknown feature")
	// ErrUnknownLevel is returned when a [Level] is not registered in the level table.
	ErrUnknownLevel = errors.New("unknown level")
	// ErrNoLevelSupported is returned by [Select] when no level is satisfied.
	ErrNoLevelSupported = errors.New("no x86-64 microarchitecture level supported")
)

// LevelError represents a microarchitecture level the host does not satisfy.
type LevelError struct {
	Level   Level
	Missing []Feature
	Err     error
}

func (e *LevelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("level %s: %v", e.Level, e.Err)
	}
	names := make([]string, 0, len(e.Missing))
	for _, f := range e.Missing {
		names = append(names, f.String())
	}
	return fmt.Sprintf("level %s: missing %s", e.Level, strings.Join(names, ", "))
}

func (e *LevelError) Unwrap() error {
	return e.Err
}

// FlagSet is the set of CPU flag tokens reported for the host (e.g. "sse4_2").
// It is built once per probe and must be treated as read-only afterwards.
type FlagSet map[string]struct{}

// NewFlagSet returns a FlagSet holding the given tokens.
func NewFlagSet(tokens ...string) FlagSet {
	s := make(FlagSet, len(tokens))
	for _, t := range tokens {
		if t == "" {
			continue
		}
		s[t] = struct{}{}
	}
	return s
}

// Has reports whether the token is in the set.
func (s FlagSet) Has(token string) bool {
	_, ok := s[token]
	return ok
}

// Len returns the number of tokens in the set.
func (s FlagSet) Len() int {
	return len(s)
}

// Sorted returns the tokens in lexical order.
func (s FlagSet) Sorted() []string {
	return slices.Sorted(maps.Keys(s))
}

// Feature represents an abstract CPU capability required by a microarchitecture level.
// A feature is satisfied when any of its flag spellings is reported (see [Feature.Flags]).
type Feature int

const (
	// FeatureCMOV requires conditional move instructions.
	FeatureCMOV Feature = iota
	// FeatureCMPXCHG8B requires the CMPXCHG8B instruction.
	FeatureCMPXCHG8B
	// FeatureFPU requires the x87 floating point unit.
	FeatureFPU
	// FeatureFXSR requires FXSAVE/FXRSTOR.
	FeatureFXSR
	// FeatureMMX requires MMX instructions.
	FeatureMMX
	// FeatureSCE requires SYSCALL/SYSRET.
	FeatureSCE
	// FeatureSSE requires SSE.
	FeatureSSE
	// FeatureSSE2 requires SSE2.
	FeatureSSE2
	// FeatureCMPXCHG16B requires the CMPXCHG16B instruction.
	FeatureCMPXCHG16B
	// FeatureLAHF requires LAHF/SAHF in 64-bit mode.
	FeatureLAHF
	// FeaturePOPCNT requires the POPCNT instruction.
	FeaturePOPCNT
	// FeatureSSE3 requires SSE3.
	FeatureSSE3
	// FeatureSSE41 requires SSE4.1.
	FeatureSSE41
	// FeatureSSE42 requires SSE4.2.
	FeatureSSE42
	// FeatureSSSE3 requires supplemental SSE3.
	FeatureSSSE3
	// FeatureAVX requires AVX.
	FeatureAVX
	// FeatureAVX2 requires AVX2.
	FeatureAVX2
	// FeatureBMI1 requires bit manipulation instruction set 1.
	FeatureBMI1
	// FeatureBMI2 requires bit manipulation instruction set 2.
	FeatureBMI2
	// FeatureF16C requires half-precision conversion instructions.
	FeatureF16C
	// FeatureFMA requires fused multiply-add (FMA3).
	FeatureFMA
	// FeatureLZCNT requires the LZCNT instruction.
	FeatureLZCNT
	// FeatureMOVBE requires the MOVBE instruction.
	FeatureMOVBE
	// FeatureOSXSAVE requires XSAVE enabled by the OS.
	FeatureOSXSAVE
	// FeatureAVX512BW requires AVX-512 byte and word instructions.
	FeatureAVX512BW
	// FeatureAVX512CD requires AVX-512 conflict detection.
	FeatureAVX512CD
	// FeatureAVX512DQ requires AVX-512 doubleword and quadword instructions.
	FeatureAVX512DQ
	// FeatureAVX512F requires the AVX-512 foundation.
	FeatureAVX512F
	// FeatureAVX512VL requires AVX-512 vector length extensions.
	FeatureAVX512VL
)

var featureNames = map[Feature]string{
	FeatureCMOV:       "CMOV",
	FeatureCMPXCHG8B:  "CMPXCHG8B",
	FeatureFPU:        "FPU",
	FeatureFXSR:       "FXSR",
	FeatureMMX:        "MMX",
	FeatureSCE:        "SCE",
	FeatureSSE:        "SSE",
	FeatureSSE2:       "SSE2",
	FeatureCMPXCHG16B: "CMPXCHG16B",
	FeatureLAHF:       "LAHF",
	FeaturePOPCNT:     "POPCNT",
	FeatureSSE3:       "SSE3",
	FeatureSSE41:      "SSE4-1",
	FeatureSSE42:      "SSE4-2",
	FeatureSSSE3:      "SSSE3",
	FeatureAVX:        "AVX",
	FeatureAVX2:       "AVX2",
	FeatureBMI1:       "BMI1",
	FeatureBMI2:       "BMI2",
	FeatureF16C:       "F16C",
	FeatureFMA:        "FMA",
	FeatureLZCNT:      "LZCNT",
	FeatureMOVBE:      "MOVBE",
	FeatureOSXSAVE:    "OSXSAVE",
	FeatureAVX512BW:   "AVX512BW",
	FeatureAVX512CD:   "AVX512CD",
	FeatureAVX512DQ:   "AVX512DQ",
	FeatureAVX512F:    "AVX512F",
	FeatureAVX512VL:   "AVX512VL",
}

func (f Feature) String() string {
	if name, ok := featureNames[f]; ok {
		return name
	}
	return fmt.Sprintf("Feature(%d)", f)
}

// FeatureValues returns all features in declaration order.
func FeatureValues() []Feature {
	return slices.Sorted(maps.Keys(featureNames))
}

// FeatureNames returns the names of all features in declaration order.
func FeatureNames() []string {
	values := FeatureValues()
	names := make([]string, 0, len(values))
	for _, f := range values {
		names = append(names, f.String())
	}
	return names
}

// ParseFeature returns the feature with the given name, ignoring case.
func ParseFeature(name string) (Feature, error) {
	for f, n := range featureNames {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return f, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownFeature, name)
}

// Level represents an x86-64 microarchitecture level.
// Levels are totally ordered by increasing strictness.
type Level int

const (
	// LevelBaseline is the original x86-64 baseline.
	LevelBaseline Level = iota
	// LevelV2 is x86-64-v2.
	LevelV2
	// LevelV3 is x86-64-v3.
	LevelV3
	// LevelV4 is x86-64-v4.
	LevelV4
)

var levelNames = map[Level]string{
	LevelBaseline: "x86-64",
	LevelV2:       "x86-64-v2",
	LevelV3:       "x86-64-v3",
	LevelV4:       "x86-64-v4",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("Level(%d)", l)
}

// LevelValues returns all levels by increasing strictness.
func LevelValues() []Level {
	return slices.Sorted(maps.Keys(levelNames))
}

// LevelNames returns the names of all levels by increasing strictness.
func LevelNames() []string {
	values := LevelValues()
	names := make([]string, 0, len(values))
	for _, l := range values {
		names = append(names, l.String())
	}
	return names
}

// ParseLevel returns the level with the given name, ignoring case.
func ParseLevel(name string) (Level, error) {
	for l, n := range levelNames {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return l, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownLevel, name)
}
