package x86level

import (
	"fmt"
	"slices"
)

// featureFlags maps each feature to the flag spellings that satisfy it.
// Kernels and vendors report some capabilities under more than one name;
// any listed spelling is enough.
var featureFlags = map[Feature][]string{
	FeatureAVX2:       {"avx2"},
	FeatureAVX512BW:   {"avx512bw"},
	FeatureAVX512CD:   {"avx512cd"},
	FeatureAVX512DQ:   {"avx512dq"},
	FeatureAVX512F:    {"avx512f"},
	FeatureAVX512VL:   {"avx512vl"},
	FeatureAVX:        {"avx"},
	FeatureBMI1:       {"bmi1"},
	FeatureBMI2:       {"bmi2"},
	FeatureCMOV:       {"cmov"},
	FeatureCMPXCHG16B: {"cx16"},
	FeatureCMPXCHG8B:  {"cx8"},
	FeatureF16C:       {"f16c"},
	FeatureFMA:        {"fma"},
	FeatureFPU:        {"fpu"},
	FeatureFXSR:       {"fxsr", "fxsr_opt"},
	FeatureLAHF:       {"lahf_lm"},
	FeatureLZCNT:      {"abm"},
	FeatureMMX:        {"mmx", "mmxext"},
	FeatureMOVBE:      {"movbe"},
	FeatureOSXSAVE:    {"xsave"},
	FeaturePOPCNT:     {"popcnt", "abm"},
	FeatureSCE:        {"syscall"},
	FeatureSSE2:       {"sse2"},
	FeatureSSE3:       {"sse3", "ssse3", "pni"},
	FeatureSSE41:      {"sse4_1"},
	FeatureSSE42:      {"sse4_2"},
	FeatureSSE:        {"sse"},
	FeatureSSSE3:      {"ssse3"},
}

// Flags returns the flag spellings accepted for the feature,
// or nil if the feature is unknown.
func (f Feature) Flags() []string {
	return slices.Clone(featureFlags[f])
}

// Supports reports whether any flag spelling registered for f is in flags.
// It returns an error wrapping [ErrUnknownFeature] if f has no registered spellings,
// which is distinct from the feature being absent.
func Supports(flags FlagSet, f Feature) (bool, error) {
	_, ok, err := matchFlag(flags, f)
	return ok, err
}

// MatchedFlag returns the first registered spelling of f present in flags.
// The second value is false when f is unknown or not present.
func MatchedFlag(flags FlagSet, f Feature) (string, bool) {
	flag, ok, err := matchFlag(flags, f)
	if err != nil {
		return "", false
	}
	return flag, ok
}

func matchFlag(flags FlagSet, f Feature) (string, bool, error) {
	spellings, known := featureFlags[f]
	if !known || len(spellings) == 0 {
		return "", false, fmt.Errorf("%w: %s", ErrUnknownFeature, f)
	}
	for _, s := range spellings {
		if flags.Has(s) {
			return s, true, nil
		}
	}
	return "", false, nil
}
