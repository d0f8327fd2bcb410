package x86level

import (
	"fmt"
	"slices"
)

// levelRequirements pairs a level with the features it requires.
type levelRequirements struct {
	level    Level
	features []Feature
}

// levelTable lists every level by increasing strictness.
// Requirement lists are per level, not cumulative.
var levelTable = []levelRequirements{
	{
		level: LevelBaseline,
		features: []Feature{
			FeatureCMOV,
			FeatureCMPXCHG8B,
			FeatureFPU,
			FeatureFXSR,
			FeatureMMX,
			FeatureSCE,
			FeatureSSE,
			FeatureSSE2,
		},
	},
	{
		level: LevelV2,
		features: []Feature{
			FeatureCMPXCHG16B,
			FeatureLAHF,
			FeaturePOPCNT,
			FeatureSSE3,
			FeatureSSE41,
			FeatureSSE42,
			FeatureSSSE3,
		},
	},
	{
		level: LevelV3,
		features: []Feature{
			FeatureAVX,
			FeatureAVX2,
			FeatureBMI1,
			FeatureBMI2,
			FeatureF16C,
			FeatureFMA,
			FeatureLZCNT,
			FeatureMOVBE,
			FeatureOSXSAVE,
		},
	},
	{
		level: LevelV4,
		features: []Feature{
			FeatureAVX512BW,
			FeatureAVX512CD,
			FeatureAVX512DQ,
			FeatureAVX512F,
			FeatureAVX512VL,
		},
	},
}

func init() {
	if err := validateTables(levelTable, featureFlags); err != nil {
		panic(err)
	}
}

// validateTables checks that the level table is strictly ordered and that
// every feature it references has at least one flag spelling.
func validateTables(levels []levelRequirements, flags map[Feature][]string) error {
	for i, lr := range levels {
		if i > 0 && lr.level <= levels[i-1].level {
			return fmt.Errorf("level table: %s listed after %s", lr.level, levels[i-1].level)
		}
		if len(lr.features) == 0 {
			return fmt.Errorf("level table: %s has no required features", lr.level)
		}
		for _, f := range lr.features {
			if len(flags[f]) == 0 {
				return fmt.Errorf("level table: %s requires %w: %s", lr.level, ErrUnknownFeature, f)
			}
		}
	}
	return nil
}

func requirementsFor(l Level) ([]Feature, error) {
	for _, lr := range levelTable {
		if lr.level == l {
			return lr.features, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownLevel, l)
}

// Features returns the features required by the level, or nil if the level is unknown.
func (l Level) Features() []Feature {
	features, err := requirementsFor(l)
	if err != nil {
		return nil
	}
	return slices.Clone(features)
}

// IsSupported reports whether flags satisfy every feature required by l.
// It returns an error wrapping [ErrUnknownLevel] if l is not registered.
func IsSupported(flags FlagSet, l Level) (bool, error) {
	missing, err := Missing(flags, l)
	if err != nil {
		return false, err
	}
	return len(missing) == 0, nil
}

// Missing returns the features required by l that flags do not satisfy,
// in table order.
func Missing(flags FlagSet, l Level) ([]Feature, error) {
	features, err := requirementsFor(l)
	if err != nil {
		return nil, err
	}
	var missing []Feature
	for _, f := range features {
		ok, err := Supports(flags, f)
		if err != nil {
			return nil, fmt.Errorf("level %s: %w", l, err)
		}
		if !ok {
			missing = append(missing, f)
		}
	}
	return missing, nil
}

// Check returns nil if flags satisfy l, or a *[LevelError] listing the
// missing features otherwise.
func Check(flags FlagSet, l Level) error {
	missing, err := Missing(flags, l)
	if err != nil {
		return &LevelError{Level: l, Err: err}
	}
	if len(missing) > 0 {
		return &LevelError{Level: l, Missing: missing}
	}
	return nil
}

// SupportedLevels returns every level satisfied by flags, by increasing strictness.
//
// Each level is evaluated on its own: a flag report that misses a lower-level
// feature but carries all of a higher level's features yields the higher level
// without the lower one.
func SupportedLevels(flags FlagSet) []Level {
	var levels []Level
	for _, lr := range levelTable {
		ok, err := IsSupported(flags, lr.level)
		if err != nil {
			// Tables are validated at init.
			panic(err)
		}
		if ok {
			levels = append(levels, lr.level)
		}
	}
	return levels
}
