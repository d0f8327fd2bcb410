package x86level

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// DefaultCPUInfoPath is where the kernel exposes CPU flags.
const DefaultCPUInfoPath = "/proc/cpuinfo"

// Source selects where CPU flags are read from.
type Source int

const (
	// SourceProcfs reads flags from /proc/cpuinfo.
	SourceProcfs Source = iota
	// SourceCPUID queries the CPUID instruction directly.
	SourceCPUID
)

var sourceNames = map[Source]string{
	SourceProcfs: "procfs",
	SourceCPUID:  "cpuid",
}

func (s Source) String() string {
	if name, ok := sourceNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Source(%d)", s)
}

// ParseSource returns the source with the given name, ignoring case.
func ParseSource(name string) (Source, error) {
	for s, n := range sourceNames {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown source %q", name)
}

// HostFeatures holds the CPU flags of the host and the levels they satisfy.
type HostFeatures struct {
	// Source the flags were read from.
	Source Source
	// Path of the cpuinfo file (procfs source only).
	Path string
	// Flags reported by the source. Empty (never nil) when the source was unavailable.
	Flags FlagSet
	// SourceError is non-nil if the source could not be read.
	// An unavailable source is not fatal: no level is satisfied.
	SourceError error
	// Levels satisfied by Flags, by increasing strictness.
	Levels []Level

	// Metadata
	KernelVersion string
	CPUBrand      string
	// CPUIDLevel is the level CPUID reports on its own (0 if unknown).
	CPUIDLevel int
}

// Highest returns the strictest satisfied level.
// The second value is false when no level is satisfied.
func (hf *HostFeatures) Highest() (Level, bool) {
	if len(hf.Levels) == 0 {
		return 0, false
	}
	return hf.Levels[len(hf.Levels)-1], true
}

// Cache for Probe() results. CPU flags don't change at runtime.
var (
	cachedFeatures *HostFeatures
	cacheMu        sync.Mutex
	cacheErr       error
)

// probeConfig holds the configuration for a probe operation.
type probeConfig struct {
	source      Source
	cpuinfoPath string
	logger      *zap.Logger
}

// ProbeOption configures how flags are collected.
type ProbeOption func(*probeConfig)

// WithSource selects the flag source. Defaults to [SourceProcfs].
func WithSource(s Source) ProbeOption {
	return func(c *probeConfig) {
		c.source = s
	}
}

// WithCPUInfoPath sets a custom path for the cpuinfo file.
// This is primarily for testing; production code uses [DefaultCPUInfoPath].
func WithCPUInfoPath(path string) ProbeOption {
	return func(c *probeConfig) {
		c.cpuinfoPath = path
	}
}

// WithLogger sets the logger used while probing. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) ProbeOption {
	return func(c *probeConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// ProbeWith reads the host CPU flags and evaluates every level against them.
// A source that cannot be read is reported through [HostFeatures.SourceError]
// rather than an error; the returned error is reserved for invalid options.
func ProbeWith(opts ...ProbeOption) (*HostFeatures, error) {
	cfg := &probeConfig{
		source:      SourceProcfs,
		cpuinfoPath: DefaultCPUInfoPath,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	log := cfg.logger.With(zap.Stringer("source", cfg.source))

	hf := &HostFeatures{Source: cfg.source}

	switch cfg.source {
	case SourceProcfs:
		hf.Path = cfg.cpuinfoPath
		log.Debug("reading cpu flags", zap.String("path", hf.Path))
		hf.Flags, hf.SourceError = ReadFlags(hf.Path)
		if hf.SourceError != nil {
			log.Warn("cpu flags unavailable, assuming none", zap.Error(hf.SourceError))
		}
	case SourceCPUID:
		log.Debug("querying cpuid")
		hf.Flags = flagsFromCPUID()
	default:
		return nil, fmt.Errorf("probe: unknown source %s", cfg.source)
	}

	hf.Levels = SupportedLevels(hf.Flags)
	log.Debug("evaluated levels",
		zap.Int("flags", hf.Flags.Len()),
		zap.Stringers("levels", hf.Levels),
	)

	hf.KernelVersion = kernelRelease()
	hf.CPUBrand = cpuBrand()
	hf.CPUIDLevel = cpuidLevel()

	return hf, nil
}

// Probe reads the host CPU flags from /proc/cpuinfo and caches the result.
// Subsequent calls return the cached result without re-reading.
// Use [ProbeNoCache] if you need fresh results.
func Probe() (*HostFeatures, error) {
	cacheMu.Lock()
	defer cacheMu.Unlock()

	if cachedFeatures != nil || cacheErr != nil {
		return cachedFeatures, cacheErr
	}
	cachedFeatures, cacheErr = ProbeWith()
	return cachedFeatures, cacheErr
}

// ProbeNoCache reads the host CPU flags without using the cache.
func ProbeNoCache(opts ...ProbeOption) (*HostFeatures, error) {
	return ProbeWith(opts...)
}

// ResetCache clears cached probe results, forcing the next [Probe] call to re-read.
// This is primarily useful for testing.
func ResetCache() {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	cachedFeatures = nil
	cacheErr = nil
}
