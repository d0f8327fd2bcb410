package x86level

import (
	"github.com/klauspost/cpuid/v2"
)

// cpuidFlags translates CPUID feature IDs into the spellings the kernel uses
// in /proc/cpuinfo, so both sources feed the same feature table.
var cpuidFlags = map[cpuid.FeatureID]string{
	cpuid.CMOV:     "cmov",
	cpuid.CMPXCHG8: "cx8",
	cpuid.X87:      "fpu",
	cpuid.FXSR:     "fxsr",
	cpuid.FXSROPT:  "fxsr_opt",
	cpuid.MMX:      "mmx",
	cpuid.MMXEXT:   "mmxext",
	cpuid.SYSCALL:  "syscall",
	cpuid.SSE:      "sse",
	cpuid.SSE2:     "sse2",
	cpuid.CX16:     "cx16",
	cpuid.LAHF:     "lahf_lm",
	cpuid.POPCNT:   "popcnt",
	cpuid.SSE3:     "pni",
	cpuid.SSSE3:    "ssse3",
	cpuid.SSE4:     "sse4_1",
	cpuid.SSE42:    "sse4_2",
	cpuid.AVX:      "avx",
	cpuid.AVX2:     "avx2",
	cpuid.BMI1:     "bmi1",
	cpuid.BMI2:     "bmi2",
	cpuid.F16C:     "f16c",
	cpuid.FMA3:     "fma",
	cpuid.LZCNT:    "abm",
	cpuid.MOVBE:    "movbe",
	cpuid.OSXSAVE:  "xsave",
	cpuid.AVX512BW: "avx512bw",
	cpuid.AVX512CD: "avx512cd",
	cpuid.AVX512DQ: "avx512dq",
	cpuid.AVX512F:  "avx512f",
	cpuid.AVX512VL: "avx512vl",
}

// cpuidHas reports whether the CPU has a feature. Replaced in tests.
var cpuidHas = func(id cpuid.FeatureID) bool {
	return cpuid.CPU.Has(id)
}

// flagsFromCPUID builds a FlagSet from the CPUID instruction.
// On non-x86 hosts no feature is reported and the set is empty.
func flagsFromCPUID() FlagSet {
	flags := FlagSet{}
	for id, token := range cpuidFlags {
		if cpuidHas(id) {
			flags[token] = struct{}{}
		}
	}
	return flags
}

// cpuBrand returns the CPU brand string reported by CPUID, if any.
func cpuBrand() string {
	return cpuid.CPU.BrandName
}

// cpuidLevel returns the microarchitecture level CPUID reports on its own
// (0 when unknown). Used as a cross-check in diagnostics.
func cpuidLevel() int {
	return cpuid.CPU.X64Level()
}
