//go:build !linux

package x86level

// kernelRelease returns an empty string: only Linux exposes /proc/cpuinfo
// and a kernel release worth reporting.
func kernelRelease() string {
	return ""
}
