//go:build linux

package x86level

import "golang.org/x/sys/unix"

// kernelRelease returns the kernel release string (e.g., "6.1.0-generic").
func kernelRelease() string {
	var uname unix.Utsname
	if err := unix.Uname(&uname); err != nil {
		return ""
	}
	return unix.ByteSliceToString(uname.Release[:])
}
