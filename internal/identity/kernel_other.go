//go:build !unix

package identity

// Kernel is not reported on this platform.
func Kernel() string { return "" }
