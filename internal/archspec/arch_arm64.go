//go:build arm64

package archspec

func host() *Arch { return ARM64() }
