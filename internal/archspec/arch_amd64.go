//go:build amd64

package archspec

func host() *Arch { return AMD64() }
