//go:build fyne && !cgo

package ui

import "fmt"

// Run reports that the fyne host needs cgo for OpenGL.
func Run(_ string) error {
	return fmt.Errorf("Fyne UI requires cgo (OpenGL). Enable cgo and install a C toolchain. On Windows: install MSYS2/MinGW-w64, ensure gcc is on PATH, then run with CGO_ENABLED=1. Example: CGO_ENABLED=1 go run -tags fyne ./cmd/parsec ui [url]")
}
