// Package util holds small helpers shared across packages.
package util

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// FindBinary locates an external tool. Resolution order: the environment
// variable override, a copy next to the working directory, then PATH. The
// returned path is absolute except in the PATH case, where exec handles
// resolution.
func FindBinary(name, envVar string) (string, error) {
	if envVar != "" {
		if override := os.Getenv(envVar); override != "" {
			if isExecutable(override) {
				return override, nil
			}
			return "", fmt.Errorf("%s points to %q which is not an executable file", envVar, override)
		}
	}

	local := "./" + name
	if runtime.GOOS == "windows" {
		local += ".exe"
	}
	if isExecutable(local) {
		abs, err := filepath.Abs(local)
		if err == nil {
			return abs, nil
		}
		return local, nil
	}

	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("binary %q not found: %w", name, err)
	}
	return path, nil
}

// isExecutable reports whether path is a regular file with an execute bit.
// On windows the execute bit is meaningless, so existence is enough.
func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode()&0o111 != 0
}
