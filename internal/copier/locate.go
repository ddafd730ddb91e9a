package copier

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/robocurse/robocurse/internal/roboerr"
)

// Locate resolves the copier executable path (spec §6 "Copier binary
// (consumed)"): an explicit override first, then the platform system
// directory, then PATH. Callers resolve once at startup and hold onto
// the result rather than calling this per chunk.
func Locate(override string) (string, error) {
	if override != "" {
		if _, err := os.Stat(override); err == nil {
			return override, nil
		}
		if p, err := exec.LookPath(override); err == nil {
			return p, nil
		}
		return "", roboerr.New(roboerr.CopierNotFound, component, "copier override path not found: "+override)
	}

	if runtime.GOOS == "windows" {
		sysRoot := os.Getenv("SystemRoot")
		if sysRoot == "" {
			sysRoot = `C:\Windows`
		}
		sysPath := filepath.Join(sysRoot, "System32", "robocopy.exe")
		if _, err := os.Stat(sysPath); err == nil {
			return sysPath, nil
		}
	}

	if p, err := exec.LookPath("robocopy"); err == nil {
		return p, nil
	}

	return "", roboerr.New(roboerr.CopierNotFound, component, "robocopy not found via override, system directory, or PATH")
}
