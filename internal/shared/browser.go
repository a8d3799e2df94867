package shared

import (
	"fmt"
	"os/exec"
	"runtime"
)

var getRuntime = func() string { return runtime.GOOS }

var browserCommands = map[string][]string{
	"darwin":  {"open"},
	"linux":   {"xdg-open"},
	"windows": {"cmd", "/c", "start"},
}

// OpenBrowser starts the platform's URL opener on url without waiting for it.
//
// Used by `spotify auth` to show the consent page.
func OpenBrowser(url string) error {
	rt := getRuntime()
	argv, ok := browserCommands[rt]
	if !ok {
		return fmt.Errorf("%w: cannot open a browser on %s", ErrNotImplemented, rt)
	}

	args := append(append([]string{}, argv[1:]...), url)
	if err := exec.Command(argv[0], args...).Start(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}
