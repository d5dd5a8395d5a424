// Package browser opens URLs in the user's default web browser.
package browser

import (
	"fmt"
	"os/exec"
	"runtime"

	log "github.com/sirupsen/logrus"
	"github.com/skratchdot/open-golang/open"
)

// linuxBrowsers lists fallback launchers in order of preference.
var linuxBrowsers = []string{"xdg-open", "x-www-browser", "www-browser", "firefox", "chromium", "google-chrome"}

// OpenURL opens rawURL in a new browser window or tab.
// It tries open-golang first and falls back to platform-specific commands.
func OpenURL(rawURL string) error {
	err := open.Start(rawURL)
	if err == nil {
		log.Debug("Opened URL using open-golang")
		return nil
	}

	log.Debugf("open-golang failed: %v, trying platform-specific commands", err)
	return openURLPlatformSpecific(rawURL)
}

func openURLPlatformSpecific(rawURL string) error {
	cmd, err := platformCommand(rawURL)
	if err != nil {
		return err
	}

	log.Debugf("Running command: %s %v", cmd.Path, cmd.Args[1:])
	if err = cmd.Start(); err != nil {
		return fmt.Errorf("failed to start browser command: %w", err)
	}
	return nil
}

func platformCommand(rawURL string) (*exec.Cmd, error) {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", rawURL), nil
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", rawURL), nil
	case "linux":
		for _, name := range linuxBrowsers {
			if _, err := exec.LookPath(name); err == nil {
				return exec.Command(name, rawURL), nil
			}
		}
		return nil, fmt.Errorf("no suitable browser found on Linux system")
	default:
		return nil, fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}
}

// IsAvailable reports whether a browser launcher exists on this system.
func IsAvailable() bool {
	switch runtime.GOOS {
	case "darwin":
		_, err := exec.LookPath("open")
		return err == nil
	case "windows":
		_, err := exec.LookPath("rundll32")
		return err == nil
	case "linux":
		for _, name := range linuxBrowsers {
			if _, err := exec.LookPath(name); err == nil {
				return true
			}
		}
		return false
	default:
		return false
	}
}
