package appconfig

import (
	"os"
	"os/exec"
	"runtime"
)

// DetectClient guesses the platform's remote-desktop client. Used to seed
// settings on first run and after a settings reset.
func DetectClient() string {
	return detectClientFor(runtime.GOOS, exec.LookPath, func(path string) bool {
		_, err := os.Stat(path)
		return err == nil
	})
}

func detectClientFor(goos string, look func(string) (string, error), exists func(string) bool) string {
	switch goos {
	case "windows":
		return "mstsc.exe"
	case "darwin":
		// The macOS launch chain opens the client by application name, so a
		// full path is never needed.
		if exists("/Applications/Microsoft Remote Desktop.app") {
			return "Microsoft Remote Desktop"
		}
		if exists("/Applications/Windows App.app") {
			return "Windows App"
		}
		return ""
	default:
		for _, client := range []string{"rdesktop", "xfreerdp"} {
			if path, err := look(client); err == nil && path != "" {
				return path
			}
		}
		return ""
	}
}
