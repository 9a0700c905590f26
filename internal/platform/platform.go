// Package platform detects the host environment where it changes how
// agent-watch talks to the desktop: WSL has no D-Bus appearance portal and
// network mounts drop fsnotify events.
package platform

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
)

// Kind is the detected host.
type Kind string

const (
	MacOS   Kind = "macos"
	Linux   Kind = "linux"
	WSL     Kind = "wsl"
	Windows Kind = "windows"
	Unknown Kind = "unknown"
)

func (k Kind) String() string {
	switch k {
	case MacOS:
		return "macOS"
	case Linux:
		return "Linux"
	case WSL:
		return "WSL"
	case Windows:
		return "Windows"
	default:
		return "Unknown"
	}
}

var (
	detectOnce sync.Once
	detected   Kind
)

// Detect returns the host kind, computed once per process.
func Detect() Kind {
	detectOnce.Do(func() {
		procVersion, _ := os.ReadFile("/proc/version")
		detected = classify(runtime.GOOS, string(procVersion), os.Getenv("WSL_DISTRO_NAME") != "")
	})
	return detected
}

func classify(goos, procVersion string, wslEnv bool) Kind {
	switch goos {
	case "darwin":
		return MacOS
	case "windows":
		return Windows
	case "linux":
		if wslEnv || strings.Contains(strings.ToLower(procVersion), "microsoft") {
			return WSL
		}
		return Linux
	}
	return Unknown
}

// IsWSL reports whether we run under the Windows Subsystem for Linux.
func IsWSL() bool {
	return Detect() == WSL
}

// SupportsThemeDetection reports whether the OS light/dark setting can be
// queried. Under WSL the query blocks on a missing session bus.
func SupportsThemeDetection() bool {
	switch Detect() {
	case MacOS, Windows, Linux:
		return true
	}
	return false
}

// WatchWarning returns a message when path lives on a filesystem that does
// not deliver fsnotify events reliably, or "" when watching should work.
func WatchWarning(path string) string {
	if runtime.GOOS != "linux" {
		return ""
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return ""
	}
	mounts, err := os.ReadFile("/proc/mounts")
	if err != nil {
		return ""
	}
	return warningFor(mountFSType(string(mounts), abs))
}

// mountFSType returns the filesystem type of the longest mount point
// containing path, parsed from /proc/mounts content.
func mountFSType(mounts, path string) string {
	var best, fsType string
	for _, line := range strings.Split(mounts, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		mp := fields[1]
		if !withinMount(path, mp) || len(mp) <= len(best) {
			continue
		}
		best, fsType = mp, fields[2]
	}
	return fsType
}

func withinMount(path, mountPoint string) bool {
	if mountPoint == "/" {
		return strings.HasPrefix(path, "/")
	}
	return path == mountPoint || strings.HasPrefix(path, mountPoint+"/")
}

func warningFor(fsType string) string {
	switch {
	case fsType == "9p":
		return "Config is on a 9p mount (WSL Windows drive): live reload is off, restart to apply changes"
	case fsType == "nfs" || fsType == "nfs4":
		return "Config is on NFS: live reload may miss changes"
	case fsType == "cifs" || fsType == "smbfs":
		return "Config is on CIFS/SMB: live reload may miss changes"
	case strings.HasPrefix(fsType, "fuse.sshfs"):
		return "Config is on SSHFS: live reload is off, restart to apply changes"
	}
	return ""
}
