package util

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// DefaultDownloadDir is the platform's usual downloads directory, ~/Downloads on desktop systems.
func DefaultDownloadDir() (string, error) {
	if runtime.GOOS == "android" || os.Getenv("ANDROID_DATA") != "" {
		return "/sdcard/Download", nil
	}
	if dir := os.Getenv("XDG_DOWNLOAD_DIR"); dir != "" {
		return dir, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, "Downloads"), nil
}
