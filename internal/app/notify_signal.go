package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// TouchNotifySignal stamps the signal file with the store revision and the
// write time, so watchers in other processes see every write even when the
// revision repeats after a restart. An empty path is a no-op.
func TouchNotifySignal(signalPath string, revision int64) error {
	if signalPath == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(signalPath), 0755); err != nil {
		return fmt.Errorf("create signal file dir: %w", err)
	}
	stamp := fmt.Sprintf("%d %d", revision, time.Now().UnixNano())
	if err := os.WriteFile(signalPath, []byte(stamp), 0644); err != nil {
		return fmt.Errorf("write signal file: %w", err)
	}
	return nil
}

// ReadNotifySignal returns the current stamp, or "" when the file is missing.
func ReadNotifySignal(signalPath string) string {
	if signalPath == "" {
		return ""
	}
	data, err := os.ReadFile(signalPath)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
