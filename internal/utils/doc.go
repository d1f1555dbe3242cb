// Package utils provides shared helper functions.
package utils

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// EnsureDir ensures a directory exists, creating it if necessary.
func EnsureDir(path string) (string, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return "", err
	}
	return path, nil
}

// Timestamp returns the current time as an RFC3339 UTC string, the format
// used for every persisted timestamp (memory records, queue rows, session
// tool-result entries).
func Timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// SafeFilename converts a string to a safe filename by replacing unsafe characters.
func SafeFilename(name string) string {
	unsafe := `<>:"/\|?*`
	for _, c := range unsafe {
		name = strings.ReplaceAll(name, string(c), "_")
	}
	return strings.TrimSpace(name)
}

// SplitSessionKey splits a resolved session key "agent:channel:peer" into its
// three parts. The peer segment may itself contain colons.
func SplitSessionKey(key string) (agent, channel, peer string, err error) {
	parts := strings.SplitN(key, ":", 3)
	if len(parts) != 3 {
		return "", "", "", &InvalidSessionKeyError{Key: key}
	}
	return parts[0], parts[1], parts[2], nil
}

// SessionKey joins a resolved agent, channel and peer into the canonical
// "agent:channel:peer" session key.
func SessionKey(agent, channel, peer string) string {
	return fmt.Sprintf("%s:%s:%s", agent, channel, peer)
}

// InvalidSessionKeyError is returned when a session key cannot be parsed.
type InvalidSessionKeyError struct {
	Key string
}

func (e *InvalidSessionKeyError) Error() string {
	return "invalid session key: " + e.Key
}
