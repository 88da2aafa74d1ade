package app

import (
	"fmt"
	"os"

	"github.com/google/uuid"
)

// GenerateInstanceID names this monitor instance for logs and events.
// The INSTANCE_ID environment variable wins; otherwise the id is
// derived from the hostname plus a short random suffix.
func GenerateInstanceID() string {
	if id := os.Getenv("INSTANCE_ID"); id != "" {
		return id
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	shortUUID := uuid.New().String()[:8]
	return fmt.Sprintf("rdz-monitor-%s-%s", hostname, shortUUID)
}
