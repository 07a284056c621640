package instance

import (
	"os"

	"github.com/angelmondragon/vouchernet-backend/pkg/env"
)

// GetID identifies the running process in logs and lock ownership.
// VOUCHERNET_INSTANCE_ID wins over the platform DYNO name, then the hostname.
func GetID() string {
	if id := env.First("VOUCHERNET_INSTANCE_ID", "DYNO"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
