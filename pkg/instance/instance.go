package instance

import (
	"os"
	"strings"

	"github.com/google/uuid"
)

// ID returns the configured instance identifier, or <hostname>-<random>
// when none is set. Bus relay messages are tagged with it so an instance
// can drop its own echoes.
func ID(configured string) string {
	if id := strings.TrimSpace(configured); id != "" {
		return id
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "licensedesk"
	}
	return host + "-" + uuid.NewString()[:8]
}
