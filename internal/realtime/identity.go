package realtime

import (
	"strings"

	"github.com/google/uuid"
)

const instanceIDLength = 9

// NewInstanceID returns a short random token identifying the running process.
func NewInstanceID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:instanceIDLength]
}
