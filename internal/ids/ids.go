package ids

import "github.com/segmentio/ksuid"

// New returns a k-sortable unique identifier for sessions and audit entries.
func New() string {
	return ksuid.New().String()
}
