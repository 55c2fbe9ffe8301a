// ABOUTME: Revision data model
// ABOUTME: One committed bundle of patch operations plus who/when/why metadata

package revision

import (
	"fmt"
	"strings"
	"time"

	"github.com/nainya/treeaudit/pkg/patch"
)

// PlaceholderMessage labels the synthetic revision shown for an empty history
const PlaceholderMessage = "No revisions yet"

// Revision represents one committed save of the document
type Revision struct {
	Version   int               `json:"version"`   // Monotonic, unique, starts at 1
	Timestamp time.Time         `json:"timestamp"` // Commit time
	Author    string            `json:"author"`    // User that committed
	Message   string            `json:"message"`   // Commit message
	Patch     []patch.Operation `json:"patch"`     // Ordered, immutable once committed
}

// Placeholder returns the synthetic version-0 revision that stands in for
// an empty history. It is never persisted.
func Placeholder() Revision {
	return Revision{Version: 0, Message: PlaceholderMessage}
}

// IsPlaceholder reports whether r is the synthetic empty-history revision
func (r Revision) IsPlaceholder() bool {
	return r.Version == 0
}

// SearchText is the lowercase metadata string matched by revision search
func (r Revision) SearchText() string {
	ts := ""
	if !r.Timestamp.IsZero() {
		ts = r.Timestamp.Format("2006-01-02 15:04:05")
	}
	return strings.ToLower(fmt.Sprintf("v%d %s %s %s", r.Version, ts, r.Author, r.Message))
}

// RevertResult reports the outcome of a revert request
type RevertResult struct {
	Success bool   `json:"success"`
	Version int    `json:"version,omitempty"` // Revision created by the revert
	Reason  string `json:"reason,omitempty"`
}
