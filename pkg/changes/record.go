// ABOUTME: Human-readable change records derived from patch operations
// ABOUTME: One record per surfaced operation, with a lowercase search string

package changes

import (
	"fmt"
	"strings"
)

// Class categorizes a rendered change
type Class uint8

const (
	ClassAdd Class = iota
	ClassRemove
	ClassReplace
	ClassMove
	ClassCopy
	ClassIgnore
	ClassError
)

var classNames = [...]string{
	ClassAdd:     "add",
	ClassRemove:  "remove",
	ClassReplace: "replace",
	ClassMove:    "move",
	ClassCopy:    "copy",
	ClassIgnore:  "ignore",
	ClassError:   "error",
}

func (c Class) String() string {
	if int(c) < len(classNames) {
		return classNames[c]
	}
	return "error"
}

// MarshalText implements encoding.TextMarshaler
func (c Class) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (c *Class) UnmarshalText(b []byte) error {
	for i, name := range classNames {
		if name == string(b) {
			*c = Class(i)
			return nil
		}
	}
	return fmt.Errorf("changes: unknown class %q", b)
}

// Change is what a handler produces for one operation
type Change struct {
	Action        string
	PreviousValue string
	CurrentValue  string
	Class         Class
}

// Record is a rendered change attributed to a revision author and time
type Record struct {
	Time          string `json:"time"`
	User          string `json:"user"`
	Action        string `json:"action"`
	PreviousValue string `json:"previousValue"`
	CurrentValue  string `json:"currentValue"`
	Class         Class  `json:"class"`
	SearchText    string `json:"searchText"`
}

func newRecord(time, user string, c Change) Record {
	r := Record{
		Time:          time,
		User:          user,
		Action:        c.Action,
		PreviousValue: c.PreviousValue,
		CurrentValue:  c.CurrentValue,
		Class:         c.Class,
	}
	r.SearchText = strings.ToLower(strings.Join([]string{
		r.Time, r.User, r.Action, r.PreviousValue, r.CurrentValue,
	}, " "))
	return r
}

// Matches reports whether the record's search text contains an already
// normalized query
func (r Record) Matches(query string) bool {
	return strings.Contains(r.SearchText, query)
}
