package appointment

import "fmt"

// Status is the lifecycle state of a counselling session.
type Status uint8

const (
	StatusUnknown Status = iota
	StatusPending
	StatusConfirmed
	StatusCancelled
)

var statusLabels = map[Status]string{
	StatusUnknown:   "unknown",
	StatusPending:   "pending",
	StatusConfirmed: "confirmed",
	StatusCancelled: "cancelled",
}

func (s Status) String() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return statusLabels[StatusUnknown]
}

func ParseStatus(label string) (Status, bool) {
	for s, l := range statusLabels {
		if l == label && s != StatusUnknown {
			return s, true
		}
	}
	return StatusUnknown, false
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Status) UnmarshalText(b []byte) error {
	*s, _ = ParseStatus(string(b))
	return nil
}

// IsTerminal reports whether the appointment can no longer change.
func IsTerminal(s Status) bool {
	return s == StatusConfirmed || s == StatusCancelled
}

// CanTransition allows pending -> confirmed and pending -> cancelled only.
func CanTransition(from, to Status) error {
	if from == StatusPending && (to == StatusConfirmed || to == StatusCancelled) {
		return nil
	}
	return fmt.Errorf("invalid appointment transition %s -> %s", from, to)
}

// Type is where the session takes place.
type Type uint8

const (
	TypeUnknown Type = iota
	TypeOnCampus
	TypeOnline
)

var typeLabels = map[Type]string{
	TypeUnknown:  "unknown",
	TypeOnCampus: "oncampus",
	TypeOnline:   "online",
}

func (t Type) String() string {
	if l, ok := typeLabels[t]; ok {
		return l
	}
	return typeLabels[TypeUnknown]
}

func (t Type) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *Type) UnmarshalText(b []byte) error {
	*t = TypeUnknown
	for k, l := range typeLabels {
		if l == string(b) {
			*t = k
		}
	}
	return nil
}

// Display is the glyph and colour bucket a status renders as.
type Display struct {
	Icon  string `json:"icon"`
	Color string `json:"color"`
	Label string `json:"label"`
}

var displays = map[Status]Display{
	StatusPending:   {Icon: "hourglass", Color: "yellow", Label: "Pending"},
	StatusConfirmed: {Icon: "calendar-check", Color: "green", Label: "Confirmed"},
	StatusCancelled: {Icon: "calendar-x", Color: "red", Label: "Cancelled"},
}

func DisplayOf(s Status) Display {
	if d, ok := displays[s]; ok {
		return d
	}
	return Display{Icon: "clock", Color: "gray", Label: "Unknown"}
}
