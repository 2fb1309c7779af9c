package realtime

import (
	"encoding/json"
	"time"
)

// Event names shared by the client channel and the relay.
const (
	EventOrderUpdated         = "order:updated"
	EventAppointmentUpdated   = "appointment:updated"
	EventMessageNew           = "message:new"
	EventStudentStatus        = "student-status"
	EventCounselorOnline      = "counselor-online"
	EventCounselorOnVideoCall = "counselor-on-video_call"
)

// ClientEvents are the names a session may emit itself. The relay
// rebroadcasts only these.
var ClientEvents = map[string]bool{
	EventStudentStatus:        true,
	EventCounselorOnline:      true,
	EventCounselorOnVideoCall: true,
}

// Event is a named notification pushed by the relay. Data is whatever the
// producer attached; consumers must treat it as a hint only.
type Event struct {
	ID        string          `json:"id"`
	Name      string          `json:"event"`
	Data      json.RawMessage `json:"data,omitempty"`
	From      string          `json:"from,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Decode unmarshals Data into v. An empty payload reports false.
func (e Event) Decode(v interface{}) (bool, error) {
	if len(e.Data) == 0 || string(e.Data) == "null" {
		return false, nil
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return false, err
	}
	return true, nil
}

// Frame actions a session sends to the relay.
const (
	ActionEmit        = "emit"
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
)

// Frame is a message from a session to the relay.
type Frame struct {
	Action string          `json:"action"`
	Event  string          `json:"event,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
	Topics []string        `json:"topics,omitempty"`
}

// PresenceStatus is the payload of student-status and counselor presence
// events.
type PresenceStatus struct {
	UserID  string `json:"userId"`
	Online  bool   `json:"online"`
	OnVideo bool   `json:"onVideoCall,omitempty"`
}

// UserTopic is the topic every session of userID is subscribed to.
func UserTopic(userID string) string { return "user:" + userID }

// RoleTopic is the topic every session holding role is subscribed to.
func RoleTopic(role string) string { return "role:" + role }
