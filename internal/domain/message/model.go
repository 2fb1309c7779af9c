package message

import "time"

// MaxContentLength is the longest message body the platform accepts.
const MaxContentLength = 500

type Role string

const (
	RoleUser      Role = "User"
	RoleCounselor Role = "Counselor"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleCounselor
}

type Type string

const TypeText Type = "text"

type Message struct {
	ID            string    `json:"id"`
	Sender        string    `json:"sender"`
	SenderRole    Role      `json:"senderRole"`
	Recipient     string    `json:"recipient"`
	RecipientRole Role      `json:"recipientRole"`
	Content       string    `json:"content"`
	MessageType   Type      `json:"messageType"`
	AppointmentID *string   `json:"appointmentId,omitempty"`
	IsRead        bool      `json:"isRead"`
	CreatedAt     time.Time `json:"createdAt"`
}

func (m Message) Key() string { return m.ID }

// OtherParticipant returns the sender when userID received m, otherwise
// the recipient.
func (m Message) OtherParticipant(userID string) string {
	if m.Recipient == userID {
		return m.Sender
	}
	return m.Recipient
}

type SendRequest struct {
	Sender        string  `json:"-"`
	Recipient     string  `json:"recipient"`
	RecipientRole Role    `json:"recipientRole"`
	Content       string  `json:"content"`
	MessageType   Type    `json:"messageType"`
	AppointmentID *string `json:"appointmentId,omitempty"`
}
