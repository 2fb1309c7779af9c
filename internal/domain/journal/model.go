package journal

import "time"

type Entry struct {
	ID        string    `json:"id"`
	Mood      string    `json:"mood"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}
