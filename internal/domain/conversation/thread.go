// Package conversation groups a user's flat message list into one thread per
// counterpart and tracks unread state.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/medhya/medhya/internal/domain/message"
)

// Thread is every message exchanged between the current user and one other
// participant, oldest first. It is derived and never persisted.
type Thread struct {
	CurrentUserID string
	ParticipantID string
	Messages      []message.Message
}

// UnreadCount is the number of messages the current user did not send and
// has not read.
func (t *Thread) UnreadCount() int {
	n := 0
	for _, m := range t.Messages {
		if t.unread(m) {
			n++
		}
	}
	return n
}

// LastMessage returns the newest message, or false for an empty thread.
func (t *Thread) LastMessage() (message.Message, bool) {
	if len(t.Messages) == 0 {
		return message.Message{}, false
	}
	return t.Messages[len(t.Messages)-1], true
}

func (t *Thread) unread(m message.Message) bool {
	return m.Sender != t.CurrentUserID && !m.IsRead
}

func (t *Thread) lastAt() time.Time {
	if m, ok := t.LastMessage(); ok {
		return m.CreatedAt
	}
	return time.Time{}
}

// Build partitions msgs by the participant other than currentUserID: the
// sender of messages the user received, the recipient of everything else.
// Every message lands in exactly one thread. Messages within a thread are
// ascending by CreatedAt with ties kept in input order. Threads are ordered
// by their last message, newest first.
func Build(currentUserID string, msgs []message.Message) []Thread {
	byParticipant := map[string]*Thread{}
	order := []string{}
	for _, m := range msgs {
		other := m.OtherParticipant(currentUserID)
		th, ok := byParticipant[other]
		if !ok {
			th = &Thread{CurrentUserID: currentUserID, ParticipantID: other}
			byParticipant[other] = th
			order = append(order, other)
		}
		th.Messages = append(th.Messages, m)
	}

	threads := make([]Thread, 0, len(order))
	for _, id := range order {
		th := byParticipant[id]
		sort.SliceStable(th.Messages, func(i, j int) bool {
			return th.Messages[i].CreatedAt.Before(th.Messages[j].CreatedAt)
		})
		threads = append(threads, *th)
	}
	sort.SliceStable(threads, func(i, j int) bool {
		return threads[i].lastAt().After(threads[j].lastAt())
	})
	return threads
}

// Find returns the thread with participantID.
func Find(threads []Thread, participantID string) (*Thread, bool) {
	for i := range threads {
		if threads[i].ParticipantID == participantID {
			return &threads[i], true
		}
	}
	return nil, false
}

// TotalUnread sums UnreadCount across threads.
func TotalUnread(threads []Thread) int {
	n := 0
	for i := range threads {
		n += threads[i].UnreadCount()
	}
	return n
}

// Marker marks a single message as read on the server.
type Marker interface {
	MarkRead(ctx context.Context, id string) error
}

// MarkThreadRead marks every message counted by UnreadCount, one
// request at a time. A failed message is logged and skipped; the rest are
// still attempted. Messages the server accepted flip IsRead in th. It
// returns how many were marked and the joined failures.
func MarkThreadRead(ctx context.Context, marker Marker, th *Thread) (int, error) {
	logger := zerolog.Ctx(ctx)
	marked := 0
	var errs []error
	for i := range th.Messages {
		m := &th.Messages[i]
		if !th.unread(*m) {
			continue
		}
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := marker.MarkRead(ctx, m.ID); err != nil {
			logger.Warn().Err(err).Str("message_id", m.ID).Msg("failed to mark message read")
			errs = append(errs, fmt.Errorf("mark %s read: %w", m.ID, err))
			continue
		}
		m.IsRead = true
		marked++
	}
	return marked, errors.Join(errs...)
}
