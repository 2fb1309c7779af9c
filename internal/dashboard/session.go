// Package dashboard holds the live state behind a signed-in user's screens:
// orders, appointments and messages kept current by realtime events, plus
// the presence of the people they talk to.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/medhya/medhya/internal/domain/appointment"
	"github.com/medhya/medhya/internal/domain/conversation"
	"github.com/medhya/medhya/internal/domain/message"
	"github.com/medhya/medhya/internal/domain/order"
	"github.com/medhya/medhya/internal/platform/realtime"
	"github.com/medhya/medhya/internal/projection"
)

var (
	ErrThreadNotFound = errors.New("no conversation with that participant")
	ErrNotCounselor   = errors.New("only counselors can report a video call")
	ErrClosed         = errors.New("session closed")
)

type OrderLister interface {
	ListOrders(ctx context.Context) ([]order.Order, error)
}

type AppointmentLister interface {
	ListAppointments(ctx context.Context) ([]appointment.Appointment, error)
}

type Messenger interface {
	ListMessages(ctx context.Context) ([]message.Message, error)
	Send(ctx context.Context, req message.SendRequest) (*message.Message, error)
	MarkRead(ctx context.Context, id string) error
}

type Services struct {
	Orders       OrderLister
	Appointments AppointmentLister
	Messages     Messenger
}

// Channel is the part of *realtime.Channel the session drives.
type Channel interface {
	Connect(ctx context.Context, token string) error
	Disconnect()
	On(event string, h realtime.Handler) realtime.HandlerID
	Off(event string, id realtime.HandlerID)
	Emit(ctx context.Context, event string, data interface{}) error
}

type Options struct {
	UserID string
	Role   message.Role
	Token  string
	// Merge applies event payloads in place and refreshes only when a
	// payload cannot be used.
	Merge  bool
	Logger zerolog.Logger

	OnOrders       func([]order.Order)
	OnAppointments func([]appointment.Appointment)
	OnMessages     func([]message.Message)
	OnPresence     func(realtime.PresenceStatus)
}

type subscription struct {
	event string
	id    realtime.HandlerID
}

type Session struct {
	opts    Options
	svcs    Services
	channel Channel
	logger  zerolog.Logger

	orders       *projection.Projection[order.Order]
	appointments *projection.Projection[appointment.Appointment]
	messages     *projection.Projection[message.Message]

	mu        sync.Mutex
	presence  map[string]realtime.PresenceStatus
	subs      []subscription
	ctx       context.Context
	cancel    context.CancelFunc
	started   bool
	closed    bool
	connected bool
}

func NewSession(ch Channel, svcs Services, opts Options) *Session {
	logger := opts.Logger.With().Str("user_id", opts.UserID).Str("role", string(opts.Role)).Logger()
	policy := projection.RefreshPolicy
	if opts.Merge {
		policy = projection.MergePolicy
	}

	s := &Session{
		opts:     opts,
		svcs:     svcs,
		channel:  ch,
		logger:   logger,
		presence: make(map[string]realtime.PresenceStatus),
	}

	s.orders = projection.New("orders", svcs.Orders.ListOrders, order.Order.Key,
		projection.WithPolicy[order.Order](policy),
		projection.WithValidator[order.Order](order.ValidateUpdate),
		projection.WithLogger[order.Order](logger),
		projection.WithOnChange(opts.OnOrders),
	)
	s.appointments = projection.New("appointments", svcs.Appointments.ListAppointments, appointment.Appointment.Key,
		projection.WithPolicy[appointment.Appointment](policy),
		projection.WithValidator[appointment.Appointment](appointment.ValidateUpdate),
		projection.WithLogger[appointment.Appointment](logger),
		projection.WithOnChange(opts.OnAppointments),
	)
	s.messages = projection.New("messages", svcs.Messages.ListMessages, message.Message.Key,
		projection.WithPolicy[message.Message](policy),
		projection.WithLogger[message.Message](logger),
		projection.WithOnChange(opts.OnMessages),
	)
	return s
}

// Start subscribes to list and presence events, connects the channel and
// only then loads the three lists, so a change published while the lists
// load still reaches them. A failed connection is logged and the session
// keeps working from the loaded data. The first load error, if any, is
// returned once the session is running. Calling Start again is a no-op; a
// Close that lands while Start runs makes it return ErrClosed.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	sctx, cancel := context.WithCancel(s.logger.WithContext(ctx))
	s.ctx, s.cancel = sctx, cancel
	s.mu.Unlock()

	s.subscribe(realtime.EventOrderUpdated, s.orders.Handler(sctx))
	s.subscribe(realtime.EventAppointmentUpdated, s.appointments.Handler(sctx))
	s.subscribe(realtime.EventMessageNew, s.messages.Handler(sctx))
	for _, name := range []string{realtime.EventStudentStatus, realtime.EventCounselorOnline, realtime.EventCounselorOnVideoCall} {
		s.subscribe(name, s.handlePresence)
	}
	if s.isClosed() {
		return ErrClosed
	}

	if err := s.connect(sctx); err != nil {
		return err
	}

	var g errgroup.Group
	g.Go(func() error { return s.orders.LoadInitial(sctx) })
	g.Go(func() error { return s.appointments.LoadInitial(sctx) })
	g.Go(func() error { return s.messages.LoadInitial(sctx) })
	loadErr := g.Wait()
	if s.isClosed() {
		return ErrClosed
	}
	if loadErr != nil {
		s.logger.Warn().Err(loadErr).Msg("initial load incomplete")
	}
	return loadErr
}

// connect opens the channel and announces the session. Only ErrClosed is
// returned; any other failure leaves the session without live updates.
func (s *Session) connect(ctx context.Context) error {
	if err := s.channel.Connect(ctx, s.opts.Token); err != nil {
		if s.isClosed() {
			return ErrClosed
		}
		s.logger.Warn().Err(err).Msg("realtime unavailable, lists will not update live")
		return nil
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.channel.Disconnect()
		return ErrClosed
	}
	s.connected = true
	s.mu.Unlock()

	if err := s.announce(ctx, true, false); err != nil {
		s.logger.Warn().Err(err).Msg("failed to announce presence")
	}
	return nil
}

// subscribe registers h unless the session was closed meanwhile, in which
// case the registration is undone at once.
func (s *Session) subscribe(event string, h realtime.Handler) {
	id := s.channel.On(event, h)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.channel.Off(event, id)
		return
	}
	s.subs = append(s.subs, subscription{event: event, id: id})
	s.mu.Unlock()
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// presenceEvent is the event this session's own presence goes out on.
func (s *Session) presenceEvent() string {
	if s.opts.Role == message.RoleCounselor {
		return realtime.EventCounselorOnline
	}
	return realtime.EventStudentStatus
}

func (s *Session) announce(ctx context.Context, online, onVideo bool) error {
	return s.channel.Emit(ctx, s.presenceEvent(), realtime.PresenceStatus{
		UserID:  s.opts.UserID,
		Online:  online,
		OnVideo: onVideo,
	})
}

func (s *Session) handlePresence(ev realtime.Event) {
	var st realtime.PresenceStatus
	ok, err := ev.Decode(&st)
	if err != nil || !ok {
		s.logger.Debug().Err(err).Str("event", ev.Name).Msg("ignoring presence event without payload")
		return
	}
	if st.UserID == "" {
		st.UserID = ev.From
	}
	if st.UserID == "" || st.UserID == s.opts.UserID {
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.presence[st.UserID] = st
	s.mu.Unlock()

	if s.opts.OnPresence != nil {
		s.opts.OnPresence(st)
	}
}

// Presence returns the last reported status of userID.
func (s *Session) Presence(userID string) (realtime.PresenceStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.presence[userID]
	return st, ok
}

// SetOnVideoCall tells students whether this counselor is in a call.
func (s *Session) SetOnVideoCall(ctx context.Context, on bool) error {
	if s.opts.Role != message.RoleCounselor {
		return ErrNotCounselor
	}
	return s.channel.Emit(ctx, realtime.EventCounselorOnVideoCall, realtime.PresenceStatus{
		UserID:  s.opts.UserID,
		Online:  true,
		OnVideo: on,
	})
}

func (s *Session) Orders() []order.Order { return s.orders.Items() }

// OrdersIn returns the orders shown under tab.
func (s *Session) OrdersIn(tab order.StatusSet) []order.Order {
	return s.orders.Filter(func(o order.Order) bool { return tab.Has(o.Status) })
}

func (s *Session) Appointments() []appointment.Appointment {
	items := s.appointments.Items()
	appointment.SortByDate(items)
	return items
}

func (s *Session) UpcomingAppointments(now time.Time) []appointment.Appointment {
	return appointment.Upcoming(s.Appointments(), now)
}

// Errs reports the last load failure of each list, keyed by list name.
func (s *Session) Errs() map[string]error {
	out := map[string]error{}
	if err := s.orders.Err(); err != nil {
		out["orders"] = err
	}
	if err := s.appointments.Err(); err != nil {
		out["appointments"] = err
	}
	if err := s.messages.Err(); err != nil {
		out["messages"] = err
	}
	return out
}

func (s *Session) Threads() []conversation.Thread {
	return conversation.Build(s.opts.UserID, s.messages.Items())
}

func (s *Session) UnreadCount() int {
	return conversation.TotalUnread(s.Threads())
}

// OpenThread returns the conversation with participantID and marks the
// messages they sent as read. Messages that could not be marked stay
// unread and their errors are returned with the thread.
func (s *Session) OpenThread(ctx context.Context, participantID string) (*conversation.Thread, error) {
	th, ok := conversation.Find(s.Threads(), participantID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrThreadNotFound, participantID)
	}
	n, err := conversation.MarkThreadRead(s.logger.WithContext(ctx), s.svcs.Messages, th)
	if n > 0 {
		s.messages.Upsert(th.Messages...)
	}
	return th, err
}

// Send posts content to recipientID and shows it in the thread right away.
func (s *Session) Send(ctx context.Context, recipientID, content string, appointmentID *string) (*message.Message, error) {
	role := message.RoleCounselor
	if s.opts.Role == message.RoleCounselor {
		role = message.RoleUser
	}
	m, err := s.svcs.Messages.Send(ctx, message.SendRequest{
		Sender:        s.opts.UserID,
		Recipient:     recipientID,
		RecipientRole: role,
		Content:       content,
		AppointmentID: appointmentID,
	})
	if err != nil {
		return nil, err
	}
	s.messages.Upsert(*m)
	return m, nil
}

// Close announces the user offline, drops every handler, cancels in-flight
// loads and disconnects. It is safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	subs := s.subs
	s.subs = nil
	cancel := s.cancel
	connected := s.connected
	s.mu.Unlock()

	if connected {
		ctx, done := context.WithTimeout(context.Background(), time.Second)
		if err := s.announce(ctx, false, false); err != nil {
			s.logger.Debug().Err(err).Msg("failed to announce offline")
		}
		done()
	}
	for _, sub := range subs {
		s.channel.Off(sub.event, sub.id)
	}
	if cancel != nil {
		cancel()
	}
	s.channel.Disconnect()
}
