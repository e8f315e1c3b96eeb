// Package realtime implements the shared event channel between the client and
// the collaboration backend: one physical WebSocket connection per
// authenticated identity, with automatic reconnection, reference-counted room
// membership and cancellable event subscriptions.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

const (
	DefaultBackoffInitial = time.Second
	DefaultBackoffCap     = 30 * time.Second
	DefaultMaxAttempts    = 10
	DefaultQueueLimit     = 64

	writeTimeout = 10 * time.Second
)

var (
	ErrClosed       = errors.New("realtime: channel closed")
	ErrNotConnected = errors.New("realtime: not connected")
)

// Handler receives the raw payload of one inbound event. Handlers run on the
// channel's single dispatch goroutine, so events arrive in server-send order
// and handlers must not block.
type Handler func(data json.RawMessage)

// DialFunc opens the underlying WebSocket connection. Injectable for tests.
type DialFunc func(ctx context.Context, rawURL, authToken string) (*websocket.Conn, error)

type Options struct {
	URL            string
	Dial           DialFunc
	BackoffInitial time.Duration
	BackoffCap     time.Duration
	MaxAttempts    int
	QueueLimit     int
}

// Subscription is the disposable handle returned by Subscribe and
// OnStateChange. Cancel is idempotent.
type Subscription struct {
	once   sync.Once
	cancel func()
}

func (s *Subscription) Cancel() {
	if s == nil {
		return
	}
	s.once.Do(s.cancel)
}

// NewSubscription wraps a cancel function in a handle. Alternative channel
// implementations, including test fakes, use it to satisfy consumers that
// expect Subscribe-style handles.
func NewSubscription(cancel func()) *Subscription {
	if cancel == nil {
		cancel = func() {}
	}
	return &Subscription{cancel: cancel}
}

// Channel is the process-wide event channel, shared by every open document's
// coordinator. It is constructed on login and closed on logout; it is never
// ambient global state.
type Channel struct {
	opts     Options
	clientID string

	mu        sync.Mutex
	wmu       sync.Mutex
	state     State
	conn      *websocket.Conn
	authToken string
	closed    bool

	nextSubID uint64
	subs      map[string]map[uint64]Handler
	stateSubs map[uint64]func(State)

	rooms map[string]int
	queue []Envelope
}

func NewChannel(opts Options) *Channel {
	if opts.Dial == nil {
		opts.Dial = defaultDial
	}
	if opts.BackoffInitial <= 0 {
		opts.BackoffInitial = DefaultBackoffInitial
	}
	if opts.BackoffCap <= 0 {
		opts.BackoffCap = DefaultBackoffCap
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.QueueLimit <= 0 {
		opts.QueueLimit = DefaultQueueLimit
	}
	return &Channel{
		opts:      opts,
		clientID:  uuid.NewString(),
		subs:      make(map[string]map[uint64]Handler),
		stateSubs: make(map[uint64]func(State)),
		rooms:     make(map[string]int),
	}
}

// ClientID identifies this client instance; one user may hold several
// (multiple tabs or devices), each with its own channel.
func (c *Channel) ClientID() string { return c.clientID }

func defaultDial(ctx context.Context, rawURL, authToken string) (*websocket.Conn, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse socket url: %w", err)
	}
	query := parsed.Query()
	query.Set("token", authToken)
	parsed.RawQuery = query.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, parsed.String(), nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect establishes the physical connection. Calling Connect while the
// channel is already connecting or connected is a no-op: there is exactly one
// physical connection per authenticated identity.
func (c *Channel) Connect(ctx context.Context, authToken string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return nil
	}
	c.authToken = authToken
	c.mu.Unlock()
	c.setState(StateConnecting)

	conn, err := c.opts.Dial(ctx, c.opts.URL, authToken)
	if err != nil {
		c.setState(StateDisconnected)
		return fmt.Errorf("realtime connect: %w", err)
	}
	c.install(conn)
	return nil
}

// install adopts a freshly dialed connection: replays room memberships,
// flushes the queued outbound events and starts the read loop.
func (c *Channel) install(conn *websocket.Conn) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		return
	}
	c.conn = conn
	c.state = StateConnected
	roomIDs := make([]string, 0, len(c.rooms))
	for id, count := range c.rooms {
		if count > 0 {
			roomIDs = append(roomIDs, id)
		}
	}
	sort.Strings(roomIDs)
	queued := c.queue
	c.queue = nil
	c.mu.Unlock()

	c.notifyState(StateConnected)
	for _, id := range roomIDs {
		c.send(conn, mustEnvelope(EventJoinPortfolio, RoomPayload{DocumentID: id}))
	}
	for _, env := range queued {
		c.send(conn, env)
	}
	go c.readLoop(conn)
}

func (c *Channel) readLoop(conn *websocket.Conn) {
	for {
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			c.handleDrop(conn, err)
			return
		}
		c.dispatch(env)
	}
}

func (c *Channel) dispatch(env Envelope) {
	c.mu.Lock()
	handlers := c.subs[env.Event]
	ids := make([]uint64, 0, len(handlers))
	for id := range handlers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	ordered := make([]Handler, 0, len(ids))
	for _, id := range ids {
		ordered = append(ordered, handlers[id])
	}
	c.mu.Unlock()

	for _, handler := range ordered {
		handler(env.Data)
	}
}

func (c *Channel) handleDrop(conn *websocket.Conn, cause error) {
	c.mu.Lock()
	if c.closed || c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.state = StateReconnecting
	c.mu.Unlock()

	log.Printf("realtime: connection dropped, reconnecting: %v", cause)
	c.notifyState(StateReconnecting)
	go c.reconnectLoop()
}

// reconnectLoop retries with bounded exponential backoff. Transport loss is
// never surfaced as an error: exhausting the attempts leaves the channel in
// the persistent Disconnected state.
func (c *Channel) reconnectLoop() {
	delay := c.opts.BackoffInitial
	for attempt := 1; attempt <= c.opts.MaxAttempts; attempt++ {
		time.Sleep(delay)

		c.mu.Lock()
		if c.closed || c.state != StateReconnecting {
			c.mu.Unlock()
			return
		}
		token := c.authToken
		c.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		conn, err := c.opts.Dial(ctx, c.opts.URL, token)
		cancel()
		if err == nil {
			c.mu.Lock()
			if c.closed || c.state != StateReconnecting {
				c.mu.Unlock()
				_ = conn.Close()
				return
			}
			c.mu.Unlock()
			c.install(conn)
			return
		}
		log.Printf("realtime: reconnect attempt %d/%d failed: %v", attempt, c.opts.MaxAttempts, err)

		delay *= 2
		if delay > c.opts.BackoffCap {
			delay = c.opts.BackoffCap
		}
	}
	c.setState(StateDisconnected)
}

// Subscribe registers a handler for one inbound event and returns its
// disposable handle.
func (c *Channel) Subscribe(event string, handler Handler) *Subscription {
	c.mu.Lock()
	c.nextSubID++
	id := c.nextSubID
	if c.subs[event] == nil {
		c.subs[event] = make(map[uint64]Handler)
	}
	c.subs[event][id] = handler
	c.mu.Unlock()

	return &Subscription{cancel: func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if handlers, ok := c.subs[event]; ok {
			delete(handlers, id)
			if len(handlers) == 0 {
				delete(c.subs, event)
			}
		}
	}}
}

// OnStateChange registers an observer for connection state transitions.
func (c *Channel) OnStateChange(fn func(State)) *Subscription {
	c.mu.Lock()
	c.nextSubID++
	id := c.nextSubID
	c.stateSubs[id] = fn
	c.mu.Unlock()

	return &Subscription{cancel: func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.stateSubs, id)
	}}
}

// Emit sends an event, queueing it when the channel is not connected. The
// queue is bounded: once full, the oldest entry is dropped and a warning is
// logged.
func (c *Channel) Emit(event string, payload any) error {
	env, err := NewEnvelope(event, payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", event, err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state != StateConnected || c.conn == nil {
		c.enqueueLocked(env)
		c.mu.Unlock()
		return nil
	}
	conn := c.conn
	c.mu.Unlock()

	c.send(conn, env)
	return nil
}

func (c *Channel) enqueueLocked(env Envelope) {
	if len(c.queue) >= c.opts.QueueLimit {
		dropped := c.queue[0]
		c.queue = c.queue[1:]
		log.Printf("realtime: outbound queue full, dropping oldest %s event", dropped.Event)
	}
	c.queue = append(c.queue, env)
}

// send writes one envelope; on failure the envelope is queued so it flushes
// after the next reconnect.
func (c *Channel) send(conn *websocket.Conn, env Envelope) {
	c.wmu.Lock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	err := conn.WriteJSON(env)
	c.wmu.Unlock()
	if err != nil {
		c.mu.Lock()
		if !c.closed {
			c.enqueueLocked(env)
		}
		c.mu.Unlock()
	}
}

// JoinRoom increments the reference count for a document room, emitting
// join_portfolio only on the 0 -> 1 transition. One consumer's LeaveRoom can
// never evict a room another consumer still uses.
func (c *Channel) JoinRoom(documentID string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.rooms[documentID]++
	first := c.rooms[documentID] == 1
	live := c.state == StateConnected && c.conn != nil
	c.mu.Unlock()

	// while disconnected, membership is replayed by install on the next
	// connection, so queueing a join here would send it twice
	if !first || !live {
		return nil
	}
	return c.Emit(EventJoinPortfolio, RoomPayload{DocumentID: documentID})
}

// LeaveRoom decrements the room's reference count, emitting leave_portfolio
// only on the 1 -> 0 transition. A leave without a matching join is a no-op.
func (c *Channel) LeaveRoom(documentID string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	count, ok := c.rooms[documentID]
	if !ok || count == 0 {
		c.mu.Unlock()
		return nil
	}
	c.rooms[documentID] = count - 1
	last := count == 1
	if last {
		delete(c.rooms, documentID)
	}
	live := c.state == StateConnected && c.conn != nil
	c.mu.Unlock()

	if !last || !live {
		return nil
	}
	return c.Emit(EventLeavePortfolio, RoomPayload{DocumentID: documentID})
}

// RoomRefCount reports the current reference count for a room.
func (c *Channel) RoomRefCount(documentID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rooms[documentID]
}

// Disconnect tears the channel down for good (logout). A closed channel
// cannot be reused; construct a fresh one on the next login.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	conn := c.conn
	c.conn = nil
	c.state = StateDisconnected
	c.queue = nil
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	c.notifyState(StateDisconnected)
}

func (c *Channel) setState(next State) {
	c.mu.Lock()
	if c.state == next {
		c.mu.Unlock()
		return
	}
	c.state = next
	c.mu.Unlock()
	c.notifyState(next)
}

func (c *Channel) notifyState(state State) {
	c.mu.Lock()
	ids := make([]uint64, 0, len(c.stateSubs))
	for id := range c.stateSubs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	observers := make([]func(State), 0, len(ids))
	for _, id := range ids {
		observers = append(observers, c.stateSubs[id])
	}
	c.mu.Unlock()

	for _, fn := range observers {
		fn(state)
	}
}

func mustEnvelope(event string, payload any) Envelope {
	env, err := NewEnvelope(event, payload)
	if err != nil {
		return Envelope{Event: event}
	}
	return env
}
