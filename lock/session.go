package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/looplab/fsm"
	"go.uber.org/atomic"

	"github.com/roelbroersma/kerong-BT-lock/common"
	"github.com/roelbroersma/kerong-BT-lock/protocol"
	"github.com/roelbroersma/kerong-BT-lock/utils"
)

// Transport is the BLE link consumed by the driver: a single GATT
// write/notify characteristic pair. Discovery and connection management
// belong to the transport, never to the session.
type Transport interface {
	Connect() error
	Disconnect() error
	Write(data []byte) error
	// OnNotification registers the callback receiving raw inbound frames in
	// arrival order. Must be set before Connect.
	OnNotification(fn func(data []byte))
}

// Events exposes session callbacks.
type Events struct {
	// AuthenticationCompleted fires after every 0x21 result with
	// {"authenticated": bool}.
	AuthenticationCompleted *common.Event
	// LogReceived fires per decoded log notification with {"entry": LogEntry}.
	LogReceived *common.Event
	// UsersListed fires when a user listing completes with
	// {"records": []protocol.UserRecord}.
	UsersListed *common.Event
}

type notificationHandler func(*protocol.Response)

// Session is the stateful protocol driver for one lock. All exported
// methods are safe for concurrent use; notification dispatch runs on the
// transport callback goroutine and never blocks on a caller's wait.
type Session struct {
	transport Transport
	logger    common.Logger
	timeouts  *Timeouts

	state         *AuthStateMachine
	connected     *atomic.Bool
	authenticated *atomic.Bool

	handlers map[byte]notificationHandler
	events   Events

	mu            sync.Mutex
	config        Config
	randomCode    byte
	hasRandomCode bool
	authDone      *utils.Deque
	batteryQueue  *utils.Deque
	deleteQueue   *utils.Deque
	usersQueue    *utils.Deque
	pendingUsers  []*pendingUser
	reassembler   protocol.Reassembler
}

// NewSession creates a session driving the given transport. The session
// registers itself as the transport's notification callback.
func NewSession(opts Options) (*Session, error) {
	if opts.Transport == nil {
		return nil, errors.New("lock: transport is required")
	}
	opts.applyDefaults()

	s := &Session{
		transport:     opts.Transport,
		logger:        opts.Logger,
		timeouts:      opts.Timeouts,
		connected:     atomic.NewBool(false),
		authenticated: atomic.NewBool(false),
		config:        opts.Config,
		events: Events{
			AuthenticationCompleted: &common.Event{},
			LogReceived:             &common.Event{},
			UsersListed:             &common.Event{},
		},
	}

	s.state = NewAuthStateMachine(fsm.Callbacks{
		"enter_" + StateAuthenticated: s.onStateAuthenticated,
		"enter_" + StateIdle:          s.onStateIdle,
	})

	s.handlers = map[byte]notificationHandler{
		protocol.CmdPair:        s.onPairingAck,
		protocol.CmdRandomCode:  s.onRandomCode,
		protocol.CmdAuth:        s.onAuthResult,
		protocol.CmdBattery:     s.onBattery,
		protocol.CmdCreateUser:  s.onPasswordCreated,
		protocol.CmdDeleteUsers: s.onDeleteAll,
		protocol.CmdListUsers:   s.onUserList,
		protocol.CmdLog:         s.onLog,
	}

	s.transport.OnNotification(s.HandleNotification)

	return s, nil
}

// Events returns the session event hooks.
func (s *Session) Events() Events {
	return s.events
}

// Timeouts returns the session pacing configuration.
func (s *Session) Timeouts() *Timeouts {
	return s.timeouts
}

// Connected reports whether the transport link is up.
func (s *Session) Connected() bool {
	return s.connected.Load()
}

// Authenticated reports whether the admin handshake succeeded.
func (s *Session) Authenticated() bool {
	return s.authenticated.Load()
}

// CurrentState returns the current primary state name.
func (s *Session) CurrentState() string {
	return s.state.CurrentState()
}

// RandomCode returns the device-issued cipher key of this session, if one
// has been captured.
func (s *Session) RandomCode() (byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.randomCode, s.hasRandomCode
}

// Configure populates the session configuration from a generic key/value
// map (see FromMap for the key handling rules).
func (s *Session) Configure(values map[string]string) {
	s.SetConfig(FromMap(values))
}

// SetConfig replaces the session configuration.
func (s *Session) SetConfig(cfg Config) {
	cfg.applyDefaults()
	s.mu.Lock()
	s.config = cfg
	s.mu.Unlock()
}

// Config returns a copy of the current configuration.
func (s *Session) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config
}

// Connect establishes the transport link.
func (s *Session) Connect() error {
	if err := s.transport.Connect(); err != nil {
		return err
	}
	s.connected.Store(true)
	if err := s.state.Connect(); err != nil {
		s.logger.Warn("state transition rejected", "event", "connect", "err", err)
	}
	s.logger.Info("transport connected")
	return nil
}

// PairAndAuthenticate runs the pairing → random-code → authentication
// handshake and blocks until it completes or the auth timeout expires. An
// authentication rejection is non-fatal: the session stays connected and
// the handshake can be retried.
func (s *Session) PairAndAuthenticate() error {
	s.mu.Lock()
	cfg := s.config
	s.mu.Unlock()

	if cfg.PairingPassword == "" {
		return ErrPairingPasswordMissing
	}
	if !s.connected.Load() {
		return ErrNotConnected
	}

	done := utils.NewDeque()
	s.mu.Lock()
	if s.authDone != nil {
		s.mu.Unlock()
		return ErrHandshakePending
	}
	s.authDone = done
	s.mu.Unlock()

	clear := func() {
		s.mu.Lock()
		if s.authDone == done {
			s.authDone = nil
		}
		s.mu.Unlock()
	}

	if err := s.state.Pair(); err != nil {
		s.logger.Warn("state transition rejected", "event", "pair", "err", err)
	}

	if err := s.writeCommand(protocol.CmdPair, []byte(cfg.PairingPassword)); err != nil {
		clear()
		return err
	}

	item, err := done.Get(s.timeouts.Auth())
	clear()
	if err != nil {
		return ErrTimeout
	}
	if failure, ok := item.(error); ok {
		return failure
	}
	return nil
}

// SystemExit sends the shutdown command, waits the grace interval, forces
// the transport closed and resets the session, whether or not the shutdown
// was acknowledged.
func (s *Session) SystemExit() error {
	if err := s.writeCommand(protocol.CmdShutdown, nil); err != nil {
		s.logger.Warn("shutdown command not delivered", "err", err)
	}
	time.Sleep(s.timeouts.ShutdownGrace())

	err := s.transport.Disconnect()
	s.reset()
	s.logger.Info("session closed")
	return err
}

// HandleNotification decodes one raw inbound frame and dispatches it by
// command byte. Malformed frames are logged and dropped; a corrupt
// notification never tears the session down.
func (s *Session) HandleNotification(raw []byte) {
	rsp, err := protocol.Decode(raw)
	if err != nil {
		s.logger.Warn("corrupt notification dropped", "len", len(raw), "err", err)
		return
	}

	handler, ok := s.handlers[rsp.Cmd]
	if !ok {
		s.logger.Debug("unhandled notification",
			"cmd", fmt.Sprintf("0x%02X", rsp.Cmd), "status", rsp.Status)
		return
	}
	handler(&rsp)
}

func (s *Session) onStateAuthenticated(_ context.Context, _ *fsm.Event) {
	s.logger.Info("state: AUTHENTICATED")
}

func (s *Session) onStateIdle(_ context.Context, _ *fsm.Event) {
	s.logger.Info("state: IDLE")
}

// onPairingAck handles the 0x0F pairing acknowledgement and moves the
// handshake forward by requesting the session random code.
func (s *Session) onPairingAck(rsp *protocol.Response) {
	if rsp.Status != protocol.StatusSuccess {
		s.failAuth(&DeviceStatusError{Op: "pairing", Status: rsp.Status})
		return
	}
	if err := s.state.PairAcked(); err != nil {
		s.logger.Warn("state transition rejected", "event", "pair_acked", "err", err)
	}
	if err := s.writeCommand(protocol.CmdRandomCode, nil); err != nil {
		s.failAuth(err)
	}
}

// onRandomCode captures the device-issued cipher key (the last payload
// byte) and sends the XOR-encrypted admin credentials.
func (s *Session) onRandomCode(rsp *protocol.Response) {
	if rsp.Status != protocol.StatusSuccess {
		s.failAuth(&DeviceStatusError{Op: "random code request", Status: rsp.Status})
		return
	}
	if len(rsp.Payload) == 0 {
		s.failAuth(errors.New("lock: random code payload empty"))
		return
	}
	code := rsp.Payload[len(rsp.Payload)-1]

	s.mu.Lock()
	s.randomCode = code
	s.hasRandomCode = true
	cfg := s.config
	s.mu.Unlock()

	if err := s.state.RandomCode(); err != nil {
		s.logger.Warn("state transition rejected", "event", "random_code", "err", err)
	}

	payload, err := buildAuthPayload(cfg.AdminPhone, cfg.AdminPassword)
	if err != nil {
		s.failAuth(err)
		return
	}
	if err := s.writeCommand(protocol.CmdAuth, protocol.XORTransform(payload, code)); err != nil {
		s.failAuth(err)
	}
}

// onAuthResult finishes the handshake. The authenticated flag mirrors the
// device verdict either way.
func (s *Session) onAuthResult(rsp *protocol.Response) {
	granted := rsp.Status == protocol.StatusSuccess
	s.authenticated.Store(granted)

	if granted {
		if err := s.state.AuthSuccess(); err != nil {
			s.logger.Warn("state transition rejected", "event", "auth_success", "err", err)
		}
	} else {
		if err := s.state.AuthFailed(); err != nil {
			s.logger.Warn("state transition rejected", "event", "auth_failed", "err", err)
		}
		s.logger.Warn("authentication rejected", "status", rsp.Status)
	}

	s.events.AuthenticationCompleted.Fire(map[string]interface{}{"authenticated": granted})

	s.mu.Lock()
	done := s.authDone
	s.authDone = nil
	s.mu.Unlock()

	if done == nil {
		return
	}
	if granted {
		done.Put(nil)
	} else {
		done.Put(&DeviceStatusError{Op: "authentication", Status: rsp.Status})
	}
}

// failAuth aborts an in-flight handshake and wakes the waiting caller.
func (s *Session) failAuth(cause error) {
	s.logger.Warn("handshake aborted", "err", cause)
	if err := s.state.AuthFailed(); err != nil {
		s.logger.Warn("state transition rejected", "event", "auth_failed", "err", err)
	}

	s.mu.Lock()
	done := s.authDone
	s.authDone = nil
	s.mu.Unlock()

	if done != nil {
		done.Put(cause)
	}
}

// buildAuthPayload assembles the plaintext admin credential block: actor
// marker, BCD-packed phone, password ASCII.
func buildAuthPayload(phone, password string) ([]byte, error) {
	phoneBytes, err := protocol.PhoneToBCD(phone)
	if err != nil {
		return nil, err
	}
	payload := make([]byte, 0, 1+len(phoneBytes)+len(password))
	payload = append(payload, byte(protocol.TypeAdmin))
	payload = append(payload, phoneBytes...)
	payload = append(payload, []byte(password)...)
	return payload, nil
}

// writeCommand frames and writes one command, retrying failed writes with a
// fixed backoff. The last failure is surfaced wrapped in WriteError.
func (s *Session) writeCommand(cmd byte, data []byte) error {
	if !s.connected.Load() {
		return ErrNotConnected
	}

	frame, err := protocol.Encode(cmd, data)
	if err != nil {
		return err
	}
	attempts := s.timeouts.WriteAttempts()

	var last error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			time.Sleep(s.timeouts.WriteBackoff())
		}
		if last = s.transport.Write(frame); last == nil {
			return nil
		}
		s.logger.Warn("write failed",
			"cmd", fmt.Sprintf("0x%02X", cmd), "attempt", i+1, "err", last)
	}
	return &WriteError{Attempts: attempts, Err: last}
}

// reset tears the session back to its initial empty state and wakes every
// blocked waiter with ErrNotConnected.
func (s *Session) reset() {
	s.connected.Store(false)
	s.authenticated.Store(false)

	s.mu.Lock()
	waiters := []*utils.Deque{s.authDone, s.batteryQueue, s.deleteQueue, s.usersQueue}
	for _, p := range s.pendingUsers {
		if p.password == "" {
			waiters = append(waiters, p.queue)
		}
	}
	s.authDone = nil
	s.batteryQueue = nil
	s.deleteQueue = nil
	s.usersQueue = nil
	s.pendingUsers = nil
	s.randomCode = 0
	s.hasRandomCode = false
	s.config = Config{}
	s.reassembler.Reset()
	s.mu.Unlock()

	for _, q := range waiters {
		if q != nil {
			q.Put(ErrNotConnected)
		}
	}

	if s.state.CurrentState() != StateIdle {
		if err := s.state.Disconnect(); err != nil {
			s.logger.Warn("state transition rejected", "event", "disconnect", "err", err)
		}
	}
}
