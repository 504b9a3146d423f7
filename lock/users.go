package lock

import (
	"fmt"
	"strings"
	"time"

	linq "github.com/ahmetb/go-linq/v3"

	"github.com/roelbroersma/kerong-BT-lock/protocol"
	"github.com/roelbroersma/kerong-BT-lock/utils"
)

// UserSpec describes one user credential to provision on the lock.
type UserSpec struct {
	ID   string
	From time.Time
	To   time.Time
	// Once marks a one-shot credential invalidated after first use.
	Once bool
}

// pendingUser is the correlation record for one outstanding password
// creation. Password replies carry no user id, so replies are matched to
// the oldest pending request without a recorded password, in call order.
type pendingUser struct {
	id       string
	password string
	queue    *utils.Deque
}

// CreateUser asks the lock to store a user valid in [from, to] and returns
// the password the device generated for it. Requires authentication. At
// most one creation may be outstanding per user id; there is no reply
// deadline, matching the device's lack of a delivery guarantee.
func (s *Session) CreateUser(userID string, from, to time.Time, once bool) (string, error) {
	if !s.authenticated.Load() {
		return "", ErrNotAuthenticated
	}

	payload, err := buildCreateUserPayload(userID, from, to, once)
	if err != nil {
		return "", err
	}

	req := &pendingUser{id: userID, queue: utils.NewDeque()}

	s.mu.Lock()
	for _, p := range s.pendingUsers {
		if p.id == userID && p.password == "" {
			s.mu.Unlock()
			return "", fmt.Errorf("lock: creation already pending for user %s", userID)
		}
	}
	s.pendingUsers = append(s.pendingUsers, req)
	s.mu.Unlock()

	if err := s.writeCommand(protocol.CmdCreateUser, payload); err != nil {
		s.dropPendingUser(req)
		return "", err
	}

	item, err := req.queue.Get(0)
	s.dropPendingUser(req)
	if err != nil {
		return "", err
	}

	switch v := item.(type) {
	case string:
		return v, nil
	case error:
		return "", v
	default:
		return "", fmt.Errorf("lock: unexpected creation result %T", item)
	}
}

// DeleteAllUsers wipes every stored user credential. Requires authentication.
func (s *Session) DeleteAllUsers() error {
	if !s.authenticated.Load() {
		return ErrNotAuthenticated
	}

	s.mu.Lock()
	if s.deleteQueue != nil {
		s.mu.Unlock()
		return fmt.Errorf("lock: delete-all already in flight")
	}
	queue := utils.NewDeque()
	s.deleteQueue = queue
	s.mu.Unlock()

	clear := func() {
		s.mu.Lock()
		if s.deleteQueue == queue {
			s.deleteQueue = nil
		}
		s.mu.Unlock()
	}

	if err := s.writeCommand(protocol.CmdDeleteUsers, nil); err != nil {
		clear()
		return err
	}

	item, err := queue.Get(0)
	clear()
	if err != nil {
		return err
	}
	if failure, ok := item.(error); ok {
		return failure
	}
	return nil
}

// ProvisionUsers replaces the lock's user table: delete-all followed by
// sequential creations, with the configured command gap between writes to
// respect the device's processing cadence. Returns the generated passwords
// in the order given.
func (s *Session) ProvisionUsers(specs []UserSpec) ([]string, error) {
	if err := s.DeleteAllUsers(); err != nil {
		return nil, err
	}

	passwords := make([]string, 0, len(specs))
	for _, spec := range specs {
		time.Sleep(s.timeouts.CommandGap())
		password, err := s.CreateUser(spec.ID, spec.From, spec.To, spec.Once)
		if err != nil {
			return passwords, err
		}
		passwords = append(passwords, password)
	}
	return passwords, nil
}

// Users triggers the listing flow and blocks until the final fragment has
// been reassembled and parsed.
func (s *Session) Users() ([]protocol.UserRecord, error) {
	s.mu.Lock()
	if s.usersQueue != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("lock: user listing already in flight")
	}
	queue := utils.NewDeque()
	s.usersQueue = queue
	// A listing whose final fragment was lost must not leak into this one.
	s.reassembler.Reset()
	s.mu.Unlock()

	clear := func() {
		s.mu.Lock()
		if s.usersQueue == queue {
			s.usersQueue = nil
		}
		s.mu.Unlock()
	}

	if err := s.writeCommand(protocol.CmdListUsers, nil); err != nil {
		clear()
		return nil, err
	}

	item, err := queue.Get(0)
	clear()
	if err != nil {
		return nil, err
	}

	switch v := item.(type) {
	case []protocol.UserRecord:
		return v, nil
	case error:
		return nil, v
	default:
		return nil, fmt.Errorf("lock: unexpected listing result %T", item)
	}
}

// ValidUsers filters records whose trailing checksum verified.
func ValidUsers(records []protocol.UserRecord) []protocol.UserRecord {
	out := make([]protocol.UserRecord, 0, len(records))
	linq.From(records).
		WhereT(func(r protocol.UserRecord) bool { return r.Valid }).
		ToSlice(&out)
	return out
}

// onPasswordCreated matches a generated password to the oldest pending
// creation without a recorded password. Duplicate or unmatched replies are
// logged and dropped; a request is never resolved twice.
func (s *Session) onPasswordCreated(rsp *protocol.Response) {
	s.mu.Lock()
	var req *pendingUser
	for _, p := range s.pendingUsers {
		if p.password == "" {
			req = p
			break
		}
	}

	if req == nil {
		s.mu.Unlock()
		s.logger.Warn("unmatched password notification dropped", "status", rsp.Status)
		return
	}

	if rsp.Status != protocol.StatusSuccess {
		req.password = "-" // mark resolved so a retry gets a fresh slot
		s.mu.Unlock()
		req.queue.Put(&DeviceStatusError{Op: "user creation", Status: rsp.Status})
		return
	}
	if len(rsp.Payload) < 6 {
		req.password = "-"
		s.mu.Unlock()
		req.queue.Put(fmt.Errorf("lock: password payload too short: %d bytes", len(rsp.Payload)))
		return
	}

	password := string(rsp.Payload[:6])
	req.password = password
	s.mu.Unlock()

	s.logger.Info("password created", "user", req.id)
	req.queue.Put(password)
}

// onDeleteAll resolves the pending delete-all request.
func (s *Session) onDeleteAll(rsp *protocol.Response) {
	s.mu.Lock()
	queue := s.deleteQueue
	s.deleteQueue = nil
	s.mu.Unlock()

	if queue == nil {
		s.logger.Warn("stray delete-all notification dropped", "status", rsp.Status)
		return
	}
	if rsp.Status != protocol.StatusSuccess {
		queue.Put(&DeviceStatusError{Op: "delete all users", Status: rsp.Status})
		return
	}
	queue.Put(nil)
}

// onUserList feeds the reassembler and surfaces the parsed records once the
// final fragment arrives.
func (s *Session) onUserList(rsp *protocol.Response) {
	s.mu.Lock()
	records, done, err := s.reassembler.Feed(rsp.Status, rsp.Payload)
	if !done {
		s.mu.Unlock()
		return
	}
	queue := s.usersQueue
	s.usersQueue = nil
	s.mu.Unlock()

	if queue == nil {
		s.logger.Warn("stray user list notification dropped", "records", len(records))
		return
	}
	if err != nil {
		queue.Put(err)
		return
	}

	s.events.UsersListed.Fire(map[string]interface{}{"records": records})
	queue.Put(records)
}

func (s *Session) dropPendingUser(req *pendingUser) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, p := range s.pendingUsers {
		if p == req {
			s.pendingUsers = append(s.pendingUsers[:i], s.pendingUsers[i+1:]...)
			return
		}
	}
}

// buildCreateUserPayload assembles the creation request: type, 6-byte
// zero-padded ASCII user id, BCD validity window.
func buildCreateUserPayload(userID string, from, to time.Time, once bool) ([]byte, error) {
	id, err := padUserID(userID)
	if err != nil {
		return nil, err
	}

	typ := protocol.TypeUser
	if once {
		typ = protocol.TypeOnceUser
	}

	payload := make([]byte, 0, 17)
	payload = append(payload, byte(typ))
	payload = append(payload, id...)
	payload = append(payload, protocol.DateToBCD(from)...)
	payload = append(payload, protocol.DateToBCD(to)...)
	return payload, nil
}

func padUserID(id string) ([]byte, error) {
	if id == "" || len(id) > 6 {
		return nil, fmt.Errorf("lock: user id must be 1-6 digits, got %q", id)
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return nil, fmt.Errorf("lock: user id must be numeric, got %q", id)
		}
	}
	return []byte(strings.Repeat("0", 6-len(id)) + id), nil
}
