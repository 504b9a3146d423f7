package lock

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roelbroersma/kerong-BT-lock/protocol"
)

// fakeTransport is a scripted in-memory transport. autoReply, when set, is
// invoked synchronously for every successful write with the decoded
// outbound command, mimicking the lock's notification turnaround.
type fakeTransport struct {
	mu           sync.Mutex
	writes       [][]byte
	notify       func([]byte)
	failWrites   int
	autoReply    func(cmd byte, data []byte)
	disconnected bool
}

func (f *fakeTransport) Connect() error { return nil }

func (f *fakeTransport) Disconnect() error {
	f.mu.Lock()
	f.disconnected = true
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) OnNotification(fn func([]byte)) {
	f.notify = fn
}

func (f *fakeTransport) Write(p []byte) error {
	f.mu.Lock()
	if f.failWrites > 0 {
		f.failWrites--
		f.mu.Unlock()
		return errors.New("gatt write failed")
	}
	f.writes = append(f.writes, append([]byte(nil), p...))
	reply := f.autoReply
	f.mu.Unlock()

	if reply != nil {
		rsp, err := protocol.Decode(p)
		if err != nil {
			panic(err)
		}
		reply(rsp.Cmd, rsp.Payload)
	}
	return nil
}

// push delivers a simulated device notification.
func (f *fakeTransport) push(cmd byte, status protocol.Status, payload []byte) {
	f.notify(deviceFrame(cmd, status, payload))
}

func (f *fakeTransport) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

func (f *fakeTransport) wasDisconnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disconnected
}

// deviceFrame builds a raw inbound frame carrying a status byte in the ASK
// position, the way the lock answers.
func deviceFrame(cmd byte, status protocol.Status, payload []byte) []byte {
	f := []byte{protocol.STX, cmd, byte(status), byte(len(payload)), protocol.ETX, 0x00}
	f[5] = protocol.Checksum(f[:5]) + protocol.Checksum(payload)
	return append(f, payload...)
}

func newTestSession(t *testing.T, ft *fakeTransport) *Session {
	t.Helper()
	s, err := NewSession(Options{Transport: ft})
	require.NoError(t, err)
	return s
}

func TestNewSessionRequiresTransport(t *testing.T) {
	_, err := NewSession(Options{})
	assert.Error(t, err)
}

func TestPairAndAuthenticateHandshake(t *testing.T) {
	ft := &fakeTransport{}
	s := newTestSession(t, ft)
	s.Configure(map[string]string{
		"PAIRING_PASSWORD": "9155",
		"ADMIN_PHONE":      "15814015470",
		"ADMIN_PASSWORD":   "000000",
	})
	require.NoError(t, s.Connect())

	var gotAuthFrame []byte
	ft.autoReply = func(cmd byte, data []byte) {
		switch cmd {
		case protocol.CmdPair:
			assert.Equal(t, []byte("9155"), data)
			ft.push(protocol.CmdPair, protocol.StatusSuccess, nil)
		case protocol.CmdRandomCode:
			assert.Empty(t, data)
			ft.push(protocol.CmdRandomCode, protocol.StatusSuccess, []byte{0x00, 0x7A})
		case protocol.CmdAuth:
			gotAuthFrame = append([]byte(nil), data...)
			ft.push(protocol.CmdAuth, protocol.StatusSuccess, nil)
		}
	}

	var events []bool
	s.Events().AuthenticationCompleted.AddCallback(func(data map[string]interface{}) {
		events = append(events, data["authenticated"].(bool))
	})

	require.NoError(t, s.PairAndAuthenticate())

	assert.True(t, s.Authenticated())
	assert.Equal(t, StateAuthenticated, s.CurrentState())
	assert.Equal(t, []bool{true}, events)

	code, ok := s.RandomCode()
	require.True(t, ok)
	assert.Equal(t, byte(0x7A), code)

	// Auth payload: [0x01, BCD phone, password ASCII] XORed with 0x7A.
	plain := append([]byte{0x01, 0x01, 0x58, 0x14, 0x01, 0x54, 0x70}, []byte("000000")...)
	assert.Equal(t, protocol.XORTransform(plain, 0x7A), gotAuthFrame)
}

func TestPairAndAuthenticateRejected(t *testing.T) {
	ft := &fakeTransport{}
	s := newTestSession(t, ft)
	s.Configure(map[string]string{
		"PAIRING_PASSWORD": "9155",
		"ADMIN_PHONE":      "15814015470",
		"ADMIN_PASSWORD":   "000000",
	})
	require.NoError(t, s.Connect())

	ft.autoReply = func(cmd byte, data []byte) {
		switch cmd {
		case protocol.CmdPair:
			ft.push(protocol.CmdPair, protocol.StatusSuccess, nil)
		case protocol.CmdRandomCode:
			ft.push(protocol.CmdRandomCode, protocol.StatusSuccess, []byte{0x7A})
		case protocol.CmdAuth:
			ft.push(protocol.CmdAuth, protocol.Status(0x82), nil)
		}
	}

	err := s.PairAndAuthenticate()
	var statusErr *DeviceStatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, protocol.Status(0x82), statusErr.Status)

	// Rejection is non-fatal: still connected, just not authenticated.
	assert.False(t, s.Authenticated())
	assert.True(t, s.Connected())
	assert.Equal(t, StateConnected, s.CurrentState())
}

func TestPairAndAuthenticateRequiresPairingPassword(t *testing.T) {
	ft := &fakeTransport{}
	s := newTestSession(t, ft)
	require.NoError(t, s.Connect())

	err := s.PairAndAuthenticate()
	assert.ErrorIs(t, err, ErrPairingPasswordMissing)
	assert.Zero(t, ft.writeCount(), "no bytes may be sent without a pairing password")
}

func TestPairAndAuthenticateIsSingleFlight(t *testing.T) {
	ft := &fakeTransport{}
	s := newTestSession(t, ft)
	s.Configure(map[string]string{
		"PAIRING_PASSWORD": "9155",
		"ADMIN_PHONE":      "15814015470",
		"ADMIN_PASSWORD":   "000000",
	})
	require.NoError(t, s.Connect())

	// No scripted replies: the first handshake stays pending on its result.
	first := make(chan error, 1)
	go func() { first <- s.PairAndAuthenticate() }()

	require.Eventually(t, func() bool { return ft.writeCount() == 1 },
		time.Second, time.Millisecond, "first handshake must send the pairing command")

	assert.ErrorIs(t, s.PairAndAuthenticate(), ErrHandshakePending)

	ft.push(protocol.CmdAuth, protocol.StatusSuccess, nil)
	require.NoError(t, <-first)
	assert.True(t, s.Authenticated())
}

func TestWriteRetriesWithBackoff(t *testing.T) {
	ft := &fakeTransport{failWrites: 2}
	s := newTestSession(t, ft)
	s.Timeouts().SetWriteBackoff(time.Millisecond)
	require.NoError(t, s.Connect())

	// Two failures then success: still within the 3 allowed attempts.
	require.NoError(t, s.RequestLogs())
	assert.Equal(t, 1, ft.writeCount())

	ft.mu.Lock()
	ft.failWrites = 3
	ft.mu.Unlock()

	err := s.RequestLogs()
	var writeErr *WriteError
	require.ErrorAs(t, err, &writeErr)
	assert.Equal(t, 3, writeErr.Attempts)
}

func TestCorruptNotificationIsDropped(t *testing.T) {
	ft := &fakeTransport{}
	s := newTestSession(t, ft)
	require.NoError(t, s.Connect())

	assert.NotPanics(t, func() {
		ft.push(0x99, protocol.StatusSuccess, nil) // unknown command
		ft.notify([]byte{protocol.STX})            // short frame
		ft.notify([]byte{protocol.STX, 0x60, 0x10, 0x08, protocol.ETX, 0x00, 0x01})
	})
	assert.True(t, s.Connected())
}

func TestSystemExitResetsSession(t *testing.T) {
	ft := &fakeTransport{}
	s := newTestSession(t, ft)
	s.Timeouts().SetShutdownGrace(time.Millisecond)
	s.Configure(map[string]string{"PAIRING_PASSWORD": "9155"})
	require.NoError(t, s.Connect())
	s.authenticated.Store(true)

	require.NoError(t, s.SystemExit())

	assert.True(t, ft.wasDisconnected())
	assert.False(t, s.Connected())
	assert.False(t, s.Authenticated())
	assert.Equal(t, StateIdle, s.CurrentState())
	assert.Empty(t, s.Config().PairingPassword, "session config is reset on teardown")

	_, ok := s.RandomCode()
	assert.False(t, ok)

	// The shutdown command itself was written before teardown.
	require.Equal(t, 1, ft.writeCount())
	rsp, err := protocol.Decode(ft.writes[0])
	require.NoError(t, err)
	assert.Equal(t, protocol.CmdShutdown, rsp.Cmd)
}

func TestOperationsRequireConnection(t *testing.T) {
	ft := &fakeTransport{}
	s := newTestSession(t, ft)

	err := s.RequestLogs()
	assert.ErrorIs(t, err, ErrNotConnected)
}
