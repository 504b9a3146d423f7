package lock

import "time"

// Timeouts groups the pacing intervals of the driver. The lock's firmware
// processes commands slowly, so sequential multi-step flows keep a fixed
// gap between writes.
type Timeouts struct {
	// reply bounds the wait for a correlated battery notification.
	reply time.Duration
	// auth bounds the whole pairing → random code → authentication handshake.
	auth time.Duration
	// commandGap separates delete-all from the creations that follow it, and
	// successive user creations from each other.
	commandGap time.Duration
	// shutdownGrace is how long a shutdown command may settle before the
	// transport is forced closed.
	shutdownGrace time.Duration
	// writeBackoff separates outbound write retries.
	writeBackoff  time.Duration
	writeAttempts int
}

func NewTimeouts() *Timeouts {
	return &Timeouts{
		reply:         5 * time.Second,
		auth:          10 * time.Second,
		commandGap:    500 * time.Millisecond,
		shutdownGrace: time.Second,
		writeBackoff:  100 * time.Millisecond,
		writeAttempts: 3,
	}
}

func (t *Timeouts) Reply() time.Duration { return t.reply }

func (t *Timeouts) SetReply(d time.Duration) { t.reply = d }

func (t *Timeouts) Auth() time.Duration { return t.auth }

func (t *Timeouts) SetAuth(d time.Duration) { t.auth = d }

func (t *Timeouts) CommandGap() time.Duration { return t.commandGap }

func (t *Timeouts) SetCommandGap(d time.Duration) { t.commandGap = d }

func (t *Timeouts) ShutdownGrace() time.Duration { return t.shutdownGrace }

func (t *Timeouts) SetShutdownGrace(d time.Duration) { t.shutdownGrace = d }

func (t *Timeouts) WriteBackoff() time.Duration { return t.writeBackoff }

func (t *Timeouts) SetWriteBackoff(d time.Duration) { t.writeBackoff = d }

func (t *Timeouts) WriteAttempts() int { return t.writeAttempts }

func (t *Timeouts) SetWriteAttempts(n int) {
	if n > 0 {
		t.writeAttempts = n
	}
}
