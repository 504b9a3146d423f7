package lock

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/roelbroersma/kerong-BT-lock/protocol"
	"github.com/roelbroersma/kerong-BT-lock/utils"
)

// BatteryStatus is the decoded reply to a battery query.
type BatteryStatus struct {
	VoltageMillivolts int
	// Percentage is clamped to 0..100 and rounded to one decimal, scaled
	// between the configured min/max millivolt calibration points.
	Percentage float64
}

// BatteryLevel queries the lock's battery voltage. Battery requests are
// single-flight: a second call while one is outstanding fails immediately.
// If the lock does not answer within the reply timeout the pending slot is
// cleared, so a stray late notification is dropped, not misdelivered.
func (s *Session) BatteryLevel() (BatteryStatus, error) {
	s.mu.Lock()
	if s.batteryQueue != nil {
		s.mu.Unlock()
		return BatteryStatus{}, ErrBatteryRequestPending
	}
	queue := utils.NewDeque()
	s.batteryQueue = queue
	s.mu.Unlock()

	clear := func() {
		s.mu.Lock()
		if s.batteryQueue == queue {
			s.batteryQueue = nil
		}
		s.mu.Unlock()
	}

	if err := s.writeCommand(protocol.CmdBattery, nil); err != nil {
		clear()
		return BatteryStatus{}, err
	}

	item, err := queue.Get(s.timeouts.Reply())
	clear()
	if err != nil {
		return BatteryStatus{}, ErrTimeout
	}

	switch v := item.(type) {
	case BatteryStatus:
		return v, nil
	case error:
		return BatteryStatus{}, v
	default:
		return BatteryStatus{}, fmt.Errorf("lock: unexpected battery result %T", item)
	}
}

// onBattery resolves the pending battery request, if any. The voltage is a
// big-endian 16-bit value at payload bytes 8-9.
func (s *Session) onBattery(rsp *protocol.Response) {
	s.mu.Lock()
	queue := s.batteryQueue
	s.batteryQueue = nil
	minMv, maxMv := s.config.BatteryMinMv, s.config.BatteryMaxMv
	s.mu.Unlock()

	if queue == nil {
		s.logger.Warn("stray battery notification dropped", "status", rsp.Status)
		return
	}
	if rsp.Status != protocol.StatusSuccess {
		queue.Put(&DeviceStatusError{Op: "battery query", Status: rsp.Status})
		return
	}
	if len(rsp.Payload) < 10 {
		queue.Put(fmt.Errorf("lock: battery payload too short: %d bytes", len(rsp.Payload)))
		return
	}

	mv := int(binary.BigEndian.Uint16(rsp.Payload[8:10]))
	queue.Put(BatteryStatus{
		VoltageMillivolts: mv,
		Percentage:        batteryPercentage(mv, minMv, maxMv),
	})
}

func batteryPercentage(mv, minMv, maxMv int) float64 {
	if maxMv <= minMv {
		return 0
	}
	pct := float64(mv-minMv) / float64(maxMv-minMv) * 100
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return math.Round(pct*10) / 10
}
