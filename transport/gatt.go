// Package transport binds the lock driver to a BLE GATT link. It only
// adapts an already-connected client; scanning and connection policy stay
// with the caller.
package transport

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-ble/ble"
)

// Characteristic UUIDs of the lock's UART-style GATT service.
const (
	DefaultNotifyCharUUID = "ffe1"
	DefaultWriteCharUUID  = "ffe2"
)

// ErrNotConnected is returned for writes before Connect succeeded.
var ErrNotConnected = errors.New("transport: characteristics not discovered")

// GATT exposes a write/notify characteristic pair of a connected BLE client
// as the lock session's transport.
type GATT struct {
	client     ble.Client
	writeUUID  ble.UUID
	notifyUUID ble.UUID

	mu      sync.Mutex
	write   *ble.Characteristic
	notify  *ble.Characteristic
	handler func([]byte)
}

// NewGATT wraps an established BLE connection. Empty UUIDs select the
// default UART-style characteristics.
func NewGATT(client ble.Client, writeUUID, notifyUUID string) (*GATT, error) {
	if writeUUID == "" {
		writeUUID = DefaultWriteCharUUID
	}
	if notifyUUID == "" {
		notifyUUID = DefaultNotifyCharUUID
	}

	w, err := ble.Parse(writeUUID)
	if err != nil {
		return nil, fmt.Errorf("transport: write uuid: %w", err)
	}
	n, err := ble.Parse(notifyUUID)
	if err != nil {
		return nil, fmt.Errorf("transport: notify uuid: %w", err)
	}

	return &GATT{client: client, writeUUID: w, notifyUUID: n}, nil
}

// OnNotification registers the callback receiving raw inbound frames.
// Must be called before Connect.
func (g *GATT) OnNotification(fn func(data []byte)) {
	g.mu.Lock()
	g.handler = fn
	g.mu.Unlock()
}

// Connect discovers the characteristic pair and subscribes for notifications.
func (g *GATT) Connect() error {
	profile, err := g.client.DiscoverProfile(true)
	if err != nil {
		return fmt.Errorf("transport: profile discovery: %w", err)
	}

	write := profile.FindCharacteristic(ble.NewCharacteristic(g.writeUUID))
	if write == nil {
		return fmt.Errorf("transport: write characteristic %s not found", g.writeUUID)
	}
	notify := profile.FindCharacteristic(ble.NewCharacteristic(g.notifyUUID))
	if notify == nil {
		return fmt.Errorf("transport: notify characteristic %s not found", g.notifyUUID)
	}

	if err := g.client.Subscribe(notify, false, g.dispatch); err != nil {
		return fmt.Errorf("transport: subscribe: %w", err)
	}

	g.mu.Lock()
	g.write = write
	g.notify = notify
	g.mu.Unlock()
	return nil
}

// dispatch copies the notification payload before handing it over: the BLE
// stack reuses its receive buffer.
func (g *GATT) dispatch(data []byte) {
	g.mu.Lock()
	fn := g.handler
	g.mu.Unlock()
	if fn == nil {
		return
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	fn(buf)
}

// Write sends one frame over the write characteristic.
func (g *GATT) Write(data []byte) error {
	g.mu.Lock()
	c := g.write
	g.mu.Unlock()
	if c == nil {
		return ErrNotConnected
	}
	return g.client.WriteCharacteristic(c, data, false)
}

// Disconnect unsubscribes and tears the BLE connection down.
func (g *GATT) Disconnect() error {
	g.mu.Lock()
	notify := g.notify
	g.write = nil
	g.notify = nil
	g.mu.Unlock()

	if notify != nil {
		// Teardown below invalidates the subscription anyway.
		_ = g.client.Unsubscribe(notify, false)
	}
	return g.client.CancelConnection()
}
