// lockctl pairs with a Kerong BLE lock, prints its battery level and
// provisions a guest credential.
//
// Usage:
//
//	lockctl -addr AA:BB:CC:DD:EE:FF -config lock.yaml -user 1000 -days 7
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"
	"github.com/spf13/cast"

	"github.com/roelbroersma/kerong-BT-lock/lock"
	"github.com/roelbroersma/kerong-BT-lock/transport"
)

var (
	addr       = flag.String("addr", "", "BLE address of the lock")
	configPath = flag.String("config", "lock.yaml", "driver configuration file")
	userID     = flag.String("user", "1000", "user id to provision")
	days       = flag.String("days", "7", "validity window in days")
	once       = flag.Bool("once", false, "one-shot credential")
)

func main() {
	flag.Parse()
	if *addr == "" {
		log.Fatal("missing -addr")
	}

	cfg, err := lock.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("config: %s", err)
	}

	device, err := linux.NewDevice()
	if err != nil {
		log.Fatalf("ble device: %s", err)
	}
	ble.SetDefaultDevice(device)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := ble.Dial(ble.WithSigHandler(ctx, cancel), ble.NewAddr(*addr))
	if err != nil {
		log.Fatalf("dial %s: %s", *addr, err)
	}

	gatt, err := transport.NewGATT(client, "", "")
	if err != nil {
		log.Fatalf("transport: %s", err)
	}

	session, err := lock.NewSession(lock.Options{
		Transport: gatt,
		Config:    cfg,
		Logger:    lock.NewStdLogger(nil, "lockctl: "),
	})
	if err != nil {
		log.Fatalf("session: %s", err)
	}

	if err := session.Connect(); err != nil {
		log.Fatalf("connect: %s", err)
	}
	defer func() {
		if err := session.SystemExit(); err != nil {
			log.Printf("system exit: %s", err)
		}
	}()

	if err := session.PairAndAuthenticate(); err != nil {
		log.Fatalf("authenticate: %s", err)
	}

	battery, err := session.BatteryLevel()
	if err != nil {
		log.Printf("battery: %s", err)
	} else {
		fmt.Printf("battery: %d mV (%.1f%%)\n", battery.VoltageMillivolts, battery.Percentage)
	}

	from := time.Now()
	to := from.AddDate(0, 0, cast.ToInt(*days))

	password, err := session.CreateUser(*userID, from, to, *once)
	if err != nil {
		log.Fatalf("create user %s: %s", *userID, err)
	}
	fmt.Printf("user %s valid until %s, password %s\n", *userID, to.Format("2006-01-02 15:04"), password)

	records, err := session.Users()
	if err != nil {
		log.Fatalf("list users: %s", err)
	}
	for _, rec := range lock.ValidUsers(records) {
		fmt.Printf("  %-6s %s  %s -> %s\n", rec.UserID, rec.Type, rec.ValidFrom, rec.ValidTo)
	}
}
