// Package integration provides end-to-end tests that run a controller and
// an accessory against each other over in-memory streams.
package integration

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/backkem/mediaremote/pkg/credentials"
	"github.com/backkem/mediaremote/pkg/mediaremote"
	"github.com/backkem/mediaremote/pkg/message"
	"github.com/backkem/mediaremote/pkg/storage"
	"github.com/backkem/mediaremote/pkg/transport"
	"github.com/pion/logging"
	"github.com/prometheus/client_golang/prometheus"
)

// AccessoryUID is the unique identifier the test accessory announces.
const AccessoryUID = "5E3B6C2A-1F0D-4B8E-9A77-0C41D2E8F9A1"

// TestAccessory is an accessory backed by a SQLite store.
type TestAccessory struct {
	Accessory *mediaremote.Accessory
	Store     *storage.SQLite
	Metrics   *transport.Metrics

	pins     chan string
	Messages chan *message.Message
}

// NewTestAccessory creates an accessory with a fresh identity and store.
func NewTestAccessory(t *testing.T, lf logging.LoggerFactory) *TestAccessory {
	t.Helper()

	store, err := storage.NewSQLite(filepath.Join(t.TempDir(), "accessory.db"))
	if err != nil {
		t.Fatalf("NewSQLite() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	identity, err := credentials.GenerateIdentity(nil, AccessoryUID)
	if err != nil {
		t.Fatalf("GenerateIdentity() error = %v", err)
	}
	if err := store.SaveIdentity(identity); err != nil {
		t.Fatalf("SaveIdentity() error = %v", err)
	}

	ta := &TestAccessory{
		Store:    store,
		Metrics:  transport.NewMetrics(prometheus.NewRegistry()),
		pins:     make(chan string, 4),
		Messages: make(chan *message.Message, 16),
	}

	info := mediaremote.DefaultDeviceInfo("Test TV", AccessoryUID)
	info.LocalizedModelName = "Apple TV"
	ta.Accessory, err = mediaremote.NewAccessory(mediaremote.AccessoryConfig{
		Identity: identity,
		Store:    store,
		Info:     info,
		OnPIN:    func(code string) { ta.pins <- code },
		OnMessage: func(conn *transport.Conn, msg *message.Message) {
			ta.Messages <- msg
		},
		Conn:          transport.ConnConfig{Metrics: ta.Metrics},
		LoggerFactory: lf,
	})
	if err != nil {
		t.Fatalf("NewAccessory() error = %v", err)
	}
	return ta
}

// PIN returns the code the accessory displayed for the current attempt.
func (ta *TestAccessory) PIN(ctx context.Context) (string, error) {
	select {
	case code := <-ta.pins:
		return code, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Connect opens a new controller connection to the accessory over a
// chunked pipe and returns the Device.
func (ta *TestAccessory) Connect(t *testing.T, config transport.PipeConfig, lf logging.LoggerFactory) *mediaremote.Device {
	t.Helper()

	pipe := transport.NewPipeWithConfig(config)
	accConn, err := ta.Accessory.ServeConn(pipe.Conn1())
	if err != nil {
		t.Fatalf("ServeConn() error = %v", err)
	}

	conn := transport.NewConn(pipe.Conn0(), transport.ConnConfig{
		RequestTimeout: 5 * time.Second,
		LoggerFactory:  lf,
	})
	dev, err := mediaremote.NewDevice(conn, mediaremote.DeviceConfig{LoggerFactory: lf})
	if err != nil {
		t.Fatalf("NewDevice() error = %v", err)
	}
	if err := conn.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	t.Cleanup(func() {
		dev.Close()
		accConn.Close()
		pipe.Close()
	})
	return dev
}

// ChunkedPipe returns a pipe config that splits writes into small pieces.
func ChunkedPipe() transport.PipeConfig {
	config := transport.DefaultPipeConfig()
	config.ChunkSize = 7
	return config
}
