package modbus_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbrandon/mbserver"

	"github.com/luftujha/luftujha-core/internal/bridges/modbus"
)

// startServer starts an in-process Modbus TCP server for testing.
func startServer(t *testing.T, addr string) *mbserver.Server {
	t.Helper()

	srv := mbserver.NewServer()
	if err := srv.ListenTCP(addr); err != nil {
		t.Fatalf("ListenTCP(%s) error = %v", addr, err)
	}
	t.Cleanup(srv.Close)
	return srv
}

func testClientConfig(port int) modbus.Config {
	return modbus.Config{
		Host:           "127.0.0.1",
		Port:           port,
		UnitID:         1,
		Timeout:        2 * time.Second,
		ReconnectDelay: time.Minute, // keep retries out of the test window
	}
}

func TestClientReadHoldingRegisters(t *testing.T) {
	srv := startServer(t, "127.0.0.1:15502")
	srv.HoldingRegisters[10704] = 65
	srv.HoldingRegisters[10705] = 1
	srv.HoldingRegisters[10706] = 220

	client := modbus.NewClient(testClientConfig(15502))
	defer client.Close()

	got, err := client.ReadHoldingRegisters(context.Background(), 10704, 3)
	if err != nil {
		t.Fatalf("ReadHoldingRegisters() error = %v", err)
	}

	want := []uint16{65, 1, 220}
	for i, v := range want {
		if got[i] != v {
			t.Errorf("register[%d] = %d, want %d", i, got[i], v)
		}
	}
}

func TestClientWriteRegister(t *testing.T) {
	srv := startServer(t, "127.0.0.1:15503")

	client := modbus.NewClient(testClientConfig(15503))
	defer client.Close()

	if err := client.WriteRegister(context.Background(), 10708, 70); err != nil {
		t.Fatalf("WriteRegister() error = %v", err)
	}

	if got := srv.HoldingRegisters[10708]; got != 70 {
		t.Errorf("server register 10708 = %d, want 70", got)
	}
}

func TestClientWriteRegisters(t *testing.T) {
	srv := startServer(t, "127.0.0.1:15514")

	client := modbus.NewClient(testClientConfig(15514))
	defer client.Close()

	if err := client.WriteRegisters(context.Background(), 10700, []uint16{5, 70, 220}); err != nil {
		t.Fatalf("WriteRegisters() error = %v", err)
	}

	for i, want := range []uint16{5, 70, 220} {
		if got := srv.HoldingRegisters[10700+i]; got != want {
			t.Errorf("server register %d = %d, want %d", 10700+i, got, want)
		}
	}

	if err := client.WriteRegisters(context.Background(), 0, nil); !errors.Is(err, modbus.ErrInvalidQuantity) {
		t.Errorf("empty values error = %v, want ErrInvalidQuantity", err)
	}
}

func TestClientReadInputRegisters(t *testing.T) {
	srv := startServer(t, "127.0.0.1:15504")
	srv.InputRegisters[100] = 42

	client := modbus.NewClient(testClientConfig(15504))
	defer client.Close()

	got, err := client.ReadInputRegisters(context.Background(), 100, 1)
	if err != nil {
		t.Fatalf("ReadInputRegisters() error = %v", err)
	}
	if got[0] != 42 {
		t.Errorf("register = %d, want 42", got[0])
	}
}

func TestClientInvalidQuantity(t *testing.T) {
	client := modbus.NewClient(testClientConfig(15505))
	defer client.Close()

	if _, err := client.ReadHoldingRegisters(context.Background(), 0, 0); !errors.Is(err, modbus.ErrInvalidQuantity) {
		t.Errorf("quantity 0 error = %v, want ErrInvalidQuantity", err)
	}
	if _, err := client.ReadHoldingRegisters(context.Background(), 0, 200); !errors.Is(err, modbus.ErrInvalidQuantity) {
		t.Errorf("quantity 200 error = %v, want ErrInvalidQuantity", err)
	}
}

func TestClientConnectFailure(t *testing.T) {
	// Nothing listens on this port.
	client := modbus.NewClient(testClientConfig(15599))
	defer client.Close()

	err := client.Connect(context.Background())
	if !errors.Is(err, modbus.ErrConnectionFailed) {
		t.Fatalf("Connect() error = %v, want ErrConnectionFailed", err)
	}

	// A retry is now pending; operations fail fast instead of re-dialling.
	_, err = client.ReadHoldingRegisters(context.Background(), 0, 1)
	if !errors.Is(err, modbus.ErrNotConnected) {
		t.Errorf("read during retry window error = %v, want ErrNotConnected", err)
	}
}

func TestClientCancelledContext(t *testing.T) {
	client := modbus.NewClient(testClientConfig(15506))
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := client.ReadHoldingRegisters(ctx, 0, 1); !errors.Is(err, context.Canceled) {
		t.Errorf("read error = %v, want context.Canceled", err)
	}
}

func TestClientClosed(t *testing.T) {
	client := modbus.NewClient(testClientConfig(15507))
	client.Close()

	if _, err := client.ReadHoldingRegisters(context.Background(), 0, 1); !errors.Is(err, modbus.ErrClosed) {
		t.Errorf("read after Close error = %v, want ErrClosed", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestClientRecoversAfterServerRestart(t *testing.T) {
	srv := mbserver.NewServer()
	if err := srv.ListenTCP("127.0.0.1:15508"); err != nil {
		t.Fatalf("ListenTCP error = %v", err)
	}
	srv.HoldingRegisters[10] = 7

	cfg := testClientConfig(15508)
	cfg.ReconnectDelay = 50 * time.Millisecond

	client := modbus.NewClient(cfg)
	defer client.Close()

	if _, err := client.ReadHoldingRegisters(context.Background(), 10, 1); err != nil {
		t.Fatalf("initial read error = %v", err)
	}

	srv.Close()

	// The read after the server is gone must fail and drop the connection.
	if _, err := client.ReadHoldingRegisters(context.Background(), 10, 1); err == nil {
		t.Fatal("read against closed server succeeded, want error")
	}

	srv2 := mbserver.NewServer()
	if err := srv2.ListenTCP("127.0.0.1:15508"); err != nil {
		t.Fatalf("restart ListenTCP error = %v", err)
	}
	t.Cleanup(srv2.Close)
	srv2.HoldingRegisters[10] = 9

	// Wait for the background reconnect to land.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		got, err := client.ReadHoldingRegisters(context.Background(), 10, 1)
		if err == nil && got[0] == 9 {
			return
		}
		time.Sleep(25 * time.Millisecond)
	}
	t.Fatal("client did not recover after server restart")
}

func TestWithEphemeral(t *testing.T) {
	srv := startServer(t, "127.0.0.1:15509")
	srv.HoldingRegisters[10704] = 65

	cfg := testClientConfig(15509)
	err := modbus.WithEphemeral(context.Background(), cfg, func(tr modbus.Transport) error {
		got, err := tr.ReadHoldingRegisters(context.Background(), 10704, 1)
		if err != nil {
			return err
		}
		if got[0] != 65 {
			t.Errorf("register = %d, want 65", got[0])
		}
		return tr.WriteRegister(context.Background(), 10700, 0)
	})
	if err != nil {
		t.Fatalf("WithEphemeral() error = %v", err)
	}

	if got := srv.HoldingRegisters[10700]; got != 0 {
		t.Errorf("server register 10700 = %d, want 0", got)
	}
}

func TestWithEphemeralConnectError(t *testing.T) {
	cfg := testClientConfig(15598) // nothing listening

	called := false
	err := modbus.WithEphemeral(context.Background(), cfg, func(modbus.Transport) error {
		called = true
		return nil
	})
	if !errors.Is(err, modbus.ErrConnectionFailed) {
		t.Errorf("WithEphemeral() error = %v, want ErrConnectionFailed", err)
	}
	if called {
		t.Error("fn was called despite connection failure")
	}
}

func TestWithEphemeralPropagatesError(t *testing.T) {
	startServer(t, "127.0.0.1:15510")

	sentinel := errors.New("plan aborted")
	err := modbus.WithEphemeral(context.Background(), testClientConfig(15510), func(modbus.Transport) error {
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Errorf("WithEphemeral() error = %v, want sentinel", err)
	}
}

func TestConfigIdentity(t *testing.T) {
	cfg := modbus.Config{Host: "10.0.0.5", Port: 502, UnitID: 2}
	if got := cfg.Identity(); got != "10.0.0.5:502/2" {
		t.Errorf("Identity() = %q, want 10.0.0.5:502/2", got)
	}
}

func TestPoolDeduplicates(t *testing.T) {
	pool := modbus.NewPool()
	defer pool.Close()

	cfg := testClientConfig(15511)

	a, err := pool.Get(cfg)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	b, err := pool.Get(cfg)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if a != b {
		t.Error("Get() returned different clients for the same endpoint")
	}
	if pool.Size() != 1 {
		t.Errorf("Size() = %d, want 1", pool.Size())
	}
}

func TestPoolInvalidate(t *testing.T) {
	pool := modbus.NewPool()
	defer pool.Close()

	cfg := testClientConfig(15512)

	a, _ := pool.Get(cfg)
	pool.Invalidate(cfg.Identity())

	if pool.Size() != 0 {
		t.Errorf("Size() after Invalidate = %d, want 0", pool.Size())
	}

	b, _ := pool.Get(cfg)
	if a == b {
		t.Error("Get() after Invalidate returned the retired client")
	}
}

func TestPoolClosed(t *testing.T) {
	pool := modbus.NewPool()
	pool.Close()

	if _, err := pool.Get(testClientConfig(15513)); !errors.Is(err, modbus.ErrClosed) {
		t.Errorf("Get() after Close error = %v, want ErrClosed", err)
	}
}
