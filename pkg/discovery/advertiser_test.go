package discovery

import (
	"errors"
	"net"
	"sync"
	"testing"
)

type registration struct {
	instance string
	service  string
	domain   string
	port     int
	txt      []string
}

type mockServer struct {
	mu       sync.Mutex
	shutdown bool
}

func (s *mockServer) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shutdown = true
}

type mockServerFactory struct {
	mu      sync.Mutex
	regs    []registration
	servers []*mockServer
	err     error
}

func (f *mockServerFactory) Register(instance, service, domain string, port int, txt []string, ifaces []net.Interface) (MDNSServer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.regs = append(f.regs, registration{instance, service, domain, port, txt})
	s := &mockServer{}
	f.servers = append(f.servers, s)
	return s, nil
}

func testTXT() TXT {
	return TXT{Name: "Living Room", UniqueIdentifier: "uid-1", AllowPairing: true}
}

func TestAdvertiserLifecycle(t *testing.T) {
	factory := &mockServerFactory{}
	a, err := NewAdvertiser(AdvertiserConfig{Port: 5000, ServerFactory: factory})
	if err != nil {
		t.Fatalf("NewAdvertiser() error = %v", err)
	}

	if err := a.Start(testTXT()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !a.IsAdvertising() {
		t.Error("IsAdvertising() = false after Start")
	}
	if a.InstanceName() != "Living Room" {
		t.Errorf("InstanceName() = %q", a.InstanceName())
	}
	if err := a.Start(testTXT()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start() error = %v, want ErrAlreadyStarted", err)
	}

	reg := factory.regs[0]
	if reg.service != Service || reg.domain != DefaultDomain || reg.port != 5000 {
		t.Errorf("registration = %+v", reg)
	}
	if txt := ParseServiceTXT(reg.txt); txt.UniqueIdentifier != "uid-1" || !txt.AllowPairing {
		t.Errorf("registered TXT = %+v", txt)
	}

	if err := a.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if !factory.servers[0].shutdown {
		t.Error("server not shut down on Stop")
	}
	if err := a.Stop(); !errors.Is(err, ErrNotStarted) {
		t.Errorf("second Stop() error = %v, want ErrNotStarted", err)
	}

	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := a.Start(testTXT()); !errors.Is(err, ErrClosed) {
		t.Errorf("Start() after Close error = %v, want ErrClosed", err)
	}
}

func TestAdvertiserSetAllowPairing(t *testing.T) {
	factory := &mockServerFactory{}
	a, err := NewAdvertiser(AdvertiserConfig{ServerFactory: factory})
	if err != nil {
		t.Fatalf("NewAdvertiser() error = %v", err)
	}
	if err := a.SetAllowPairing(false); !errors.Is(err, ErrNotStarted) {
		t.Errorf("SetAllowPairing() before Start error = %v", err)
	}
	if err := a.Start(testTXT()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// Unchanged value does not re-register.
	if err := a.SetAllowPairing(true); err != nil {
		t.Fatalf("SetAllowPairing(true) error = %v", err)
	}
	if len(factory.regs) != 1 {
		t.Fatalf("registrations = %d, want 1", len(factory.regs))
	}

	if err := a.SetAllowPairing(false); err != nil {
		t.Fatalf("SetAllowPairing(false) error = %v", err)
	}
	if len(factory.regs) != 2 {
		t.Fatalf("registrations = %d, want 2", len(factory.regs))
	}
	if !factory.servers[0].shutdown {
		t.Error("old registration not shut down")
	}
	if ParseServiceTXT(factory.regs[1].txt).AllowPairing {
		t.Error("AllowPairing still advertised")
	}
	if reg := factory.regs[1]; reg.port != DefaultPort {
		t.Errorf("port = %d, want %d", reg.port, DefaultPort)
	}
	a.Close()
}

func TestAdvertiserErrors(t *testing.T) {
	if _, err := NewAdvertiser(AdvertiserConfig{Port: 70000}); !errors.Is(err, ErrInvalidPort) {
		t.Errorf("NewAdvertiser(70000) error = %v, want ErrInvalidPort", err)
	}

	a, err := NewAdvertiser(AdvertiserConfig{ServerFactory: &mockServerFactory{}})
	if err != nil {
		t.Fatalf("NewAdvertiser() error = %v", err)
	}
	if err := a.Start(TXT{Name: "tv"}); !errors.Is(err, ErrInvalidTXTRecord) {
		t.Errorf("Start(invalid) error = %v, want ErrInvalidTXTRecord", err)
	}

	boom := errors.New("boom")
	a, err = NewAdvertiser(AdvertiserConfig{ServerFactory: &mockServerFactory{err: boom}})
	if err != nil {
		t.Fatalf("NewAdvertiser() error = %v", err)
	}
	if err := a.Start(testTXT()); !errors.Is(err, boom) {
		t.Errorf("Start() error = %v, want wrapped boom", err)
	}
	if a.IsAdvertising() {
		t.Error("IsAdvertising() = true after failed registration")
	}
}
