package discovery

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"
)

func newTestResolver(t *testing.T, mock *MockMDNSResolver) *Resolver {
	t.Helper()
	r, err := NewResolver(ResolverConfig{
		MDNSResolver:  mock,
		BrowseTimeout: 100 * time.Millisecond,
		LookupTimeout: 100 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}
	return r
}

func TestResolverBrowse(t *testing.T) {
	mock := NewMockMDNSResolver()
	mock.RegisterService(MockService("Living Room", "uid-1", 49152, net.ParseIP("192.168.1.10")))
	mock.RegisterService(MockService("Bedroom", "uid-2", 49153, net.ParseIP("192.168.1.11")))
	// Duplicate announcements are reported once.
	mock.RegisterService(MockService("Living Room", "uid-1", 49152, net.ParseIP("192.168.1.10")))

	r := newTestResolver(t, mock)
	services, err := r.Browse(context.Background())
	if err != nil {
		t.Fatalf("Browse() error = %v", err)
	}

	found := make(map[string]ResolvedService)
	for svc := range services {
		if _, dup := found[svc.Name]; dup {
			t.Errorf("duplicate service %s", svc.Name)
		}
		found[svc.Name] = svc
	}
	if len(found) != 2 {
		t.Fatalf("found %d services, want 2", len(found))
	}

	svc := found["Living Room"]
	if svc.UniqueIdentifier != "uid-1" {
		t.Errorf("UniqueIdentifier = %q", svc.UniqueIdentifier)
	}
	addr, err := svc.Address()
	if err != nil {
		t.Fatalf("Address() error = %v", err)
	}
	if addr != "192.168.1.10:49152" {
		t.Errorf("Address() = %q", addr)
	}
	if txt := svc.TXT(); !txt.AllowPairing || txt.ModelName != "Apple TV" {
		t.Errorf("TXT() = %+v", txt)
	}
}

func TestResolverBrowseCancel(t *testing.T) {
	r := newTestResolver(t, NewMockMDNSResolver())

	ctx, cancel := context.WithCancel(context.Background())
	services, err := r.Browse(ctx)
	if err != nil {
		t.Fatalf("Browse() error = %v", err)
	}
	cancel()

	select {
	case _, ok := <-services:
		if ok {
			t.Error("received a service from an empty resolver")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
}

func TestResolverLookup(t *testing.T) {
	mock := NewMockMDNSResolver()
	mock.RegisterService(MockService("Living Room", "uid-1", 49152, net.ParseIP("192.168.1.10")))

	r := newTestResolver(t, mock)

	svc, err := r.Lookup(context.Background(), "Living Room")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if svc.Port != 49152 || svc.Host != "Living Room.local." {
		t.Errorf("Lookup() = %+v", svc)
	}

	_, err = r.Lookup(context.Background(), "Kitchen")
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("Lookup(unknown) error = %v, want ErrTimeout", err)
	}
}

func TestResolverFind(t *testing.T) {
	mock := NewMockMDNSResolver()
	mock.RegisterService(MockService("Living Room", "uid-1", 49152, net.ParseIP("192.168.1.10")))
	mock.RegisterService(MockService("Bedroom", "uid-2", 49153, net.ParseIP("192.168.1.11")))

	r := newTestResolver(t, mock)

	svc, err := r.Find(context.Background(), "uid-2")
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if svc.Name != "Bedroom" {
		t.Errorf("Find() = %s, want Bedroom", svc.Name)
	}

	_, err = r.Find(context.Background(), "uid-3")
	if !errors.Is(err, ErrServiceNotFound) {
		t.Errorf("Find(unknown) error = %v, want ErrServiceNotFound", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Find(ctx, "uid-3")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Find(canceled) error = %v, want context.Canceled", err)
	}
}

func TestResolvedServiceNoAddress(t *testing.T) {
	svc := ResolvedService{Name: "tv", Port: 49152}
	if svc.PreferredIP() != nil {
		t.Error("PreferredIP() != nil")
	}
	if _, err := svc.Address(); !errors.Is(err, ErrNoAddresses) {
		t.Errorf("Address() error = %v, want ErrNoAddresses", err)
	}
}
