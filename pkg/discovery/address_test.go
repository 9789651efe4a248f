package discovery

import (
	"net"
	"testing"
)

func TestSortIPsByPreference(t *testing.T) {
	ips := []net.IP{
		net.ParseIP("fe80::1"),
		net.ParseIP("fd00::1"),
		net.ParseIP("169.254.3.4"),
		net.ParseIP("2001:db8::1"),
		net.ParseIP("192.168.1.10"),
		net.ParseIP("127.0.0.1"),
	}
	want := []string{
		"192.168.1.10",
		"2001:db8::1",
		"fd00::1",
		"fe80::1",
		"169.254.3.4",
		"127.0.0.1",
	}

	sorted := SortIPsByPreference(ips)
	if len(sorted) != len(want) {
		t.Fatalf("len = %d, want %d", len(sorted), len(want))
	}
	for i, ip := range sorted {
		if ip.String() != want[i] {
			t.Errorf("sorted[%d] = %s, want %s", i, ip, want[i])
		}
	}

	// The input is left untouched.
	if ips[0].String() != "fe80::1" {
		t.Errorf("input modified: ips[0] = %s", ips[0])
	}
}

func TestSortIPsByPreferenceShort(t *testing.T) {
	if got := SortIPsByPreference(nil); got != nil {
		t.Errorf("SortIPsByPreference(nil) = %v", got)
	}
	one := []net.IP{net.ParseIP("10.0.0.1")}
	if got := SortIPsByPreference(one); len(got) != 1 || !got[0].Equal(one[0]) {
		t.Errorf("SortIPsByPreference(one) = %v", got)
	}
}
