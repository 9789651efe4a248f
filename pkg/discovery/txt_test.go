package discovery

import (
	"errors"
	"testing"
)

func TestTXTEncode(t *testing.T) {
	txt := TXT{
		Name:               "Living Room",
		UniqueIdentifier:   "4D797FD3-3538-427E-A47B-A32FC6CF3A69",
		ModelName:          "Apple TV",
		SystemBuildVersion: "18K561",
		AllowPairing:       true,
	}
	want := []string{
		"Name=Living Room",
		"UniqueIdentifier=4D797FD3-3538-427E-A47B-A32FC6CF3A69",
		"ModelName=Apple TV",
		"SystemBuildVersion=18K561",
		"AllowPairing=YES",
	}

	got := txt.Encode()
	if len(got) != len(want) {
		t.Fatalf("Encode() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Encode()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestTXTEncodeOmitsEmpty(t *testing.T) {
	txt := TXT{Name: "tv", UniqueIdentifier: "uid"}
	got := txt.Encode()
	if len(got) != 2 {
		t.Errorf("Encode() = %v, want name and identifier only", got)
	}
}

func TestTXTValidate(t *testing.T) {
	tests := []struct {
		name string
		txt  TXT
		ok   bool
	}{
		{"complete", TXT{Name: "tv", UniqueIdentifier: "uid"}, true},
		{"no name", TXT{UniqueIdentifier: "uid"}, false},
		{"no identifier", TXT{Name: "tv"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.txt.Validate()
			if tt.ok && err != nil {
				t.Errorf("Validate() = %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidTXTRecord) {
				t.Errorf("Validate() = %v, want ErrInvalidTXTRecord", err)
			}
		})
	}
}

func TestParseServiceTXT(t *testing.T) {
	records := []string{
		"Name=Bedroom",
		"UniqueIdentifier=abc",
		"AllowPairing=yes",
		"LocalAirPlayReceiverPairingIdentity=ignored",
		"novalue",
		"=empty",
		"ModelName=Apple TV=4K",
	}
	txt := ParseServiceTXT(records)
	if txt.Name != "Bedroom" {
		t.Errorf("Name = %q", txt.Name)
	}
	if txt.UniqueIdentifier != "abc" {
		t.Errorf("UniqueIdentifier = %q", txt.UniqueIdentifier)
	}
	if !txt.AllowPairing {
		t.Error("AllowPairing = false, want true")
	}
	if txt.ModelName != "Apple TV=4K" {
		t.Errorf("ModelName = %q", txt.ModelName)
	}

	m := ParseTXT(records)
	if _, ok := m[""]; ok {
		t.Error("ParseTXT kept an empty key")
	}
	if _, ok := m["novalue"]; ok {
		t.Error("ParseTXT kept a record without '='")
	}
}

func TestTXTRoundTrip(t *testing.T) {
	in := TXT{Name: "tv", UniqueIdentifier: "uid", ModelName: "Apple TV", AllowPairing: true}
	out := ParseServiceTXT(in.Encode())
	if *out != in {
		t.Errorf("round trip = %+v, want %+v", *out, in)
	}
}
