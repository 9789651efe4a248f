package verify

import (
	"bytes"
	"crypto/rand"
	"errors"
	"fmt"
	"testing"

	"github.com/backkem/mediaremote/pkg/credentials"
	"github.com/backkem/mediaremote/pkg/crypto"
	"github.com/backkem/mediaremote/pkg/pairing/messages"
	"github.com/backkem/mediaremote/pkg/tlv8"
)

type fixture struct {
	ctrlID *credentials.Identity
	accID  *credentials.Identity
	creds  *credentials.Credentials
	peers  map[string]*credentials.Peer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctrlID, err := credentials.GenerateIdentity(rand.Reader, "")
	if err != nil {
		t.Fatalf("GenerateIdentity failed: %v", err)
	}
	accID, err := credentials.GenerateIdentity(rand.Reader, "accessory")
	if err != nil {
		t.Fatalf("GenerateIdentity failed: %v", err)
	}
	return &fixture{
		ctrlID: ctrlID,
		accID:  accID,
		creds:  credentials.New("uid", accID.ID, ctrlID.ID, accID.PublicKey(), ctrlID.Seed),
		peers: map[string]*credentials.Peer{
			string(ctrlID.ID): {ID: ctrlID.ID, PublicKey: ctrlID.PublicKey()},
		},
	}
}

func (f *fixture) lookup(id []byte) (*credentials.Peer, error) {
	p, ok := f.peers[string(id)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", messages.ErrUnknownPeer, id)
	}
	return p, nil
}

func (f *fixture) machines(t *testing.T) (*Controller, *Accessory) {
	t.Helper()
	c, err := NewController(f.creds)
	if err != nil {
		t.Fatalf("NewController failed: %v", err)
	}
	a, err := NewAccessory(f.accID, f.lookup)
	if err != nil {
		t.Fatalf("NewAccessory failed: %v", err)
	}
	return c, a
}

func TestPairVerify(t *testing.T) {
	f := newFixture(t)
	c, a := f.machines(t)

	m1, err := c.Start()
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	m2, err := a.HandleM1(m1)
	if err != nil {
		t.Fatalf("HandleM1 failed: %v", err)
	}
	m3, err := c.HandleM2(m2)
	if err != nil {
		t.Fatalf("HandleM2 failed: %v", err)
	}
	m4, result, err := a.HandleM3(m3)
	if err != nil {
		t.Fatalf("HandleM3 failed: %v", err)
	}
	keys, err := c.HandleM4(m4)
	if err != nil {
		t.Fatalf("HandleM4 failed: %v", err)
	}

	if !bytes.Equal(keys.Write, result.Keys.Read) {
		t.Error("controller write key != accessory read key")
	}
	if !bytes.Equal(keys.Read, result.Keys.Write) {
		t.Error("controller read key != accessory write key")
	}
	if bytes.Equal(keys.Read, keys.Write) {
		t.Error("read and write keys must differ")
	}
	if !bytes.Equal(result.Peer.ID, f.ctrlID.ID) {
		t.Errorf("peer = %s, want %s", result.Peer.ID, f.ctrlID.ID)
	}
	if c.State() != StateComplete || a.State() != StateComplete {
		t.Errorf("states = %s/%s, want Complete", c.State(), a.State())
	}

	// Installed keys interoperate in both directions.
	if err := f.creds.SetSessionKeys(keys.Read, keys.Write); err != nil {
		t.Fatalf("SetSessionKeys failed: %v", err)
	}
	acc := credentials.New("", result.Peer.ID, f.accID.ID, result.Peer.PublicKey, f.accID.Seed)
	if err := acc.SetSessionKeys(result.Keys.Read, result.Keys.Write); err != nil {
		t.Fatalf("SetSessionKeys failed: %v", err)
	}
	sealed, _ := f.creds.Encrypt([]byte("to accessory"))
	if plain, err := acc.Decrypt(sealed); err != nil || string(plain) != "to accessory" {
		t.Errorf("accessory Decrypt = %q, %v", plain, err)
	}
	sealed, _ = acc.Encrypt([]byte("to controller"))
	if plain, err := f.creds.Decrypt(sealed); err != nil || string(plain) != "to controller" {
		t.Errorf("controller Decrypt = %q, %v", plain, err)
	}
}

func TestPairVerifyFreshKeysEachRun(t *testing.T) {
	f := newFixture(t)
	run := func() *SessionKeys {
		c, a := f.machines(t)
		m1, _ := c.Start()
		m2, _ := a.HandleM1(m1)
		m3, _ := c.HandleM2(m2)
		m4, _, _ := a.HandleM3(m3)
		keys, err := c.HandleM4(m4)
		if err != nil {
			t.Fatalf("verify failed: %v", err)
		}
		return keys
	}
	if bytes.Equal(run().Write, run().Write) {
		t.Error("two verify runs derived the same key")
	}
}

func TestIdentifierMismatch(t *testing.T) {
	f := newFixture(t)
	f.creds.RemoteID = []byte("someone-else")
	c, a := f.machines(t)

	m1, _ := c.Start()
	m2, _ := a.HandleM1(m1)
	if _, err := c.HandleM2(m2); !errors.Is(err, messages.ErrIdentifierMismatch) {
		t.Fatalf("HandleM2 error = %v, want ErrIdentifierMismatch", err)
	}
	if c.State() != StateFailed || c.SessionKeys() != nil {
		t.Error("controller must fail without keys")
	}
}

func TestSignatureMismatch(t *testing.T) {
	f := newFixture(t)
	other, _ := credentials.GenerateIdentity(rand.Reader, "")
	f.creds.PeerPublicKey = other.PublicKey()
	c, a := f.machines(t)

	m1, _ := c.Start()
	m2, _ := a.HandleM1(m1)
	if _, err := c.HandleM2(m2); !errors.Is(err, messages.ErrSignatureMismatch) {
		t.Fatalf("HandleM2 error = %v, want ErrSignatureMismatch", err)
	}
}

func TestControllerSignatureMismatch(t *testing.T) {
	f := newFixture(t)
	other, _ := credentials.GenerateIdentity(rand.Reader, "")
	f.peers[string(f.ctrlID.ID)] = &credentials.Peer{ID: f.ctrlID.ID, PublicKey: other.PublicKey()}
	c, a := f.machines(t)

	m1, _ := c.Start()
	m2, _ := a.HandleM1(m1)
	m3, err := c.HandleM2(m2)
	if err != nil {
		t.Fatalf("HandleM2 failed: %v", err)
	}
	reply, result, err := a.HandleM3(m3)
	if !errors.Is(err, messages.ErrSignatureMismatch) {
		t.Fatalf("HandleM3 error = %v, want ErrSignatureMismatch", err)
	}
	if result != nil {
		t.Error("accessory produced keys for a bad signature")
	}

	var pe *messages.PeerError
	if _, err := c.HandleM4(reply); !errors.As(err, &pe) {
		t.Errorf("HandleM4 error = %v, want *PeerError", err)
	}
}

func TestUnknownController(t *testing.T) {
	f := newFixture(t)
	delete(f.peers, string(f.ctrlID.ID))
	c, a := f.machines(t)

	m1, _ := c.Start()
	m2, _ := a.HandleM1(m1)
	m3, _ := c.HandleM2(m2)
	reply, _, err := a.HandleM3(m3)
	if !errors.Is(err, messages.ErrUnknownPeer) {
		t.Fatalf("HandleM3 error = %v, want ErrUnknownPeer", err)
	}
	rec, _ := tlv8.Decode(reply)
	if code, _ := rec.Byte(tlv8.TagErrorCode); messages.ErrorCode(code) != messages.ErrorAuthentication {
		t.Errorf("reply code = %d, want Authentication", code)
	}
}

func TestTamperedM2(t *testing.T) {
	f := newFixture(t)
	c, a := f.machines(t)

	m1, _ := c.Start()
	m2, _ := a.HandleM1(m1)
	rec, _ := tlv8.Decode(m2)
	pub, _ := rec.Get(tlv8.TagPublicKey)
	enc, _ := rec.Get(tlv8.TagEncryptedData)
	enc = append([]byte(nil), enc...)
	enc[0] ^= 0xFF

	bad := tlv8.Encode(
		tlv8.Byte(tlv8.TagSequence, messages.M2),
		tlv8.Bytes(tlv8.TagPublicKey, pub),
		tlv8.Bytes(tlv8.TagEncryptedData, enc),
	)
	if _, err := c.HandleM2(bad); !errors.Is(err, crypto.ErrDecryptFailure) {
		t.Errorf("HandleM2 error = %v, want ErrDecryptFailure", err)
	}
}

func TestSequenceMismatchIgnored(t *testing.T) {
	f := newFixture(t)
	c, a := f.machines(t)

	m1, _ := c.Start()
	m2, _ := a.HandleM1(m1)

	if _, err := c.HandleM2(tlv8.Encode(tlv8.Byte(tlv8.TagSequence, messages.M4))); !errors.Is(err, messages.ErrSequenceMismatch) {
		t.Fatalf("HandleM2 error = %v, want ErrSequenceMismatch", err)
	}
	if c.State() != StateWaitingM2 {
		t.Fatalf("state = %s, want WaitingM2", c.State())
	}
	if _, err := c.HandleM2(m2); err != nil {
		t.Fatalf("HandleM2 failed: %v", err)
	}
}

func TestAccessoryRestart(t *testing.T) {
	f := newFixture(t)
	a, _ := NewAccessory(f.accID, f.lookup)

	// An abandoned attempt followed by a new controller M1.
	c1, _ := NewController(f.creds)
	m1, _ := c1.Start()
	if _, err := a.HandleM1(m1); err != nil {
		t.Fatalf("HandleM1 failed: %v", err)
	}

	c2, _ := NewController(f.creds)
	m1, _ = c2.Start()
	m2, err := a.HandleM1(m1)
	if err != nil {
		t.Fatalf("HandleM1 restart failed: %v", err)
	}
	m3, err := c2.HandleM2(m2)
	if err != nil {
		t.Fatalf("HandleM2 failed: %v", err)
	}
	if _, _, err := a.HandleM3(m3); err != nil {
		t.Fatalf("HandleM3 failed: %v", err)
	}
}
