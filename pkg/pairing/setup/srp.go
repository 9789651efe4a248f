package setup

import (
	"crypto/sha512"
	"errors"
	"fmt"
	"io"

	"github.com/backkem/mediaremote/pkg/crypto"
	"github.com/backkem/mediaremote/pkg/pairing/messages"
	"github.com/tadglines/go-pkgs/crypto/srp"
)

// SRP parameters.
const (
	srpGroup    = "rfc5054.3072"
	srpUsername = "Pair-Setup"

	// SaltSize is the SRP salt length.
	SaltSize = 16

	// PublicKeySize is the length of the SRP ephemeral public values.
	PublicKeySize = 384

	// CodeLength is the number of digits in a setup code.
	CodeLength = 4
)

// HKDF salt and info literals.
const (
	encryptSalt        = "Pair-Setup-Encrypt-Salt"
	encryptInfo        = "Pair-Setup-Encrypt-Info"
	controllerSignSalt = "Pair-Setup-Controller-Sign-Salt"
	controllerSignInfo = "Pair-Setup-Controller-Sign-Info"
	accessorySignSalt  = "Pair-Setup-Accessory-Sign-Salt"
	accessorySignInfo  = "Pair-Setup-Accessory-Sign-Info"
)

// Errors
var (
	ErrInvalidCode   = errors.New("setup: setup code must be 4 digits")
	ErrNoSessionKey  = errors.New("setup: SRP session key not computed")
	ErrInvalidParams = errors.New("setup: invalid SRP parameters")
)

func newSRP() (*srp.SRP, error) {
	s, err := srp.NewSRP(srpGroup, sha512.New, keyDerivation([]byte(srpUsername)))
	if err != nil {
		return nil, err
	}
	s.SaltLength = SaltSize
	return s, nil
}

// keyDerivation returns x = H(s | H(I | ":" | P)).
func keyDerivation(username []byte) srp.KeyDerivationFunc {
	return func(salt, pin []byte) []byte {
		h := sha512.New()
		h.Write(username)
		h.Write([]byte(":"))
		h.Write(pin)
		inner := h.Sum(nil)
		h.Reset()
		h.Write(salt)
		h.Write(inner)
		return h.Sum(nil)
	}
}

// ValidateCode checks that code is four decimal digits.
func ValidateCode(code string) error {
	if len(code) != CodeLength {
		return ErrInvalidCode
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			return ErrInvalidCode
		}
	}
	return nil
}

// GenerateCode returns a random zero-padded four digit setup code.
func GenerateCode(r io.Reader) (string, error) {
	var buf [2]byte
	for {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return "", err
		}
		n := int(buf[0])<<8 | int(buf[1])
		// Reject the tail so every code is equally likely.
		if n < 60000 {
			return fmt.Sprintf("%04d", n%10000), nil
		}
	}
}

// sessionKeys holds the keys derived from the SRP session key.
type sessionKeys struct {
	encrypt        []byte
	controllerSign []byte
	accessorySign  []byte
}

func deriveSessionKeys(k []byte) (*sessionKeys, error) {
	enc, err := crypto.DeriveKey(k, encryptSalt, encryptInfo)
	if err != nil {
		return nil, err
	}
	ctrl, err := crypto.DeriveKey(k, controllerSignSalt, controllerSignInfo)
	if err != nil {
		return nil, err
	}
	acc, err := crypto.DeriveKey(k, accessorySignSalt, accessorySignInfo)
	if err != nil {
		return nil, err
	}
	return &sessionKeys{encrypt: enc, controllerSign: ctrl, accessorySign: acc}, nil
}

func (k *sessionKeys) wipe() {
	crypto.Wipe(k.encrypt)
	crypto.Wipe(k.controllerSign)
	crypto.Wipe(k.accessorySign)
}

// ControllerSRP is the client half of the SRP exchange.
//
// Usage:
//
//	c, _ := setup.NewControllerSRP()
//	c.SetServerParams(salt, B)   // from M2
//	c.SetPassword(pin)
//	c.PublicKey(), c.Proof()     // into M3
//	c.VerifyProof(proof)         // from M4
type ControllerSRP struct {
	srp     *srp.SRP
	session *srp.ClientSession

	salt    []byte
	serverB []byte
	key     []byte
	proof   []byte
	keys    *sessionKeys
}

// NewControllerSRP creates the client side of the exchange.
func NewControllerSRP() (*ControllerSRP, error) {
	s, err := newSRP()
	if err != nil {
		return nil, err
	}
	return &ControllerSRP{srp: s}, nil
}

// SetServerParams records the salt and server public value from M2.
func (c *ControllerSRP) SetServerParams(salt, serverPublicKey []byte) error {
	if len(salt) == 0 || len(serverPublicKey) == 0 {
		return ErrInvalidParams
	}
	c.salt = append([]byte(nil), salt...)
	c.serverB = append([]byte(nil), serverPublicKey...)
	return nil
}

// SetPassword derives the shared secret from the PIN and computes the
// client proof and the keys derived from it.
func (c *ControllerSRP) SetPassword(pin string) error {
	if c.serverB == nil {
		return ErrInvalidParams
	}

	c.session = c.srp.NewClientSession([]byte(srpUsername), []byte(pin))
	key, err := c.session.ComputeKey(c.salt, c.serverB)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	keys, err := deriveSessionKeys(key)
	if err != nil {
		return err
	}

	c.key = key
	c.keys = keys
	c.proof = c.session.ComputeAuthenticator()
	return nil
}

// PublicKey returns the client public value A.
func (c *ControllerSRP) PublicKey() []byte {
	if c.session == nil {
		return nil
	}
	return c.session.GetA()
}

// Proof returns the client proof M1.
func (c *ControllerSRP) Proof() []byte {
	return c.proof
}

// VerifyProof checks the server proof from M4.
func (c *ControllerSRP) VerifyProof(proof []byte) error {
	if c.session == nil {
		return ErrNoSessionKey
	}
	if !c.session.VerifyServerAuthenticator(proof) {
		return messages.ErrProofMismatch
	}
	return nil
}

// EncryptionKey returns the key protecting M5 and M6.
func (c *ControllerSRP) EncryptionKey() []byte {
	if c.keys == nil {
		return nil
	}
	return c.keys.encrypt
}

// SignatureMaterial returns the controller's HKDF signature prefix.
func (c *ControllerSRP) SignatureMaterial() []byte {
	if c.keys == nil {
		return nil
	}
	return c.keys.controllerSign
}

// PeerSignatureMaterial returns the accessory's HKDF signature prefix.
func (c *ControllerSRP) PeerSignatureMaterial() []byte {
	if c.keys == nil {
		return nil
	}
	return c.keys.accessorySign
}

// Wipe clears derived secrets.
func (c *ControllerSRP) Wipe() {
	crypto.Wipe(c.key)
	if c.keys != nil {
		c.keys.wipe()
	}
}

// AccessorySRP is the server half of the SRP exchange. A fresh salt and
// private value are generated at construction.
type AccessorySRP struct {
	session *srp.ServerSession
	salt    []byte

	key  []byte
	keys *sessionKeys
}

// NewAccessorySRP creates the server side of the exchange for a setup code.
func NewAccessorySRP(code string) (*AccessorySRP, error) {
	if err := ValidateCode(code); err != nil {
		return nil, err
	}

	s, err := newSRP()
	if err != nil {
		return nil, err
	}
	salt, verifier, err := s.ComputeVerifier([]byte(code))
	if err != nil {
		return nil, err
	}

	return &AccessorySRP{
		session: s.NewServerSession([]byte(srpUsername), salt, verifier),
		salt:    salt,
	}, nil
}

// Salt returns the SRP salt.
func (a *AccessorySRP) Salt() []byte {
	return a.salt
}

// PublicKey returns the server public value B.
func (a *AccessorySRP) PublicKey() []byte {
	return a.session.GetB()
}

// SetClientPublicKey computes the session key from the client value A.
// It must be called before VerifyProof.
func (a *AccessorySRP) SetClientPublicKey(clientPublicKey []byte) error {
	key, err := a.session.ComputeKey(clientPublicKey)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	keys, err := deriveSessionKeys(key)
	if err != nil {
		return err
	}
	a.key = key
	a.keys = keys
	return nil
}

// VerifyProof checks the client proof from M3 and returns the server proof
// for M4.
func (a *AccessorySRP) VerifyProof(proof []byte) ([]byte, error) {
	if a.key == nil {
		return nil, ErrNoSessionKey
	}
	if !a.session.VerifyClientAuthenticator(proof) {
		return nil, messages.ErrProofMismatch
	}
	return a.session.ComputeAuthenticator(proof), nil
}

// EncryptionKey returns the key protecting M5 and M6.
func (a *AccessorySRP) EncryptionKey() []byte {
	if a.keys == nil {
		return nil
	}
	return a.keys.encrypt
}

// SignatureMaterial returns the accessory's HKDF signature prefix.
func (a *AccessorySRP) SignatureMaterial() []byte {
	if a.keys == nil {
		return nil
	}
	return a.keys.accessorySign
}

// PeerSignatureMaterial returns the controller's HKDF signature prefix.
func (a *AccessorySRP) PeerSignatureMaterial() []byte {
	if a.keys == nil {
		return nil
	}
	return a.keys.controllerSign
}

// Wipe clears derived secrets.
func (a *AccessorySRP) Wipe() {
	crypto.Wipe(a.key)
	if a.keys != nil {
		a.keys.wipe()
	}
}
