package mediaremote

import "errors"

var (
	// ErrNoIdentity is returned when an accessory has no long-term identity.
	ErrNoIdentity = errors.New("mediaremote: identity required")

	// ErrNoStore is returned when an accessory has no peer store.
	ErrNoStore = errors.New("mediaremote: store required")

	// ErrNoDeviceInfo is returned when the introduction reply carries no
	// device information.
	ErrNoDeviceInfo = errors.New("mediaremote: reply carries no device info")

	// ErrNotVerified is returned by operations that need a verified session.
	ErrNotVerified = errors.New("mediaremote: session not verified")

	// ErrInvalidConfig is returned by Config.Validate.
	ErrInvalidConfig = errors.New("mediaremote: invalid config")
)
