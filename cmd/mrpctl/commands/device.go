package commands

import (
	"context"
	"net"

	"github.com/backkem/mediaremote/pkg/credentials"
	"github.com/backkem/mediaremote/pkg/discovery"
	"github.com/backkem/mediaremote/pkg/mediaremote"
)

// resolve maps a host:port, unique identifier or instance name to an
// address.
func resolve(ctx context.Context, target string) (string, error) {
	if _, _, err := net.SplitHostPort(target); err == nil {
		return target, nil
	}

	r, err := discovery.NewResolver(discovery.ResolverConfig{LoggerFactory: loggerFactory})
	if err != nil {
		return "", err
	}
	svc, err := r.Find(ctx, target)
	if err != nil {
		if svc, err = r.Lookup(ctx, target); err != nil {
			return "", err
		}
	}
	return svc.Address()
}

// connect dials target and runs the introduction exchange.
func connect(ctx context.Context, target string) (*mediaremote.Device, error) {
	addr, err := resolve(ctx, target)
	if err != nil {
		return nil, err
	}

	uid := cfg.UniqueIdentifier
	if uid == "" {
		uid = credentials.NewPairingID()
	}
	dev, err := mediaremote.Dial(ctx, addr, mediaremote.DeviceConfig{
		Info:           mediaremote.DefaultDeviceInfo(cfg.Name, uid),
		PairingTimeout: cfg.PairingTimeout,
		Conn:           connConfig(),
		LoggerFactory:  loggerFactory,
	})
	if err != nil {
		return nil, err
	}
	if _, err := dev.Introduce(ctx); err != nil {
		dev.Close()
		return nil, err
	}
	return dev, nil
}
