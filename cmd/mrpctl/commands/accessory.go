package commands

import (
	"errors"
	"fmt"
	"net"

	"github.com/backkem/mediaremote/pkg/credentials"
	"github.com/backkem/mediaremote/pkg/discovery"
	"github.com/backkem/mediaremote/pkg/mediaremote"
	"github.com/backkem/mediaremote/pkg/message"
	"github.com/backkem/mediaremote/pkg/storage"
	"github.com/backkem/mediaremote/pkg/transport"
	"github.com/spf13/cobra"
)

func accessoryCmd() *cobra.Command {
	var noAdvertise bool

	cmd := &cobra.Command{
		Use:   "accessory",
		Short: "Serve MRP connections as a pairable device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}

			identity, err := s.LoadIdentity()
			if errors.Is(err, storage.ErrNotFound) {
				if identity, err = credentials.GenerateIdentity(nil, cfg.UniqueIdentifier); err == nil {
					err = s.SaveIdentity(identity)
				}
			}
			if err != nil {
				return err
			}

			uid := cfg.UniqueIdentifier
			if uid == "" {
				uid = string(identity.ID)
			}
			info := mediaremote.DefaultDeviceInfo(cfg.Name, uid)
			info.LocalizedModelName = "Apple TV"

			acc, err := mediaremote.NewAccessory(mediaremote.AccessoryConfig{
				Identity: identity,
				Store:    s,
				Info:     info,
				PIN:      cfg.PIN,
				OnPIN: func(code string) {
					fmt.Printf("PIN: %s\n", code)
				},
				OnPaired: func(peer *credentials.Peer) {
					fmt.Printf("Paired with %s\n", peer.ID)
				},
				OnMessage: func(conn *transport.Conn, msg *message.Message) {
					fmt.Printf("%s <- %s\n", conn.RemoteAddr(), msg)
				},
				Conn:          connConfig(),
				LoggerFactory: loggerFactory,
			})
			if err != nil {
				return err
			}

			l, err := net.Listen("tcp", cfg.ListenAddr)
			if err != nil {
				return err
			}

			if !noAdvertise {
				adv, err := discovery.NewAdvertiser(discovery.AdvertiserConfig{
					Port:          l.Addr().(*net.TCPAddr).Port,
					LoggerFactory: loggerFactory,
				})
				if err != nil {
					l.Close()
					return err
				}
				defer adv.Close()

				err = adv.Start(discovery.TXT{
					Name:               cfg.Name,
					UniqueIdentifier:   uid,
					ModelName:          info.LocalizedModelName,
					SystemBuildVersion: info.SystemBuildVersion,
					AllowPairing:       true,
				})
				if err != nil {
					l.Close()
					return err
				}
			}

			fmt.Printf("%s (%s) listening on %s\n", cfg.Name, uid, l.Addr())
			return acc.Serve(cmd.Context(), l)
		},
	}

	cmd.Flags().BoolVar(&noAdvertise, "no-advertise", false, "do not announce the service over mDNS")
	return cmd
}
