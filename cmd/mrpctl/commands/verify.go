package commands

import (
	"fmt"

	"github.com/backkem/mediaremote/pkg/bridge"
	"github.com/backkem/mediaremote/pkg/message"
	"github.com/spf13/cobra"
)

func verifyCmd() *cobra.Command {
	var (
		mqttBroker string
		commandArg []string
		follow     bool
	)

	cmd := &cobra.Command{
		Use:   "verify <address|identifier|name>",
		Short: "Open an encrypted session with a paired device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			dev, err := connect(ctx, args[0])
			if err != nil {
				return err
			}
			defer dev.Close()

			info := dev.PeerInfo()
			creds, err := s.LoadCredentials(info.UniqueIdentifier)
			if err != nil {
				return fmt.Errorf("no credentials for %s, run pair first: %w", info.UniqueIdentifier, err)
			}
			if err := dev.Verify(ctx, creds); err != nil {
				return err
			}
			fmt.Printf("Session with %s verified\n", info.Name)

			dev.Subscribe(func(msg *message.Message) {
				fmt.Printf("<- %s\n", msg)
			})

			if mqttBroker == "" {
				mqttBroker = cfg.MQTT.Broker
			}
			if mqttBroker != "" {
				client, err := bridge.Connect(bridge.MQTTConfig{
					Broker:   mqttBroker,
					ClientID: cfg.MQTT.ClientID,
				})
				if err != nil {
					return err
				}
				defer client.Disconnect(250)

				b, err := bridge.New(bridge.Config{
					Client:        client,
					TopicPrefix:   cfg.MQTT.TopicPrefix,
					LoggerFactory: loggerFactory,
				})
				if err != nil {
					return err
				}
				dev.Subscribe(b.Handler())
			}

			for _, name := range commandArg {
				c, ok := message.ParseCommand(name)
				if !ok {
					return fmt.Errorf("unknown command %q", name)
				}
				if _, err := dev.SendCommand(ctx, c); err != nil {
					return err
				}
				fmt.Printf("-> %s\n", c)
			}

			if !follow && mqttBroker == "" {
				return nil
			}
			select {
			case <-ctx.Done():
			case <-dev.Done():
				return dev.Conn().Err()
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&mqttBroker, "mqtt", "", "publish received messages to this MQTT broker")
	cmd.Flags().StringSliceVar(&commandArg, "command", nil, "send commands after verify (e.g. Play, Pause)")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep the session open and print messages")
	return cmd
}
