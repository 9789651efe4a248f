package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func pairCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pair <address|identifier|name>",
		Short: "Run pair setup and store the credentials",
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
			fmt.Printf("Pairing with %s (%s)\n", info.Name, info.UniqueIdentifier)
			if info.UniqueIdentifier == "" {
				return errors.New("device did not announce a unique identifier")
			}

			creds, err := dev.Pair(ctx, promptPIN)
			if err != nil {
				return err
			}
			if err := s.SaveCredentials(info.UniqueIdentifier, creds); err != nil {
				return err
			}
			fmt.Println("Paired. Credentials stored for", info.UniqueIdentifier)
			return nil
		},
	}
}

// promptPIN reads the setup code from stdin.
func promptPIN(ctx context.Context) (string, error) {
	fmt.Print("Enter PIN shown on the device: ")

	line := make(chan string, 1)
	errc := make(chan error, 1)
	go func() {
		s, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			errc <- err
			return
		}
		line <- strings.TrimSpace(s)
	}()

	select {
	case s := <-line:
		return s, nil
	case err := <-errc:
		return "", err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
