package commands

import (
	"fmt"
	"time"

	"github.com/backkem/mediaremote/pkg/discovery"
	"github.com/spf13/cobra"
)

func scanCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "List MediaRemote devices on the local network",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := discovery.NewResolver(discovery.ResolverConfig{
				BrowseTimeout: timeout,
				LoggerFactory: loggerFactory,
			})
			if err != nil {
				return err
			}
			services, err := r.Browse(cmd.Context())
			if err != nil {
				return err
			}

			found := 0
			for svc := range services {
				found++
				addr, err := svc.Address()
				if err != nil {
					addr = "-"
				}
				txt := svc.TXT()
				fmt.Printf("%-24s %-22s %s", svc.Name, addr, svc.UniqueIdentifier)
				if txt.ModelName != "" {
					fmt.Printf(" (%s)", txt.ModelName)
				}
				if txt.AllowPairing {
					fmt.Print(" pairable")
				}
				fmt.Println()
			}
			if found == 0 {
				fmt.Println("No devices found.")
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 3*time.Second, "browse duration")
	return cmd
}
