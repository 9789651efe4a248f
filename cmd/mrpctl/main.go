// mrpctl pairs with and controls MediaRemote devices, and can act as an
// accessory for testing controllers.
//
// Usage:
//
//	mrpctl scan
//	mrpctl pair 10.0.0.12:49152
//	mrpctl verify <unique-identifier> --command Play --mqtt tcp://localhost:1883
//	mrpctl accessory --config accessory.yaml
package main

import (
	"os"

	"github.com/backkem/mediaremote/cmd/mrpctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
