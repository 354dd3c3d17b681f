package main

import (
	"fmt"
	"os"

	"github.com/cosmicwatch/stationcore/internal/cmd"
	"github.com/cosmicwatch/stationcore/internal/version"
	"github.com/urfave/cli/v2"
)

// Converge a freshly imaged board into a running station.
func main() {
	app := cli.NewApp()
	app.Name = "stationcore"
	app.Usage = "idempotent station provisioning"
	app.Version = version.GetVersion()
	app.Authors = []*cli.Author{{Name: "CosmicWatch authors"}}
	app.Copyright = "cosmicwatch authors"
	app.Flags = cmd.Flags
	app.Commands = cmd.Commands
	app.Action = cmd.Provision

	err := app.Run(os.Args)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
