// Package flags holds the CLI flag categories and app scaffolding shared
// across the fossil command's subcommands.
package flags

import "github.com/urfave/cli/v2"

// Flag categories group related flags together in --help output.
const (
	RangeCategory = "RANGE"
	NodeCategory  = "NODE"
	DBCategory    = "DATABASE"
	MMRCategory   = "MMR"
)

// NewApp creates an app with sane defaults.
func NewApp(usage string) *cli.App {
	app := cli.NewApp()
	app.Name = "fossil"
	app.Usage = usage
	return app
}
