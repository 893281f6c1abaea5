// Package cli contains the sodistec command line: running every configured camera, detecting
// people on a still image and listing what this build can capture from.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"
)

// Flags.
const (
	flagConfig       = "config"
	flagDebug        = "debug"
	flagBindAddress  = "bind-address"
	flagNoWatch      = "no-watch"
	flagPprof        = "pprof"
	flagOutput       = "output"
	flagMinDistance  = "min-distance"
	flagMaxDistance  = "max-distance"
	flagResizeWidth  = "resize-width"
	flagResizeHeight = "resize-height"
)

var app = &cli.App{
	Name:            "sodistec",
	Usage:           "detect people standing too close together in camera feeds",
	HideHelpCommand: true,
	Flags: []cli.Flag{
		&cli.PathFlag{
			Name:    flagConfig,
			Aliases: []string{"c"},
			Value:   "config.json",
			Usage:   "load configuration from `FILE`",
		},
		&cli.BoolFlag{
			Name:    flagDebug,
			Aliases: []string{"vvv"},
			Usage:   "enable debug logging",
		},
	},
	Commands: []*cli.Command{
		{
			Name:  "run",
			Usage: "process every configured camera until interrupted or until all sources end",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  flagBindAddress,
					Usage: "serve the preview and metrics on `ADDRESS`, overriding web.bind_address",
				},
				&cli.BoolFlag{
					Name:  flagNoWatch,
					Usage: "do not reload distance thresholds when the config file changes",
				},
				&cli.BoolFlag{
					Name:  flagPprof,
					Usage: "serve pprof endpoints next to the preview",
				},
			},
			Action: RunAction,
		},
		{
			Name:      "detect",
			Usage:     "detect people on one image and write the annotated result",
			ArgsUsage: "<image>",
			Flags: []cli.Flag{
				&cli.PathFlag{
					Name:    flagOutput,
					Aliases: []string{"o"},
					Value:   "detections.png",
					Usage:   "write the annotated image to `FILE`",
				},
				&cli.Float64Flag{
					Name:  flagMinDistance,
					Usage: "override proximity.min_distance",
				},
				&cli.Float64Flag{
					Name:  flagMaxDistance,
					Usage: "override proximity.max_distance",
				},
				&cli.IntFlag{
					Name:  flagResizeWidth,
					Usage: "resize the image to this width before detection",
				},
				&cli.IntFlag{
					Name:  flagResizeHeight,
					Usage: "resize the image to this height before detection",
				},
			},
			Action: DetectAction,
		},
		{
			Name:   "backends",
			Usage:  "list the capture backends and model frameworks built into this program",
			Action: BackendsAction,
		},
	},
}

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter
// set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	app.Writer = out
	app.ErrWriter = errOut
	return app
}
