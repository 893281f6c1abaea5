// Package main is the sodistec command itself.
package main

import (
	"context"
	"os"

	"go.viam.com/utils"

	"github.com/sodistec/sodistec/cli"
	// registers all capture backends.
	_ "github.com/sodistec/sodistec/components/camera/register"
	"github.com/sodistec/sodistec/logging"
	// registers all model frameworks.
	_ "github.com/sodistec/sodistec/ml/register"
)

var logger = logging.NewLogger("sodistec")

func main() {
	utils.ContextualMain(mainWithArgs, logger)
}

func mainWithArgs(ctx context.Context, args []string, logger logging.Logger) error {
	return cli.NewApp(os.Stdout, os.Stderr).RunContext(ctx, args)
}
