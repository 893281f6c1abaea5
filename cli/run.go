package cli

import (
	"context"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"github.com/sodistec/sodistec/config"
	"github.com/sodistec/sodistec/services/distancing"
	"github.com/sodistec/sodistec/web"
)

// attachableSink lets the web server, which needs the coordinator, observe the pipelines the
// coordinator is built from. It is attached before any pipeline starts.
type attachableSink struct {
	distancing.EventSink
}

// RunAction runs every configured camera until the context is cancelled or every source has
// ended, then prints a summary of each camera.
func RunAction(c *cli.Context) (err error) {
	ctx := c.Context
	logger := newLogger(c)
	cfg, err := config.Read(ctx, c.Path(flagConfig), logger)
	if err != nil {
		return err
	}
	closeLogs, err := applyLogConfig(c, logger, cfg.Log)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, logger.Sync(), closeLogs())
	}()
	if c.IsSet(flagBindAddress) {
		cfg.Web.BindAddress = c.String(flagBindAddress)
	}

	reg := prometheus.NewRegistry()
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return err
	}
	if err := reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return err
	}
	metrics, err := distancing.NewMetricsSink(reg)
	if err != nil {
		return err
	}
	stats := distancing.NewStats()
	late := &attachableSink{EventSink: distancing.NopSink{}}
	sinks := distancing.Sinks{distancing.NewLogSink(logger), metrics, stats, late}

	coord, err := distancing.NewCoordinatorFromConfig(ctx, cfg, sinks, logger)
	if err != nil {
		return err
	}

	webCtx, stopWeb := context.WithCancel(ctx)
	defer stopWeb()
	webDone := make(chan error, 1)
	if cfg.Web.BindAddress != "" {
		server := web.NewServer(coord, web.Options{Gatherer: reg, Pprof: c.Bool(flagPprof)}, logger.Sublogger("web"))
		late.EventSink = server
		goutils.PanicCapturingGo(func() {
			webDone <- server.Run(webCtx, cfg.Web.BindAddress)
		})
	} else {
		webDone <- nil
	}

	if !c.Bool(flagNoWatch) {
		watcher, err := config.NewWatcher(ctx, cfg.ConfigFilePath, logger, func(newCfg *config.Config) {
			if err := coord.UpdateThresholds(newCfg.Proximity.Thresholds()); err != nil {
				logger.Warnw("cannot apply new thresholds", "error", err)
				return
			}
			logger.Infow("thresholds reloaded", "thresholds", newCfg.Proximity.Thresholds())
		})
		if err != nil {
			coord.Stop()
			stopWeb()
			return multierr.Combine(err, <-webDone)
		}
		defer func() {
			err = multierr.Combine(err, watcher.Close())
		}()
	}

	if err := coord.Start(ctx); err != nil {
		logger.Errorw("some cameras failed to start", "error", err)
	}
	runErr := coord.Wait(ctx)
	if ctx.Err() != nil {
		logger.Info("shutting down")
		coord.Stop()
		runErr = coord.Wait(context.Background())
	}
	stopWeb()
	if webErr := <-webDone; webErr != nil {
		runErr = multierr.Combine(runErr, errors.Wrap(webErr, "preview server failed"))
	}

	printSummary(c.App.Writer, stats.Summaries())
	return runErr
}
