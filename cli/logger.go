package cli

import (
	"github.com/urfave/cli/v2"

	"github.com/sodistec/sodistec/config"
	"github.com/sodistec/sodistec/logging"
)

// newLogger returns the process logger writing to the app's error writer. It logs at debug level
// until the config is read, unless debug was not asked for.
func newLogger(c *cli.Context) logging.Logger {
	logger := logging.NewBlankLogger("sodistec")
	logger.AddAppender(logging.NewWriterAppender(c.App.ErrWriter))
	if !c.Bool(flagDebug) {
		logger.SetLevel(logging.INFO)
	}
	return logger
}

// applyLogConfig sets the configured level, unless the debug flag overrides it, and adds the
// rotated log file. The returned func releases the file.
func applyLogConfig(c *cli.Context, logger logging.Logger, conf config.LogConfig) (func() error, error) {
	if !c.Bool(flagDebug) {
		level, err := logging.LevelFromString(conf.Level)
		if err != nil {
			return nil, config.NewConfigError("log.level", err)
		}
		logger.SetLevel(level)
	}
	if conf.File == "" {
		return func() error { return nil }, nil
	}
	appender, closer := logging.NewFileAppender(conf.File, conf.MaxSizeMB, conf.MaxBackups)
	logger.AddAppender(appender)
	return closer.Close, nil
}
