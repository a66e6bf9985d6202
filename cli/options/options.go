/*
Package options contains a set of common CLI options and helper functions to use them.
*/
package options

import (
	"fmt"

	"github.com/tribes-emu/dsovm/pkg/config"
	"github.com/tribes-emu/dsovm/pkg/dso"
	"github.com/tribes-emu/dsovm/pkg/io"
	"github.com/tribes-emu/dsovm/pkg/loader"
	"github.com/tribes-emu/dsovm/pkg/storage"
	"github.com/urfave/cli"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config is a flag for commands that use configuration file.
var Config = cli.StringFlag{
	Name:  "config, c",
	Usage: "path to the configuration file (defaults are used if omitted)",
}

// Debug is a flag for commands that allow debug mode usage.
var Debug = cli.BoolFlag{
	Name:  "debug, d",
	Usage: "enable debug logging (LOTS of output, overrides configuration)",
}

// Common is a set of flags shared by all commands.
var Common = []cli.Flag{Config, Debug}

// GetConfigFromContext loads configuration file given by the --config flag.
func GetConfigFromContext(ctx *cli.Context) (config.Config, error) {
	return config.Load(ctx.String("config"))
}

// HandleLoggingParams reads logging parameters.
// If a user selected debug level -- function enables it.
// If logPath is configured -- function creates a dir and a file for logging.
func HandleLoggingParams(debug bool, cfg config.Logger) (*zap.Logger, *zap.AtomicLevel, error) {
	var (
		level = zapcore.InfoLevel
		err   error
	)
	if len(cfg.LogLevel) > 0 {
		level, err = zapcore.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, nil, fmt.Errorf("log setting: %w", err)
		}
	}
	if debug {
		level = zapcore.DebugLevel
	}

	cc := zap.NewProductionConfig()
	cc.DisableCaller = true
	cc.DisableStacktrace = true
	cc.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	cc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	cc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if cfg.LogTimestamp != nil && !*cfg.LogTimestamp {
		cc.EncoderConfig.TimeKey = ""
	}
	cc.Encoding = "console"
	if cfg.LogEncoding != "" {
		cc.Encoding = cfg.LogEncoding
	}
	cc.Level = zap.NewAtomicLevelAt(level)
	cc.Sampling = nil

	if logPath := cfg.LogPath; logPath != "" {
		if err := io.MakeDirForFile(logPath, "logger"); err != nil {
			return nil, nil, err
		}
		cc.OutputPaths = []string{logPath}
	}

	log, err := cc.Build()
	return log, &cc.Level, err
}

// Env is everything commands need to work with compiled scripts.
type Env struct {
	Config config.Config
	Log    *zap.Logger
	Store  storage.Store
	Loader *loader.Loader
}

// NewEnv loads configuration, sets up logging, opens the storage and
// creates the loader. Close must be called when Env is no longer needed.
func NewEnv(ctx *cli.Context) (*Env, error) {
	cfg, err := GetConfigFromContext(ctx)
	if err != nil {
		return nil, err
	}
	log, _, err := HandleLoggingParams(ctx.Bool("debug"), cfg.Logger)
	if err != nil {
		return nil, err
	}
	charset, err := dso.LookupCharset(cfg.VM.Charset)
	if err != nil {
		return nil, err
	}
	store, err := storage.NewStore(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("could not open storage: %w", err)
	}
	ldr, err := loader.New(cfg.Loader, charset, store, log)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return &Env{
		Config: cfg,
		Log:    log,
		Store:  store,
		Loader: ldr,
	}, nil
}

// Close releases the storage and flushes the log.
func (e *Env) Close() {
	if err := e.Store.Close(); err != nil {
		e.Log.Error("failed to close storage", zap.Error(err))
	}
	_ = e.Log.Sync()
}
