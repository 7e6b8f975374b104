package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gluster-e2e/common/workload/genio"

	"github.com/jessevdk/go-flags"
	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v2"
	logf "sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
)

type options struct {
	Config   string        `short:"c" long:"config" required:"true" description:"yaml file listing the workloads"`
	Path     string        `short:"p" long:"path" description:"directory to fill, overrides the file"`
	Percent  float64       `long:"percent" description:"stop when the file system is this full, overrides the file"`
	Timeout  time.Duration `long:"timeout" description:"stop after this long, overrides the file"`
	Interval time.Duration `long:"interval" description:"usage poll interval, overrides the file"`
	Debug    bool          `long:"debug" description:"log usage at every poll"`
}

func loadConfig(opts options) (genio.Config, error) {
	var cfg genio.Config
	p, err := homedir.Expand(opts.Config)
	if err != nil {
		return cfg, err
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return cfg, err
	}
	if err = yaml.UnmarshalStrict(b, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %v", p, err)
	}
	if opts.Path != "" {
		cfg.Path = opts.Path
	}
	if opts.Percent != 0 {
		cfg.Percent = opts.Percent
	}
	if opts.Timeout != 0 {
		cfg.Timeout = opts.Timeout
	}
	if opts.Interval != 0 {
		cfg.PollInterval = opts.Interval
	}
	return cfg, nil
}

// signalContext is cancelled by SIGINT and by the SIGTERM an async remote
// terminate sends first, so workers are stopped before the tool exits.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func main() {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(2)
	}
	logf.SetLogger(zap.New(zap.UseDevMode(opts.Debug)))

	cfg, err := loadConfig(opts)
	if err != nil {
		logf.Log.Error(err, "bad configuration")
		os.Exit(2)
	}
	runner, err := genio.NewRunner(cfg, nil)
	if err != nil {
		logf.Log.Error(err, "bad configuration")
		os.Exit(2)
	}

	ctx, stop := signalContext()
	defer stop()
	res, err := runner.Run(ctx)
	if err != nil {
		logf.Log.Error(err, "generate-io failed", "reason", res.Reason)
		os.Exit(1)
	}
	logf.Log.Info("generate-io finished", "reason", res.Reason, "runs", res.Runs)
}
