package main

import (
	"net/http"
	"os"

	agent "gluster-e2e/common/e2e-agent"

	"github.com/jessevdk/go-flags"
	logf "sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
)

type options struct {
	Address string `short:"a" long:"address" env:"MY_POD_IP" description:"address to listen on"`
	Port    string `short:"p" long:"port" env:"REST_PORT" default:"10012" description:"port to listen on"`
	Debug   bool   `long:"debug" description:"log every command at debug level"`
}

func main() {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
	logf.SetLogger(zap.New(zap.UseDevMode(opts.Debug)))

	addr := opts.Address + ":" + opts.Port
	logf.Log.Info("e2e-agent listening", "addr", addr)
	srv := agent.NewServer()
	if err := http.ListenAndServe(addr, srv.Handler(os.Stdout)); err != nil {
		logf.Log.Error(err, "e2e-agent exited")
		os.Exit(1)
	}
}
