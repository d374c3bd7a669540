/*
Demo application: renders the configured model with the engine
*/
package main

import (
	"flag"
	"os"

	"github.com/spaghettifunk/ember/engine"
	"github.com/spaghettifunk/ember/engine/core"
	"github.com/spaghettifunk/ember/testbed"
	"github.com/xlab/closer"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to the engine configuration")
	flag.Parse()

	cfg := core.DefaultConfig()
	if _, err := os.Stat(*configPath); err == nil {
		if cfg, err = core.LoadConfig(*configPath); err != nil {
			core.LogFatal(err.Error())
		}
	}

	tb := testbed.NewTestGame(cfg)

	e, err := engine.New(tb.Game, cfg)
	if err != nil {
		core.LogFatal(err.Error())
	}

	// SIGINT/SIGTERM only stop the loop; teardown stays on this thread,
	// which owns the window and the device.
	defer closer.Close()
	_ = core.RunService(e, closer.Bind)
}
