/*
Interactive 3D viewer for assessed land parcels. Fetches parcel
footprints from the backend, extrudes them into a city-block scene and
lets the user orbit, hover and select them.
*/
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"parcelscape/config"
	"parcelscape/engine"
	"parcelscape/engine/platform"
	"parcelscape/engine/renderer"
	"parcelscape/engine/renderer/wgpu"
	"parcelscape/viewer"
)

func main() {
	configPath := flag.String("config", "parcelscape.toml", "path to the config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	v, err := viewer.New(cfg)
	if err != nil {
		panic(err)
	}

	eng, err := engine.New(v.Game, func(p *platform.Platform) renderer.Backend {
		return wgpu.New(p)
	})
	if err != nil {
		panic(err)
	}

	if err := eng.Initialize(); err != nil {
		panic(err)
	}

	watcher, err := config.NewWatcher(*configPath, v.ApplyConfig)
	if err != nil {
		panic(err)
	}
	defer watcher.Close()

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	// start shutdown goroutine
	go func() {
		// capture sigterm and other system call here; only request the
		// exit, the run loop tears down on its own goroutine
		<-sigCh
		eng.RequestShutdown()
	}()

	// run engine
	if err := eng.Run(); err != nil {
		panic(err)
	}
}
