// Command elevatord is the rig's supervisory process: it loads
// configuration from the environment, brings up both cabins, and runs
// until it receives SIGINT or SIGTERM, at which point it shuts every
// peripheral down cleanly.
package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"elevator-rig-core/internal/config"
	"elevator-rig-core/internal/supervisor"
)

func main() {
	cfg := config.FromEnv()

	sup, err := supervisor.New(cfg)
	if err != nil {
		log.Fatalf("elevatord: init: %v", err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		sup.Run()
		close(done)
	}()

	select {
	case s := <-sig:
		log.Printf("elevatord: received %s, shutting down", s)
	case <-done:
		log.Printf("elevatord: supervisor stopped on its own")
	}

	sup.Close()
}
