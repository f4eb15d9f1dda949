package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	app := NewApp()

	if err := app.Startup(); err != nil {
		fmt.Fprintf(os.Stderr, "minegrid: %v\n", err)
		os.Exit(1)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	app.Shutdown()
}
