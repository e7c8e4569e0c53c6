// cmd/relayctl/main.go
package main

import (
	"os"

	"ssorelay/pkg/config"
	"ssorelay/pkg/logger"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)
	defer log.Sync()

	if err := newRootCmd(cfg, log).Execute(); err != nil {
		os.Exit(1)
	}
}
