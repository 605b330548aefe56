// Command stamperd runs the watermarking daemon in the foreground without
// the CLI wrapper. It is useful under a process supervisor such as systemd;
// interactive use normally goes through `stamper start`.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"stamper/internal/config"
	"stamper/internal/daemonrun"
)

func main() {
	configPath := flag.String("config", "", "configuration file path")
	logLevel := flag.String("log-level", "", "override the configured log level")
	flag.Parse()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{LogLevel: *logLevel}); err != nil {
		log.Printf("stamperd: %v", err)
		os.Exit(1)
	}
}
