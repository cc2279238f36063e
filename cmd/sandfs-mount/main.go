package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/AnishMulay/sandfs/internal/config"
	"github.com/AnishMulay/sandfs/internal/fuse_adapter"
	"github.com/AnishMulay/sandfs/servers/simple"
)

func main() {
	var (
		configPath = flag.String("config", "./config/sandfs.yaml", "Path to the config file")
		mountPoint = flag.String("mount", "", "Mount point (overrides config)")
		serve      = flag.Bool("serve", true, "Also serve the store over gRPC")
	)
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *mountPoint != "" {
		cfg.Mount.Point = *mountPoint
	}
	if cfg.Mount.Point == "" {
		log.Fatal("No mount point: pass --mount or set mount.point")
	}
	if err := os.MkdirAll(cfg.Mount.Point, 0755); err != nil {
		log.Fatalf("Failed to create mount point: %v", err)
	}

	node, err := simple.Build(simple.OptionsFromConfig(cfg))
	if err != nil {
		log.Fatalf("Failed to build store: %v", err)
	}
	if *serve {
		if err := node.Start(); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
		log.Printf("sandfs %s listening on %s", cfg.NodeID, node.Address())
	}

	sfs, err := fuse_adapter.NewSandFS(context.Background(), node.Files(), node.Logger())
	if err != nil {
		log.Fatalf("Failed to create filesystem: %v", err)
	}
	if err := sfs.Mount(cfg.Mount.Point); err != nil {
		log.Fatalf("Failed to mount: %v", err)
	}
	log.Printf("sandfs mounted at %s", cfg.Mount.Point)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	if err := sfs.Unmount(cfg.Mount.Point); err != nil {
		log.Printf("Failed to unmount: %v", err)
	}
	if *serve {
		if err := node.Stop(); err != nil {
			log.Printf("Failed to stop server: %v", err)
		}
	}
}
