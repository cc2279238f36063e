package main

import (
	"flag"
	"log"

	"github.com/AnishMulay/sandfs/internal/config"
	"github.com/AnishMulay/sandfs/servers/simple"
)

func main() {
	var (
		configPath = flag.String("config", "./config/sandfs.yaml", "Path to the config file")
		nodeID     = flag.String("node-id", "", "Node ID (overrides config)")
		listen     = flag.String("listen", "", "Listen address (overrides config)")
	)
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *nodeID != "" {
		cfg.NodeID = *nodeID
	}
	if *listen != "" {
		cfg.Server.ListenAddr = *listen
	}

	node, err := simple.Build(simple.OptionsFromConfig(cfg))
	if err != nil {
		log.Fatalf("Failed to build server: %v", err)
	}

	log.Printf("sandfs %s listening on %s (%d blocks of %d bytes, delete policy %s)",
		cfg.NodeID, cfg.Server.ListenAddr, cfg.Store.TotalBlocks, cfg.Store.BlockSize, cfg.Store.DeletePolicy)
	if err := node.Run(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
