package simple

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	blockservice "github.com/AnishMulay/sandfs/internal/block_service/inmemory"
	grpccomm "github.com/AnishMulay/sandfs/internal/communication/grpc"
	"github.com/AnishMulay/sandfs/internal/config"
	fileservice "github.com/AnishMulay/sandfs/internal/file_service/simple"
	"github.com/AnishMulay/sandfs/internal/log_service"
	locallog "github.com/AnishMulay/sandfs/internal/log_service/localdisc"
	metadataservice "github.com/AnishMulay/sandfs/internal/metadata_service/inmemory"
	searchservice "github.com/AnishMulay/sandfs/internal/search_service"
	"github.com/AnishMulay/sandfs/internal/search_service/indexed"
	simpleserver "github.com/AnishMulay/sandfs/internal/server/simple"
)

type Options struct {
	NodeID       string
	ListenAddr   string
	LogDir       string
	LogLevel     string
	BlockSize    int
	TotalBlocks  int
	DeletePolicy config.DeletePolicy
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		NodeID:       cfg.NodeID,
		ListenAddr:   cfg.Server.ListenAddr,
		LogDir:       cfg.Log.Dir,
		LogLevel:     cfg.Log.Level,
		BlockSize:    cfg.Store.BlockSize,
		TotalBlocks:  cfg.Store.TotalBlocks,
		DeletePolicy: cfg.Store.DeletePolicy,
	}
}

// Node is one fully wired store behind a gRPC endpoint.
type Node struct {
	server *simpleserver.SimpleServer
	files  *fileservice.SimpleFileService
	ls     *locallog.LocalDiscLogService
}

func (n *Node) Start() error {
	return n.server.Start()
}

func (n *Node) Stop() error {
	err := n.server.Stop()
	if closeErr := n.ls.Close(); err == nil {
		err = closeErr
	}
	return err
}

func (n *Node) Address() string {
	return n.server.Address()
}

func (n *Node) Files() *fileservice.SimpleFileService {
	return n.files
}

func (n *Node) Logger() log_service.LogService {
	return n.ls
}

// Run starts the node and blocks until SIGINT or SIGTERM.
func (n *Node) Run() error {
	if err := n.Start(); err != nil {
		return err
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	return n.Stop()
}

func Build(opts Options) (*Node, error) {
	// 1. Logging
	ls, err := locallog.NewLocalDiscLogService(config.LogConfig{Dir: opts.LogDir, Level: opts.LogLevel}, opts.NodeID)
	if err != nil {
		return nil, err
	}

	// 2. Storage layers
	ms := metadataservice.NewInMemoryMetadataService(opts.BlockSize, opts.TotalBlocks, ls)
	bs := blockservice.NewInMemoryBlockService(opts.TotalBlocks, opts.BlockSize, ls)
	fs := fileservice.NewSimpleFileService(ms, bs, ls, opts.DeletePolicy)

	// 3. Search, kept current through file service events
	index := indexed.NewFileIndex()
	if err := index.Attach(context.Background(), fs); err != nil {
		_ = ls.Close()
		return nil, fmt.Errorf("seeding search index: %w", err)
	}
	search := searchservice.NewSearchService(indexed.NewIndexedSearch(index), ls)

	// 4. Communication and the gateway
	comm := grpccomm.NewGRPCCommunicator(opts.ListenAddr, ls)
	srv := simpleserver.NewSimpleServer(comm, fs, search, ls)

	return &Node{server: srv, files: fs, ls: ls}, nil
}
