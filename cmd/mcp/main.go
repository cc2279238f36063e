package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sandlib "github.com/AnishMulay/sandfs/clients/library"
	grpccomm "github.com/AnishMulay/sandfs/internal/communication/grpc"
	"github.com/AnishMulay/sandfs/internal/log_service"
	"github.com/AnishMulay/sandfs/internal/log_service/console"
	"github.com/AnishMulay/sandfs/internal/node_registry"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"gopkg.in/yaml.v3"
)

type MCPServerEntry struct {
	ID      string `yaml:"id"`
	Address string `yaml:"address"`
}

type MCPConfig struct {
	Servers       []MCPServerEntry `yaml:"servers"`
	DefaultServer string           `yaml:"default_server"`
}

// ServerRegistry pairs the node registry with one client per node.
type ServerRegistry struct {
	Nodes         node_registry.NodeRegistry
	Clients       map[string]*sandlib.SandfsClient
	DefaultServer string
	LogService    log_service.LogService
}

func LoadConfig(path string) (*MCPConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		defaultConfig := &MCPConfig{
			DefaultServer: "server1",
			Servers:       []MCPServerEntry{{ID: "server1", Address: "127.0.0.1:9001"}},
		}

		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
		data, err := yaml.Marshal(defaultConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal default config: %w", err)
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			return nil, fmt.Errorf("failed to write default config: %w", err)
		}
		return defaultConfig, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config MCPConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &config, nil
}

func (r *ServerRegistry) client(request mcp.CallToolRequest) (string, *sandlib.SandfsClient, error) {
	serverID := request.GetString("server", r.DefaultServer)
	if _, err := r.Nodes.GetNode(serverID); err != nil {
		return "", nil, fmt.Errorf("server %s: %w", serverID, err)
	}
	return serverID, r.Clients[serverID], nil
}

// observe marks a node unhealthy when a call to it fails before the server
// could answer. An error reply still proves the node is up.
func (r *ServerRegistry) observe(serverID string, err error) {
	var remote *sandlib.RemoteError
	healthy := err == nil || errors.As(err, &remote)
	if setErr := r.Nodes.SetHealthy(serverID, healthy); setErr != nil {
		r.LogService.Warn(log_service.LogEvent{
			Message:  "Failed to update node health",
			Metadata: map[string]any{"server": serverID, "error": setErr.Error()},
		})
	}
}

type toolFunc func(ctx context.Context, request mcp.CallToolRequest, c *sandlib.SandfsClient) (string, error)

// wrap resolves the target server and turns failures into tool errors.
func wrap(registry *ServerRegistry, name string, fn toolFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		serverID, c, err := registry.client(request)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		text, err := fn(ctx, request, c)
		registry.observe(serverID, err)
		if err != nil {
			registry.LogService.Warn(log_service.LogEvent{
				Message:  "Tool call failed",
				Metadata: map[string]any{"tool": name, "error": err.Error()},
			})
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(text), nil
	}
}

func asJSON(v any) (string, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(out), nil
}

var serverArg = mcp.WithString("server", mcp.Description("Server ID from the config; defaults to default_server"))

func addTools(s *server.MCPServer, registry *ServerRegistry) {
	s.AddTool(mcp.NewTool("list_servers",
		mcp.WithDescription("List all configured sandfs servers"),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var b strings.Builder
		b.WriteString("Available servers:\n")
		for _, n := range registry.Nodes.Nodes() {
			status := "healthy"
			if !n.Healthy {
				status = "unreachable"
			}
			fmt.Fprintf(&b, "- %s: %s (%s)\n", n.ID, n.Address, status)
		}
		fmt.Fprintf(&b, "Default server: %s\n", registry.DefaultServer)
		return mcp.NewToolResultText(b.String()), nil
	})

	pathArg := mcp.WithString("path", mcp.Required(), mcp.Description("Absolute path inside the store"))

	s.AddTool(mcp.NewTool("mkdir", mcp.WithDescription("Create a directory"), pathArg, serverArg),
		wrap(registry, "mkdir", func(ctx context.Context, request mcp.CallToolRequest, c *sandlib.SandfsClient) (string, error) {
			path, err := request.RequireString("path")
			if err != nil {
				return "", err
			}
			if err := c.Mkdir(ctx, path); err != nil {
				return "", err
			}
			return "created directory " + path, nil
		}))

	s.AddTool(mcp.NewTool("create_file", mcp.WithDescription("Create an empty file"), pathArg, serverArg),
		wrap(registry, "create_file", func(ctx context.Context, request mcp.CallToolRequest, c *sandlib.SandfsClient) (string, error) {
			path, err := request.RequireString("path")
			if err != nil {
				return "", err
			}
			if err := c.CreateFile(ctx, path); err != nil {
				return "", err
			}
			return "created file " + path, nil
		}))

	s.AddTool(mcp.NewTool("write_file",
		mcp.WithDescription("Write text into an existing file at an offset"),
		pathArg,
		mcp.WithString("content", mcp.Required(), mcp.Description("Text to write")),
		mcp.WithNumber("offset", mcp.Description("Byte offset, default 0")),
		serverArg,
	), wrap(registry, "write_file", func(ctx context.Context, request mcp.CallToolRequest, c *sandlib.SandfsClient) (string, error) {
		path, err := request.RequireString("path")
		if err != nil {
			return "", err
		}
		content, err := request.RequireString("content")
		if err != nil {
			return "", err
		}
		n, err := c.Write(ctx, path, []byte(content), int64(request.GetInt("offset", 0)))
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("wrote %d bytes to %s", n, path), nil
	}))

	s.AddTool(mcp.NewTool("read_file",
		mcp.WithDescription("Read bytes from a file as text"),
		pathArg,
		mcp.WithNumber("size", mcp.Description("Maximum bytes to read, default 65536")),
		mcp.WithNumber("offset", mcp.Description("Byte offset, default 0")),
		serverArg,
	), wrap(registry, "read_file", func(ctx context.Context, request mcp.CallToolRequest, c *sandlib.SandfsClient) (string, error) {
		path, err := request.RequireString("path")
		if err != nil {
			return "", err
		}
		data, err := c.Read(ctx, path, request.GetInt("size", 64*1024), int64(request.GetInt("offset", 0)))
		if err != nil {
			return "", err
		}
		return string(data), nil
	}))

	s.AddTool(mcp.NewTool("ls", mcp.WithDescription("List a directory"), pathArg, serverArg),
		wrap(registry, "ls", func(ctx context.Context, request mcp.CallToolRequest, c *sandlib.SandfsClient) (string, error) {
			path, err := request.RequireString("path")
			if err != nil {
				return "", err
			}
			names, err := c.Ls(ctx, path)
			if err != nil {
				return "", err
			}
			return strings.Join(names, "\n"), nil
		}))

	s.AddTool(mcp.NewTool("delete", mcp.WithDescription("Delete a file or directory"), pathArg, serverArg),
		wrap(registry, "delete", func(ctx context.Context, request mcp.CallToolRequest, c *sandlib.SandfsClient) (string, error) {
			path, err := request.RequireString("path")
			if err != nil {
				return "", err
			}
			if err := c.Delete(ctx, path); err != nil {
				return "", err
			}
			return "deleted " + path, nil
		}))

	s.AddTool(mcp.NewTool("rename",
		mcp.WithDescription("Move an entry to a new path"),
		mcp.WithString("src", mcp.Required()),
		mcp.WithString("dst", mcp.Required()),
		serverArg,
	), wrap(registry, "rename", func(ctx context.Context, request mcp.CallToolRequest, c *sandlib.SandfsClient) (string, error) {
		src, err := request.RequireString("src")
		if err != nil {
			return "", err
		}
		dst, err := request.RequireString("dst")
		if err != nil {
			return "", err
		}
		if err := c.Rename(ctx, src, dst); err != nil {
			return "", err
		}
		return fmt.Sprintf("renamed %s to %s", src, dst), nil
	}))

	s.AddTool(mcp.NewTool("stat", mcp.WithDescription("Show attributes of an entry"), pathArg, serverArg),
		wrap(registry, "stat", func(ctx context.Context, request mcp.CallToolRequest, c *sandlib.SandfsClient) (string, error) {
			path, err := request.RequireString("path")
			if err != nil {
				return "", err
			}
			info, err := c.Stat(ctx, path)
			if err != nil {
				return "", err
			}
			return asJSON(info)
		}))

	s.AddTool(mcp.NewTool("find",
		mcp.WithDescription("Find entries whose name matches a shell glob"),
		mcp.WithString("pattern", mcp.Required(), mcp.Description("Glob such as *.txt")),
		mcp.WithString("type", mcp.Enum("file", "folder"), mcp.Description("Restrict to files or folders")),
		mcp.WithString("root", mcp.Description("Directory to search below, default /")),
		serverArg,
	), wrap(registry, "find", func(ctx context.Context, request mcp.CallToolRequest, c *sandlib.SandfsClient) (string, error) {
		pattern, err := request.RequireString("pattern")
		if err != nil {
			return "", err
		}
		paths, err := c.Find(ctx, pattern, request.GetString("type", ""), request.GetString("root", "/"))
		if err != nil {
			return "", err
		}
		return strings.Join(paths, "\n"), nil
	}))

	s.AddTool(mcp.NewTool("statfs", mcp.WithDescription("Show block and inode usage"), serverArg),
		wrap(registry, "statfs", func(ctx context.Context, request mcp.CallToolRequest, c *sandlib.SandfsClient) (string, error) {
			stats, err := c.StatFs(ctx)
			if err != nil {
				return "", err
			}
			return asJSON(stats)
		}))

	s.AddTool(mcp.NewTool("check", mcp.WithDescription("Run a consistency check over blocks and inodes"), serverArg),
		wrap(registry, "check", func(ctx context.Context, request mcp.CallToolRequest, c *sandlib.SandfsClient) (string, error) {
			report, err := c.Check(ctx)
			if err != nil {
				return "", err
			}
			return asJSON(report)
		}))
}

func main() {
	configPath := flag.String("config", "./config/mcp.yaml", "Path to the MCP config file")
	flag.Parse()

	config, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// stdout carries the protocol, so logs go to stderr.
	ls := console.NewConsoleLogService(os.Stderr, "mcp", log_service.WarnLevel)
	comm := grpccomm.NewGRPCCommunicator("", ls)
	defer comm.Stop()

	registry := &ServerRegistry{
		Nodes:         node_registry.NewInMemoryNodeRegistry(),
		Clients:       make(map[string]*sandlib.SandfsClient),
		DefaultServer: config.DefaultServer,
		LogService:    ls,
	}
	for _, entry := range config.Servers {
		node := node_registry.Node{ID: entry.ID, Address: entry.Address, Healthy: true}
		if err := registry.Nodes.RegisterNode(node); err != nil {
			fmt.Fprintf(os.Stderr, "Skipping server %q: %v\n", entry.ID, err)
			continue
		}
		registry.Clients[entry.ID] = sandlib.NewSandfsClient(entry.Address, comm)
	}

	s := server.NewMCPServer(
		"sandfs",
		"1.0.0",
		server.WithToolCapabilities(false),
	)
	addTools(s, registry)

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
	}
}
