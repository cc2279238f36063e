package localdisc

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/AnishMulay/sandfs/internal/config"
	"github.com/AnishMulay/sandfs/internal/log_service"
)

// LocalDiscLogService appends one line per event to <dir>/<node>.log.
// Events logged after Close are dropped.
type LocalDiscLogService struct {
	path     string
	nodeID   string
	minLevel atomic.Int32

	mu   sync.Mutex
	file io.WriteCloser
}

func NewLocalDiscLogService(cfg config.LogConfig, nodeID string) (*LocalDiscLogService, error) {
	minLevel, err := cfg.MinLevel()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	path := filepath.Join(cfg.Dir, nodeID+".log")
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	ls := &LocalDiscLogService{path: path, nodeID: nodeID, file: file}
	ls.minLevel.Store(int32(minLevel))
	return ls, nil
}

// Path is the file this service appends to.
func (ls *LocalDiscLogService) Path() string {
	return ls.path
}

// SetMinLogLevel changes the threshold while the service is in use.
func (ls *LocalDiscLogService) SetMinLogLevel(level string) error {
	v, ok := log_service.ParseLevel(level)
	if !ok {
		return fmt.Errorf("unknown log level %q", level)
	}
	ls.minLevel.Store(int32(v))
	return nil
}

func (ls *LocalDiscLogService) Close() error {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	if ls.file == nil {
		return nil
	}
	err := ls.file.Close()
	ls.file = nil
	return err
}

func (ls *LocalDiscLogService) log(level string, event log_service.LogEvent) {
	if int32(log_service.GetLevelValue(level)) < ls.minLevel.Load() {
		return
	}
	event.NodeID = ls.nodeID
	line := log_service.FormatLog(level, event)

	ls.mu.Lock()
	defer ls.mu.Unlock()
	if ls.file == nil {
		return
	}
	_, _ = io.WriteString(ls.file, line)
}

func (ls *LocalDiscLogService) Debug(event log_service.LogEvent) {
	ls.log(log_service.DebugLevel, event)
}

func (ls *LocalDiscLogService) Info(event log_service.LogEvent) {
	ls.log(log_service.InfoLevel, event)
}

func (ls *LocalDiscLogService) Warn(event log_service.LogEvent) {
	ls.log(log_service.WarnLevel, event)
}

func (ls *LocalDiscLogService) Error(event log_service.LogEvent) {
	ls.log(log_service.ErrorLevel, event)
}

var _ log_service.LogService = (*LocalDiscLogService)(nil)
