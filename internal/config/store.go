package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	toml "github.com/pelletier/go-toml/v2"
)

const (
	fileMode        = 0o600
	tempFilePattern = ".selfbot-config-*.tmp"
)

// Keys recognised in the config document.
const (
	KeyPrefix         = "prefix"
	KeyToken          = "token"
	KeyGameStatus     = "gamestatus"
	KeyRestart        = "restart"
	KeyRestartChannel = "restart_channel"
	KeyExtensions     = "extensions"
	KeyLogDir         = "log_dir"
	KeyMetricsAddr    = "metrics_addr"
	KeyGatewayURL     = "gateway_url"
	KeyAPIURL         = "api_url"
)

var (
	ErrConfigNotFound = errors.New("config file not found")
	ErrMissingToken   = errors.New("config: token is required")
)

// codec reads and writes the whole document.
type codec struct {
	marshal   func(map[string]any) ([]byte, error)
	unmarshal func([]byte, *map[string]any) error
}

var jsonCodec = codec{
	marshal: func(doc map[string]any) ([]byte, error) {
		b, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(b, '\n'), nil
	},
	unmarshal: func(b []byte, doc *map[string]any) error { return json.Unmarshal(b, doc) },
}

var tomlCodec = codec{
	marshal:   func(doc map[string]any) ([]byte, error) { return toml.Marshal(doc) },
	unmarshal: func(b []byte, doc *map[string]any) error { return toml.Unmarshal(b, doc) },
}

func codecFor(path string) codec {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return tomlCodec
	}
	return jsonCodec
}

// Store is the persistent key-value document. Every Put rewrites the full
// document through a temp file + rename before it returns.
type Store struct {
	mu    sync.RWMutex
	path  string
	codec codec
	data  map[string]any
}

// Open reads the document at path.
func Open(path string) (*Store, error) {
	s := &Store{path: path, codec: codecFor(path), data: map[string]any{}}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := s.codec.unmarshal(b, &s.data); err != nil {
		return nil, fmt.Errorf("decode config file: %w", err)
	}
	if s.data == nil {
		s.data = map[string]any{}
	}
	return s, nil
}

// Path returns the file backing the store.
func (s *Store) Path() string { return s.path }

// Get returns the stored value for key, or def when absent.
func (s *Store) Get(key string, def any) any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.data[key]; ok {
		return v
	}
	return def
}

// GetString returns the value for key when it is a string, otherwise def.
func (s *Store) GetString(key, def string) string {
	if v, ok := s.Get(key, nil).(string); ok {
		return v
	}
	return def
}

// Snapshot returns a shallow copy of the document.
func (s *Store) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := make(map[string]any, len(s.data))
	for k, v := range s.data {
		cp[k] = v
	}
	return cp
}

// Put sets key and persists the document. The in-memory value is only
// replaced once the file has been written.
func (s *Store) Put(ctx context.Context, key string, value any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]any, len(s.data)+1)
	for k, v := range s.data {
		next[k] = v
	}
	next[key] = value

	if err := s.write(next); err != nil {
		return err
	}
	s.data = next
	return nil
}

func (s *Store) write(doc map[string]any) error {
	data, err := s.codec.marshal(doc)
	if err != nil {
		return fmt.Errorf("encode config file: %w", err)
	}

	dir := filepath.Dir(s.path)
	tempFile, err := os.CreateTemp(dir, tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp config file: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp config file: %w", err)
	}
	if err := tempFile.Sync(); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("sync temp config file: %w", err)
	}
	if err := tempFile.Chmod(fileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp config file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp config file: %w", err)
	}
	if err := os.Rename(tempName, s.path); err != nil {
		return fmt.Errorf("replace config file: %w", err)
	}

	cleanup = false
	return nil
}

// RestartSignal asks the next ready event to announce the restart in ChannelID.
type RestartSignal struct {
	Pending   bool
	ChannelID string
}

// GameStatus is the desired presence text; empty means none.
func (s *Store) GameStatus() string {
	return s.GetString(KeyGameStatus, "")
}

// SetGameStatus persists the desired presence text.
func (s *Store) SetGameStatus(ctx context.Context, game string) error {
	return s.Put(ctx, KeyGameStatus, game)
}

func (s *Store) RestartSignal() RestartSignal {
	return RestartSignal{
		Pending:   s.GetString(KeyRestart, "false") == "true",
		ChannelID: s.GetString(KeyRestartChannel, ""),
	}
}

// SetRestart records the channel first so a pending flag always has one.
func (s *Store) SetRestart(ctx context.Context, channelID string) error {
	if err := s.Put(ctx, KeyRestartChannel, channelID); err != nil {
		return err
	}
	return s.Put(ctx, KeyRestart, "true")
}

// ClearRestart drops the flag, then the channel.
func (s *Store) ClearRestart(ctx context.Context) error {
	if err := s.Put(ctx, KeyRestart, "false"); err != nil {
		return err
	}
	return s.Put(ctx, KeyRestartChannel, []any{})
}
