// Package setup registers the ddx MCP server with desktop MCP clients.
package setup

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/ddx-ranking-engine/internal/config"
)

// DefaultServerName is the key written under mcpServers
const DefaultServerName = "ddx-ranking-engine"

const serversKey = "mcpServers"

var binaryNames = []string{"ddx-mcp-server", "mcp-server"}

// ErrBinaryNotFound is returned when no MCP server binary could be located
var ErrBinaryNotFound = errors.New("mcp server binary not found")

// ServerEntry is one MCP server launch configuration
type ServerEntry struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// ClientConfig is an MCP client configuration file. Keys other than
// mcpServers are preserved on save.
type ClientConfig struct {
	Servers map[string]ServerEntry
	extra   map[string]json.RawMessage
}

// Options controls registration
type Options struct {
	ClientConfigPath string // defaults to DefaultClientConfigPath()
	ServerName       string // defaults to DefaultServerName
	BinaryPath       string // located on PATH and common dirs when empty
	AppConfigPath    string // passed to the server as DDX_CONFIG_FILE
	DataDir          string // passed to the server as DDX_DATA_DIR
}

// Status describes the current registration
type Status struct {
	ClientConfigPath string   `json:"client_config_path"`
	Registered       bool     `json:"registered"`
	Command          string   `json:"command,omitempty"`
	AppConfigPath    string   `json:"app_config_path,omitempty"`
	DataDir          string   `json:"data_dir"`
	Issues           []string `json:"issues"`
}

// DefaultClientConfigPath returns the desktop client's config file location
// for the current OS
func DefaultClientConfigPath() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support", "Claude")
	case "linux":
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			configDir = filepath.Join(xdg, "Claude")
			break
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, ".config", "Claude")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", errors.New("APPDATA environment variable not set")
		}
		configDir = filepath.Join(appData, "Claude")
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	return filepath.Join(configDir, "claude_desktop_config.json"), nil
}

// LoadClientConfig reads a client config. A missing file yields an empty one.
func LoadClientConfig(path string) (*ClientConfig, error) {
	cfg := &ClientConfig{
		Servers: make(map[string]ServerEntry),
		extra:   make(map[string]json.RawMessage),
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read client config: %w", err)
	}

	if err := json.Unmarshal(data, &cfg.extra); err != nil {
		return nil, fmt.Errorf("failed to parse client config: %w", err)
	}
	if raw, ok := cfg.extra[serversKey]; ok {
		if err := json.Unmarshal(raw, &cfg.Servers); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", serversKey, err)
		}
		if cfg.Servers == nil {
			cfg.Servers = make(map[string]ServerEntry)
		}
		delete(cfg.extra, serversKey)
	}
	return cfg, nil
}

// Save writes the config back to path, creating its directory
func (c *ClientConfig) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	out := make(map[string]any, len(c.extra)+1)
	for k, v := range c.extra {
		out[k] = v
	}
	out[serversKey] = c.Servers

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func (o *Options) resolve() error {
	if o.ClientConfigPath == "" {
		path, err := DefaultClientConfigPath()
		if err != nil {
			return err
		}
		o.ClientConfigPath = path
	}
	if o.ServerName == "" {
		o.ServerName = DefaultServerName
	}
	return nil
}

// Register adds or replaces the ddx entry in the client config and returns
// the entry written
func Register(opts Options) (*ServerEntry, error) {
	if err := opts.resolve(); err != nil {
		return nil, err
	}

	binary := opts.BinaryPath
	if binary == "" {
		found, err := findBinary()
		if err != nil {
			return nil, err
		}
		binary = found
	}
	if abs, err := filepath.Abs(binary); err == nil {
		binary = abs
	}

	entry := ServerEntry{Command: binary, Env: make(map[string]string)}
	if opts.AppConfigPath != "" {
		abs, err := filepath.Abs(opts.AppConfigPath)
		if err != nil {
			return nil, fmt.Errorf("invalid app config path: %w", err)
		}
		entry.Env[config.ConfigFileEnv] = abs
	}
	if opts.DataDir != "" {
		entry.Env["DDX_DATA_DIR"] = opts.DataDir
	}

	cfg, err := LoadClientConfig(opts.ClientConfigPath)
	if err != nil {
		return nil, err
	}
	cfg.Servers[opts.ServerName] = entry
	if err := cfg.Save(opts.ClientConfigPath); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Unregister removes the entry; it reports whether one existed
func Unregister(opts Options) (bool, error) {
	if err := opts.resolve(); err != nil {
		return false, err
	}
	cfg, err := LoadClientConfig(opts.ClientConfigPath)
	if err != nil {
		return false, err
	}
	if _, ok := cfg.Servers[opts.ServerName]; !ok {
		return false, nil
	}
	delete(cfg.Servers, opts.ServerName)
	return true, cfg.Save(opts.ClientConfigPath)
}

// GetStatus inspects the registration and the files it points at
func GetStatus(opts Options) (*Status, error) {
	if err := opts.resolve(); err != nil {
		return nil, err
	}
	status := &Status{ClientConfigPath: opts.ClientConfigPath, DataDir: config.DataDir(), Issues: []string{}}

	cfg, err := LoadClientConfig(opts.ClientConfigPath)
	if err != nil {
		return nil, err
	}
	entry, ok := cfg.Servers[opts.ServerName]
	if !ok {
		status.Issues = append(status.Issues, fmt.Sprintf("%s is not registered in %s", opts.ServerName, opts.ClientConfigPath))
		return status, nil
	}

	status.Registered = true
	status.Command = entry.Command
	status.AppConfigPath = entry.Env[config.ConfigFileEnv]
	if dir := entry.Env["DDX_DATA_DIR"]; dir != "" {
		status.DataDir = dir
	}

	if info, err := os.Stat(entry.Command); err != nil {
		status.Issues = append(status.Issues, fmt.Sprintf("server binary not found: %s", entry.Command))
	} else if runtime.GOOS != "windows" && info.Mode()&0111 == 0 {
		status.Issues = append(status.Issues, fmt.Sprintf("server binary is not executable: %s", entry.Command))
	}
	if status.AppConfigPath != "" {
		if _, err := os.Stat(status.AppConfigPath); err != nil {
			status.Issues = append(status.Issues, fmt.Sprintf("app config not found: %s", status.AppConfigPath))
		}
	}
	return status, nil
}

func findBinary() (string, error) {
	for _, name := range binaryNames {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}

	home, _ := os.UserHomeDir()
	for _, name := range binaryNames {
		for _, dir := range []string{".", "./build", "./bin", filepath.Join(home, ".local", "bin"), "/usr/local/bin"} {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}
	}
	return "", fmt.Errorf("%w: tried %v", ErrBinaryNotFound, binaryNames)
}
