package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// ConnectionEdge is a single input/output link in the seed routing graph.
type ConnectionEdge struct {
	Input   string `toml:"input" json:"input"`
	Output  string `toml:"output" json:"output"`
	Enabled bool   `toml:"enabled" json:"enabled"`
}

// ConnectionsConfig is the on-disk seed graph applied to the matrix at
// router startup and on every hot reload. It captures the initial display
// order of inputs (back-to-front compositing order) and which input/output
// pairs start out connected.
type ConnectionsConfig struct {
	Version     int              `toml:"version" json:"version"`
	InputOrder  []string         `toml:"input_order" json:"input_order"`
	Connections []ConnectionEdge `toml:"connections" json:"connections"`
}

// ConnectionManager loads the seed routing graph from disk. It is a
// read path only: connections.toml is an operator-edited seed file
// (reloaded on change by the config watcher, per §1's non-goals
// excluding persistence), never a database the router writes back to.
type ConnectionManager struct {
	configPath string
	config     *ConnectionsConfig
}

// NewConnectionManager creates a manager backed by the given TOML file.
func NewConnectionManager(configPath string) *ConnectionManager {
	if configPath == "" {
		configPath = "connections.toml"
	}

	return &ConnectionManager{
		configPath: configPath,
		config: &ConnectionsConfig{
			Version: 1,
		},
	}
}

// Load reads the seed graph from disk. A missing file is not an error;
// the matrix simply starts with no connections and default input order.
func (cm *ConnectionManager) Load() error {
	if _, err := os.Stat(cm.configPath); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(cm.configPath)
	if err != nil {
		return fmt.Errorf("failed to read connections config: %w", err)
	}

	if err := toml.Unmarshal(data, cm.config); err != nil {
		return fmt.Errorf("failed to parse connections config: %w", err)
	}

	if cm.config.Version == 0 {
		cm.config.Version = 1
	}

	return nil
}

// Config returns the loaded seed graph. Routing changes made through the
// control plane (/connect, bring_input_forward, bring_input_backward) live
// only in the in-memory matrix; they are never written back here, so a
// restart resumes from this file as last edited on disk, not as last
// routed.
func (cm *ConnectionManager) Config() *ConnectionsConfig {
	return cm.config
}
