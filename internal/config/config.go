// Package config carries the operator-facing knobs for the tracker binary:
// paths, listen addresses, queue sizing, adapter identifiers. The scoring
// and windowing constants in spec.md are fixed by design and live as Go
// consts in internal/tracker, not here.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const maxConfigFileBytes = 1 << 20 // 1MB

// AppConfig is the on-disk JSON shape. Every field is an optional pointer
// so a partial config file only overrides what it sets; Get* accessors
// supply the default for anything left nil.
type AppConfig struct {
	QueueCapacity        *int    `json:"queue_capacity,omitempty"`
	WatchlistPath        *string `json:"watchlist_path,omitempty"`
	KMLPath              *string `json:"kml_path,omitempty"`
	DiagDBPath           *string `json:"diag_db_path,omitempty"`
	DiagListenAddr       *string `json:"diag_listen_addr,omitempty"`
	WifiAdapterID        *string `json:"wifi_adapter_id,omitempty"`
	BLEAdapterID         *string `json:"ble_adapter_id,omitempty"`
	ReceiveTimeoutMillis *int    `json:"receive_timeout_millis,omitempty"`
}

// EmptyAppConfig returns a config with every field unset, i.e. every Get*
// accessor reports its default.
func EmptyAppConfig() *AppConfig {
	return &AppConfig{}
}

func ptrInt(v int) *int          { return &v }
func ptrString(v string) *string { return &v }

// LoadAppConfig reads and validates a JSON config file. path must end in
// ".json" and be no larger than 1MB, matching the teacher's tuning-file
// loader.
func LoadAppConfig(path string) (*AppConfig, error) {
	if filepath.Ext(path) != ".json" {
		return nil, fmt.Errorf("config: %s: must have a .json extension", path)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("config: stat %s: %w", path, err)
	}
	if info.Size() > maxConfigFileBytes {
		return nil, fmt.Errorf("config: %s: file too large (%d bytes)", path, info.Size())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg AppConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate checks that every set field is in range. Unset fields are
// always valid (they fall back to a default).
func (c *AppConfig) Validate() error {
	if c.QueueCapacity != nil {
		if *c.QueueCapacity < 64 || *c.QueueCapacity > 256 {
			return fmt.Errorf("queue_capacity must be in [64, 256], got %d", *c.QueueCapacity)
		}
	}
	if c.ReceiveTimeoutMillis != nil && *c.ReceiveTimeoutMillis <= 0 {
		return fmt.Errorf("receive_timeout_millis must be positive, got %d", *c.ReceiveTimeoutMillis)
	}
	if c.WatchlistPath != nil && *c.WatchlistPath == "" {
		return fmt.Errorf("watchlist_path must not be empty")
	}
	if c.KMLPath != nil && *c.KMLPath == "" {
		return fmt.Errorf("kml_path must not be empty")
	}
	if c.DiagDBPath != nil && *c.DiagDBPath == "" {
		return fmt.Errorf("diag_db_path must not be empty")
	}
	if c.DiagListenAddr != nil && *c.DiagListenAddr == "" {
		return fmt.Errorf("diag_listen_addr must not be empty")
	}
	return nil
}

// GetQueueCapacity defaults to 128, the midpoint of the spec's recommended
// 64-256 range.
func (c *AppConfig) GetQueueCapacity() int {
	if c == nil || c.QueueCapacity == nil {
		return 128
	}
	return *c.QueueCapacity
}

// GetWatchlistPath defaults to the working-directory relative path the
// teacher's own data files use.
func (c *AppConfig) GetWatchlistPath() string {
	if c == nil || c.WatchlistPath == nil {
		return "watchlist.json"
	}
	return *c.WatchlistPath
}

func (c *AppConfig) GetKMLPath() string {
	if c == nil || c.KMLPath == nil {
		return "watchlist.kml"
	}
	return *c.KMLPath
}

func (c *AppConfig) GetDiagDBPath() string {
	if c == nil || c.DiagDBPath == nil {
		return "diagnostics.db"
	}
	return *c.DiagDBPath
}

func (c *AppConfig) GetDiagListenAddr() string {
	if c == nil || c.DiagListenAddr == nil {
		return "127.0.0.1:8787"
	}
	return *c.DiagListenAddr
}

// GetWifiAdapterID is the identifier handed to the external Wi-Fi radio
// glue; empty string means "use the platform default adapter".
func (c *AppConfig) GetWifiAdapterID() string {
	if c == nil || c.WifiAdapterID == nil {
		return ""
	}
	return *c.WifiAdapterID
}

func (c *AppConfig) GetBLEAdapterID() string {
	if c == nil || c.BLEAdapterID == nil {
		return ""
	}
	return *c.BLEAdapterID
}

// GetReceiveTimeoutMillis defaults to spec.md's 250ms consumer poll
// timeout.
func (c *AppConfig) GetReceiveTimeoutMillis() int {
	if c == nil || c.ReceiveTimeoutMillis == nil {
		return 250
	}
	return *c.ReceiveTimeoutMillis
}
