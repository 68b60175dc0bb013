// Package config loads the engine's JSON configuration file with viper and
// watches it for edits, delivering validated types.Configuration snapshots
// (SPEC_FULL.md §1 — viper is the loader/watcher, the engine only ever sees
// a validated value).
package config

import (
	"fmt"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/quantedge/derivengine/pkg/types"
)

// OnChangeFunc is notified with the new configuration after a file edit
// passes validation. The Loader does not diff here — internal/engine's
// ApplyConfig does that via types.DiffConfig.
type OnChangeFunc func(types.Configuration)

// Loader wraps a viper instance bound to a single JSON file.
type Loader struct {
	logger *zap.Logger
	v      *viper.Viper

	mu      sync.RWMutex
	current types.Configuration

	onChange OnChangeFunc
}

// New reads path once, validates it, and starts watching it for further
// edits. DERIV_API_TOKEN and DERIV_APP_ID environment variables override
// the file's apiToken/appId fields so credentials need not live on disk.
func New(logger *zap.Logger, path string) (*Loader, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetDefault("binaryFailsafePct", 1.0)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	l := &Loader{logger: logger.Named("config"), v: v}
	cfg, err := l.decode()
	if err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	l.mu.Lock()
	l.current = cfg
	l.mu.Unlock()

	v.OnConfigChange(l.handleFileChange)
	v.WatchConfig()

	return l, nil
}

// OnChange registers the callback invoked after a valid file edit. Only one
// subscriber is supported — the engine itself.
func (l *Loader) OnChange(fn OnChangeFunc) {
	l.mu.Lock()
	l.onChange = fn
	l.mu.Unlock()
}

// Current returns the last successfully validated configuration.
func (l *Loader) Current() types.Configuration {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

func (l *Loader) handleFileChange(e fsnotify.Event) {
	cfg, err := l.decode()
	if err != nil {
		l.logger.Warn("config reload failed, keeping previous configuration", zap.Error(err))
		return
	}
	if err := Validate(cfg); err != nil {
		l.logger.Warn("config reload rejected, invalid configuration", zap.Error(err))
		return
	}

	l.mu.Lock()
	l.current = cfg
	onChange := l.onChange
	l.mu.Unlock()

	l.logger.Info("configuration reloaded", zap.String("file", e.Name))
	if onChange != nil {
		onChange(cfg)
	}
}

// decode unmarshals viper's current state onto types.Configuration using
// its json tags rather than viper's default mapstructure tag, since the
// type is shared with encoding/json elsewhere (push events, HTTP bodies).
func (l *Loader) decode() (types.Configuration, error) {
	var cfg types.Configuration
	if err := l.v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "json"
	}); err != nil {
		return types.Configuration{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if token := os.Getenv("DERIV_API_TOKEN"); token != "" {
		cfg.APIToken = token
	}
	if appID := os.Getenv("DERIV_APP_ID"); appID != "" {
		cfg.AppID = appID
	}
	return cfg, nil
}
