package config

import "sync"

var (
	current   *Config
	currentMu sync.RWMutex

	initOnce sync.Once
	initErr  error
)

// Initialize loads the configuration at path (with DOCGUARD_* overrides)
// into the process-wide instance. Only the first call loads; later calls
// return the same configuration or the same error.
func Initialize(path string) (*Config, error) {
	initOnce.Do(func() {
		cfg, err := LoadConfigWithEnvOverrides(path)
		if err != nil {
			initErr = err
			return
		}
		SetConfig(cfg)
	})
	if initErr != nil {
		return nil, initErr
	}
	return GetConfig(), nil
}

// GetConfig returns the process-wide configuration, or nil before a
// successful Initialize.
func GetConfig() *Config {
	currentMu.RLock()
	defer currentMu.RUnlock()
	return current
}

// SetConfig replaces the process-wide configuration. Tests use it to
// install a configuration without a file.
func SetConfig(cfg *Config) {
	currentMu.Lock()
	defer currentMu.Unlock()
	current = cfg
}
