package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// WatchFile names one file to tail. An empty alias reports the path
// itself as the event source.
type WatchFile struct {
	Path  string `yaml:"path"`
	Alias string `yaml:"alias,omitempty"`
}

// Watch is the watcher configuration file.
//
//	collector: logs.internal:6433
//	dataDir: /var/lib/theia-watcher
//	tags: [prod, web]
//	files:
//	  - path: /var/log/nginx/access.log
//	    alias: nginx-access
//	  - path: /var/log/nginx/error.log
type Watch struct {
	Collector string      `yaml:"collector"`
	DataDir   string      `yaml:"dataDir,omitempty"`
	Tags      []string    `yaml:"tags,omitempty"`
	Files     []WatchFile `yaml:"files"`
}

// LoadWatch reads and validates a watcher configuration file.
func LoadWatch(path string) (*Watch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Watch
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Collector == "" {
		return nil, fmt.Errorf("config %s: collector address is required", path)
	}
	if len(cfg.Files) == 0 {
		return nil, fmt.Errorf("config %s: at least one file is required", path)
	}
	for i, f := range cfg.Files {
		if f.Path == "" {
			return nil, fmt.Errorf("config %s: files[%d] has no path", path, i)
		}
	}
	return &cfg, nil
}
