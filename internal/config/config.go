package config

import (
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v3"

	"github.com/studio1767/pgdelta/internal/transfer"
)

type ErrNoSuchSite struct {
	msg string
}

func (e *ErrNoSuchSite) Error() string {
	return e.msg
}

// Site describes one database installation and how its backups are laid
// out and encoded.
type Site struct {
	Name string

	Prefix string

	Parallel  int `yaml:"parallel"`
	ChunkSize int `yaml:"chunk_size"`

	TempDir string `yaml:"temp_dir"`

	Compression transfer.CompressionData `yaml:"compression"`

	EmbedMaxSize  int64 `yaml:"embed_max_size"`
	BundleMaxSize int64 `yaml:"bundle_max_size"`

	SkipDirs  []string `yaml:"skip_dirs"`
	MissingOK []string `yaml:"missing_ok"`
}

// Config is the top level of the yaml config file: named sites.
type Config struct {
	Sites map[string]*Site `yaml:"sites"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, err
	}

	for name, site := range cfg.Sites {
		site.Name = name
		if site.Prefix == "" {
			site.Prefix = name
		}
		if site.Parallel < 1 {
			site.Parallel = 1
		}
	}

	return &cfg, nil
}

// Site looks up a named site. With an empty name and exactly one site
// configured, that site is returned.
func (c *Config) Site(name string) (*Site, error) {
	if name == "" && len(c.Sites) == 1 {
		for _, site := range c.Sites {
			return site, nil
		}
	}

	site, ok := c.Sites[name]
	if !ok {
		return nil, &ErrNoSuchSite{
			msg: fmt.Sprintf("No such site: %s", name),
		}
	}

	return site, nil
}
