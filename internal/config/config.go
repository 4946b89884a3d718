package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"inductionlog/internal/domain"
	"inductionlog/internal/persist"
	"inductionlog/internal/storage"
)

const fileName = "inductionlog.yml"

// Config models inductionlog.yml.
type Config struct {
	Storage struct {
		Backend  string `yaml:"backend"`
		Key      string `yaml:"key"`
		RedisURL string `yaml:"redis_url"`
		Dir      string `yaml:"dir"`
	} `yaml:"storage"`
	Autosave struct {
		Delay time.Duration `yaml:"delay"`
	} `yaml:"autosave"`
	Save struct {
		TargetID string `yaml:"target_id"`
	} `yaml:"save"`
	Roles struct {
		Default string `yaml:"default"`
	} `yaml:"roles"`
	Options struct {
		Mentors     []Option `yaml:"mentors"`
		Buildings   []Option `yaml:"buildings"`
		Assignments []Option `yaml:"assignments"`
		SchoolYears []string `yaml:"school_years"`
	} `yaml:"options"`
	Server struct {
		Addr            string `yaml:"addr"`
		BasePath        string `yaml:"base_path"`
		AllowDevHeaders bool   `yaml:"allow_dev_headers"`
	} `yaml:"server"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// WebhookConfig is one endpoint that receives log events.
type WebhookConfig struct {
	URL     string        `yaml:"url"`
	Events  []string      `yaml:"events"`
	Secret  string        `yaml:"secret"`
	Timeout time.Duration `yaml:"timeout"`
	Enabled *bool         `yaml:"enabled"`
}

// Active reports whether the webhook should receive deliveries.
func (w WebhookConfig) Active() bool {
	return strings.TrimSpace(w.URL) != "" && (w.Enabled == nil || *w.Enabled)
}

// Option is a pick-list entry. A bare YAML string is read as both name and dcid.
type Option struct {
	Name string `yaml:"name"`
	DCID string `yaml:"dcid"`
}

func (o *Option) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		o.Name, o.DCID = n.Value, n.Value
		return nil
	}
	type plain Option
	var p plain
	if err := n.Decode(&p); err != nil {
		return err
	}
	*o = Option(p)
	if o.DCID == "" {
		o.DCID = o.Name
	}
	return nil
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case storage.BackendSQLite, storage.BackendMemory, storage.BackendFile:
	case storage.BackendRedis:
		if c.Storage.RedisURL == "" {
			return fmt.Errorf("config.storage.redis_url is required for the redis backend")
		}
	default:
		return fmt.Errorf("config.storage.backend must be one of sqlite, memory, redis, file (got %q)", c.Storage.Backend)
	}
	if c.Storage.Key == "" {
		return fmt.Errorf("config.storage.key is required")
	}
	if c.Autosave.Delay < 0 {
		return fmt.Errorf("config.autosave.delay must not be negative")
	}
	if c.Save.TargetID == "" {
		return fmt.Errorf("config.save.target_id is required")
	}
	if !domain.ParseRole(c.Roles.Default).Known() {
		return fmt.Errorf("config.roles.default must be admin, mentor or mentee (got %q)", c.Roles.Default)
	}
	lists := map[string][]Option{
		"mentors":     c.Options.Mentors,
		"buildings":   c.Options.Buildings,
		"assignments": c.Options.Assignments,
	}
	for list, opts := range lists {
		for i, o := range opts {
			if o.Name == "" {
				return fmt.Errorf("config.options.%s[%d] has empty name", list, i)
			}
		}
	}
	if !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("config.server.base_path must start with /")
	}
	for i, w := range c.Webhooks {
		u, err := url.Parse(w.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("config.webhooks[%d].url must be an http(s) URL (got %q)", i, w.URL)
		}
		if w.Timeout < 0 {
			return fmt.Errorf("config.webhooks[%d].timeout must not be negative", i)
		}
	}
	return nil
}

// DefaultRole is the role used when a configuration carries none.
func (c *Config) DefaultRole() domain.Role {
	return domain.ParseRole(c.Roles.Default)
}

func toOptions(in []Option) []domain.Option {
	out := make([]domain.Option, 0, len(in))
	for _, o := range in {
		out = append(out, domain.Option{Name: o.Name, DCID: o.DCID})
	}
	return out
}

// FormOptions returns the pick-lists handed to every log. Without
// configured school years, four years starting the year before now are used.
func (c *Config) FormOptions(now time.Time) domain.FormOptions {
	years := c.Options.SchoolYears
	if len(years) == 0 {
		years = domain.DefaultSchoolYears(now)
	}
	schoolYears := make([]domain.Option, 0, len(years))
	for _, y := range years {
		schoolYears = append(schoolYears, domain.Option{Name: y, DCID: y})
	}
	return domain.FormOptions{
		Mentors:     toOptions(c.Options.Mentors),
		Buildings:   toOptions(c.Options.Buildings),
		Assignments: toOptions(c.Options.Assignments),
		SchoolYears: schoolYears,
	}
}

// StorageOptions maps the storage section onto a backend selection. Dir is
// resolved against the workspace and defaults to .inductionlog/storage.
func (c *Config) StorageOptions(workspace string) storage.Options {
	dir := c.Storage.Dir
	if dir == "" {
		dir = filepath.Join(".inductionlog", "storage")
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(workspace, dir)
	}
	return storage.Options{Backend: c.Storage.Backend, RedisURL: c.Storage.RedisURL, Dir: dir}
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, fileName)
}

// GenerateDefault returns the default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with til config init", Path(workspace))
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the default config if the file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg, err := FromYAML([]byte(defaultTemplate))
	if err != nil {
		panic(fmt.Sprintf("default config invalid: %v", err))
	}
	return cfg
}

// FromYAML parses YAML on top of the defaults and validates the result.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	applyDefaults(&cfg)
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

func applyDefaults(c *Config) {
	c.Storage.Backend = storage.BackendSQLite
	c.Storage.Key = persist.LocalStorageKey
	c.Autosave.Delay = persist.DefaultDelay
	c.Save.TargetID = persist.DefaultTargetID
	c.Roles.Default = string(domain.RoleMentee)
	c.Server.Addr = "127.0.0.1:8080"
	c.Server.BasePath = "/v0"
}

const defaultTemplate = `storage:
  # sqlite | memory | redis | file
  backend: sqlite
  key: teacher-induction-log-data
  # redis_url: redis://localhost:6379/0
  # dir: .inductionlog/storage

autosave:
  delay: 3s

save:
  target_id: json_clob

roles:
  default: mentee

options:
  mentors: []
  buildings: []
  assignments: []
  # school_years default to four years starting last year
  school_years: []

server:
  addr: 127.0.0.1:8080
  base_path: /v0
  allow_dev_headers: false

# webhooks:
#   - url: https://example.org/hooks/induction-log
#     events: [log.submitted]
#     secret: change-me
#     timeout: 5s
`
