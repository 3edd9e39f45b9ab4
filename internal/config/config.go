// Package config loads gardener.yaml.
package config

import (
	"time"

	"git.home.luguber.info/inful/gardener/internal/links"
	"git.home.luguber.info/inful/gardener/internal/retry"
)

// DefaultFile is the config file looked up when none is given.
const DefaultFile = "gardener.yaml"

// Config is the complete configuration of one garden.
type Config struct {
	Site    SiteConfig    `yaml:"site"`
	Paths   PathsConfig   `yaml:"paths"`
	Serve   ServeConfig   `yaml:"serve"`
	Sync    SyncConfig    `yaml:"sync"`
	Events  EventsConfig  `yaml:"events"`
	Publish PublishConfig `yaml:"publish"`
}

// SiteConfig holds settings rendered into every page.
type SiteConfig struct {
	Title          string   `yaml:"title"`
	BaseURL        string   `yaml:"base_url"`
	Locale         string   `yaml:"locale"`
	IgnorePatterns []string `yaml:"ignore_patterns"`
	// LinkResolution is shortest, absolute or relative.
	LinkResolution string `yaml:"link_resolution"`
}

// PathsConfig locates inputs and output. Layout and Scripts are optional.
type PathsConfig struct {
	Content string `yaml:"content"`
	Output  string `yaml:"output"`
	Layout  string `yaml:"layout"`
	Scripts string `yaml:"scripts"`
}

// ServeConfig configures the dev server.
type ServeConfig struct {
	Port     int           `yaml:"port"`
	WSPort   int           `yaml:"ws_port"`
	BaseDir  string        `yaml:"base_dir"`
	Debounce time.Duration `yaml:"debounce"`
}

// SyncConfig configures content sync through git.
type SyncConfig struct {
	Remote      string        `yaml:"remote"`
	Branch      string        `yaml:"branch"`
	Interval    time.Duration `yaml:"interval"` // 0 disables scheduled sync
	AuthorName  string        `yaml:"author_name"`
	AuthorEmail string        `yaml:"author_email"`
	Push        *bool         `yaml:"push"`
}

// EventsConfig configures build history and build event publishing.
type EventsConfig struct {
	StorePath   string `yaml:"store_path"`
	NATSURL     string `yaml:"nats_url"`
	NATSSubject string `yaml:"nats_subject"`
}

// PublishConfig configures upload of the output tree to an S3-compatible bucket.
type PublishConfig struct {
	Endpoint  string      `yaml:"endpoint"`
	Bucket    string      `yaml:"bucket"`
	Region    string      `yaml:"region"`
	AccessKey string      `yaml:"access_key"`
	SecretKey string      `yaml:"secret_key"`
	UseSSL    *bool       `yaml:"use_ssl"`
	Prefix    string      `yaml:"prefix"`
	Retry     RetryConfig `yaml:"retry"`
}

// RetryConfig tunes upload retries. Zero fields keep the retry package defaults.
type RetryConfig struct {
	Mode       string        `yaml:"mode"`
	Initial    time.Duration `yaml:"initial"`
	Max        time.Duration `yaml:"max"`
	MaxRetries *int          `yaml:"max_retries"`
}

// Strategy returns the parsed link resolution strategy. Validate guarantees it parses.
func (c *Config) Strategy() links.Strategy {
	s, err := links.ParseStrategy(c.Site.LinkResolution)
	if err != nil {
		return links.StrategyShortest
	}
	return s
}

// ShouldPush reports whether sync pushes after pulling.
func (s SyncConfig) ShouldPush() bool { return s.Push == nil || *s.Push }

// SSL reports whether publish talks TLS to the endpoint.
func (p PublishConfig) SSL() bool { return p.UseSSL == nil || *p.UseSSL }

// Policy converts r into a retry policy. Validate guarantees Mode parses.
func (r RetryConfig) Policy() retry.Policy {
	mode, _ := retry.ParseMode(r.Mode)
	n := -1
	if r.MaxRetries != nil {
		n = *r.MaxRetries
	}
	return retry.NewPolicy(mode, r.Initial, r.Max, n)
}
