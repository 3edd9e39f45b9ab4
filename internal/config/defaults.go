package config

const (
	defaultTitle   = "Gardener"
	defaultLocale  = "en-US"
	defaultContent = "content"
	defaultOutput  = "public"
	defaultPort    = 8080
	defaultWSPort  = 3001
	defaultBranch  = "main"
	defaultRemote  = "origin"
	defaultSubject = "gardener.builds"
	defaultStore   = ".gardener/history.db"
	defaultAuthor  = "gardener"
	defaultEmail   = "gardener@localhost"
)

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills every unset field.
func (c *Config) ApplyDefaults() {
	if c.Site.Title == "" {
		c.Site.Title = defaultTitle
	}
	if c.Site.Locale == "" {
		c.Site.Locale = defaultLocale
	}
	if c.Site.IgnorePatterns == nil {
		c.Site.IgnorePatterns = []string{"private", "templates", ".obsidian"}
	}
	if c.Site.LinkResolution == "" {
		c.Site.LinkResolution = "shortest"
	}

	if c.Paths.Content == "" {
		c.Paths.Content = defaultContent
	}
	if c.Paths.Output == "" {
		c.Paths.Output = defaultOutput
	}

	if c.Serve.Port == 0 {
		c.Serve.Port = defaultPort
	}
	if c.Serve.WSPort == 0 {
		c.Serve.WSPort = defaultWSPort
	}

	if c.Sync.Remote == "" {
		c.Sync.Remote = defaultRemote
	}
	if c.Sync.Branch == "" {
		c.Sync.Branch = defaultBranch
	}
	if c.Sync.AuthorName == "" {
		c.Sync.AuthorName = defaultAuthor
	}
	if c.Sync.AuthorEmail == "" {
		c.Sync.AuthorEmail = defaultEmail
	}

	if c.Events.StorePath == "" {
		c.Events.StorePath = defaultStore
	}
	if c.Events.NATSSubject == "" {
		c.Events.NATSSubject = defaultSubject
	}
}
