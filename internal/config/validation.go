package config

import (
	"errors"
	"fmt"

	ferrors "git.home.luguber.info/inful/gardener/internal/foundation/errors"
	"git.home.luguber.info/inful/gardener/internal/links"
	"git.home.luguber.info/inful/gardener/internal/retry"
)

// Validate checks cross-field constraints. It expects defaults to be applied.
func (c *Config) Validate() error {
	var errs []error
	if _, err := links.ParseStrategy(c.Site.LinkResolution); err != nil {
		errs = append(errs, err)
	}
	if c.Paths.Content == c.Paths.Output {
		errs = append(errs, errors.New("paths.content and paths.output must differ"))
	}
	for name, port := range map[string]int{"serve.port": c.Serve.Port, "serve.ws_port": c.Serve.WSPort} {
		if port < 0 || port > 65535 {
			errs = append(errs, fmt.Errorf("%s %d out of range", name, port))
		}
	}
	if c.Serve.Port == c.Serve.WSPort && c.Serve.Port != 0 {
		errs = append(errs, fmt.Errorf("serve.port and serve.ws_port both use %d", c.Serve.Port))
	}
	if c.Serve.Debounce < 0 {
		errs = append(errs, errors.New("serve.debounce must not be negative"))
	}
	if c.Sync.Interval < 0 {
		errs = append(errs, errors.New("sync.interval must not be negative"))
	}
	if c.Publish.Bucket != "" && c.Publish.Endpoint == "" {
		errs = append(errs, errors.New("publish.endpoint is required when publish.bucket is set"))
	}
	if _, err := retry.ParseMode(c.Publish.Retry.Mode); err != nil {
		errs = append(errs, fmt.Errorf("publish.retry.mode: %w", err))
	}
	if r := c.Publish.Retry; r.Initial < 0 || r.Max < 0 || (r.MaxRetries != nil && *r.MaxRetries < 0) {
		errs = append(errs, errors.New("publish.retry values must not be negative"))
	}
	if len(errs) == 0 {
		return nil
	}
	return ferrors.WrapError(errors.Join(errs...), ferrors.CategoryValidation, "invalid configuration").Fatal().UserAction().Build()
}
