// Package config reads the loader's TOML configuration and translates it
// into store and extract settings.
package config

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/japaniel/tweetload/pkg/extract"
	"github.com/japaniel/tweetload/pkg/store"
)

// Config is the main configuration for tweetload.
type Config struct {
	// Database is a PostgreSQL connection URL.
	Database string `toml:"database"`
	// Schema names the schema variant: "normalized" or "denormalized".
	Schema string `toml:"schema"`
	// PostGIS wraps geometry values in ST_GeomFromText on write.
	PostGIS bool `toml:"postgis"`

	Workers    int `toml:"workers"`
	BatchSize  int `toml:"batch_size"`
	PrintEvery int `toml:"print_every"`

	// MissingAuthor is "skip" (drop the document) or "stub" (keep the post
	// with a null author).
	MissingAuthor string `toml:"missing_author"`

	Write WriteConfig `toml:"write"`
}

// WriteConfig selects the write mode per entity kind and the retry budget.
// Empty mode fields inherit the schema variant's default.
type WriteConfig struct {
	URLs     string `toml:"urls"`
	Mentions string `toml:"mentions"`
	Tags     string `toml:"tags"`
	Media    string `toml:"media"`
	// UsersMerge is "first-writer-wins" or "last-writer-wins".
	UsersMerge string `toml:"users_merge"`

	MaxRetries int `toml:"max_retries"`
	BackoffMS  int `toml:"backoff_ms"`
}

// Default returns the configuration for a normalized schema with PostGIS.
func Default() *Config {
	return &Config{
		Schema:        "normalized",
		PostGIS:       true,
		Workers:       4,
		BatchSize:     1000,
		MissingAuthor: "skip",
	}
}

// Read decodes a Config from the provided reader, on top of the defaults.
func Read(r io.Reader) (*Config, error) {
	cfg := Default()
	if _, err := toml.NewDecoder(r).Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	cfg, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the cross-field constraints that Policy construction alone
// cannot catch.
func (c *Config) Validate() error {
	if c.Schema != "normalized" && c.Schema != "denormalized" {
		return fmt.Errorf("unknown schema %q", c.Schema)
	}
	if c.MissingAuthor != "skip" && c.MissingAuthor != "stub" {
		return fmt.Errorf("unknown missing_author %q", c.MissingAuthor)
	}
	p, err := c.Policy()
	if err != nil {
		return err
	}
	// URL and media columns differ between the variants (interned id vs
	// inline text), so their modes must match the schema in both directions.
	if c.Schema == "denormalized" && p.URLs == store.UniqueUpsert {
		return fmt.Errorf("urls in %s mode require the normalized schema", store.UniqueUpsert)
	}
	if c.Schema == "normalized" {
		if p.URLs == store.DenormalizedAppend {
			return fmt.Errorf("urls in %s mode require the denormalized schema", store.DenormalizedAppend)
		}
		if p.Media == store.DenormalizedAppend {
			return fmt.Errorf("media in %s mode require the denormalized schema", store.DenormalizedAppend)
		}
	}
	return nil
}

// Policy builds the store policy, filling unset fields from the schema
// variant's default.
func (c *Config) Policy() (store.Policy, error) {
	p := store.NormalizedPolicy()
	if c.Schema == "denormalized" {
		p = store.DenormalizedPolicy()
	}
	if c.Write.URLs != "" {
		p.URLs = store.WriteMode(c.Write.URLs)
	}
	if c.Write.Mentions != "" {
		p.Mentions = store.WriteMode(c.Write.Mentions)
	}
	if c.Write.Tags != "" {
		p.Tags = store.WriteMode(c.Write.Tags)
	}
	if c.Write.Media != "" {
		p.Media = store.WriteMode(c.Write.Media)
	}
	if c.Write.UsersMerge != "" {
		p.Users = store.MergePolicy(c.Write.UsersMerge)
	}
	if err := p.Validate(); err != nil {
		return store.Policy{}, err
	}
	return p, nil
}

// ExtractOptions translates the missing-author setting.
func (c *Config) ExtractOptions() extract.Options {
	opts := extract.Options{MissingAuthor: extract.SkipDocument}
	if c.MissingAuthor == "stub" {
		opts.MissingAuthor = extract.StubPost
	}
	return opts
}

// Backoff returns the configured retry base delay, zero for the default.
func (c *Config) Backoff() time.Duration {
	return time.Duration(c.Write.BackoffMS) * time.Millisecond
}
