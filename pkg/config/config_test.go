package config

import (
	"strings"
	"testing"

	"github.com/japaniel/tweetload/pkg/extract"
	"github.com/japaniel/tweetload/pkg/store"
)

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestReadOverridesDefaults(t *testing.T) {
	cfg, err := Read(strings.NewReader(`
database = "postgres://localhost/tweets"
schema = "denormalized"
workers = 8
missing_author = "stub"

[write]
users_merge = "first-writer-wins"
max_retries = 12
backoff_ms = 100
`))
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.Workers != 8 || cfg.Schema != "denormalized" {
		t.Fatalf("cfg = %+v", cfg)
	}
	// Unset fields keep the defaults.
	if cfg.BatchSize != 1000 {
		t.Fatalf("batch_size = %d", cfg.BatchSize)
	}

	p, err := cfg.Policy()
	if err != nil {
		t.Fatal(err)
	}
	// The variant default is overridden only where set.
	if p.Users != store.FirstWriterWins || p.Tags != store.DenormalizedAppend {
		t.Fatalf("policy = %+v", p)
	}
	if cfg.ExtractOptions().MissingAuthor != extract.StubPost {
		t.Fatal("missing_author not translated")
	}
	if cfg.Backoff().Milliseconds() != 100 {
		t.Fatalf("backoff = %v", cfg.Backoff())
	}
}

func TestValidateRejectsMismatchedSchema(t *testing.T) {
	cfg := Default()
	cfg.Schema = "denormalized"
	cfg.Write.URLs = string(store.UniqueUpsert)
	cfg.Write.Media = string(store.UniqueUpsert)
	if err := cfg.Validate(); err == nil {
		t.Fatal("unique-upsert urls on denormalized schema passed validation")
	}

	cfg = Default()
	cfg.Write.URLs = string(store.DenormalizedAppend)
	cfg.Write.Media = string(store.DenormalizedAppend)
	if err := cfg.Validate(); err == nil {
		t.Fatal("append urls on normalized schema passed validation")
	}

	cfg = Default()
	cfg.Write.Media = string(store.DenormalizedAppend)
	if err := cfg.Validate(); err == nil {
		t.Fatal("append media on normalized schema passed validation")
	}
}

func TestValidateRejectsUnknownValues(t *testing.T) {
	cfg := Default()
	cfg.Schema = "star"
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown schema passed validation")
	}

	cfg = Default()
	cfg.MissingAuthor = "explode"
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown missing_author passed validation")
	}

	cfg = Default()
	cfg.Write.Tags = "sometimes"
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown write mode passed validation")
	}
}
