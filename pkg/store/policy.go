package store

import "fmt"

// WriteMode selects how one entity kind is committed. The choice is per
// entity kind because contention profiles differ: author identifiers
// collide across workers constantly, link values less often.
type WriteMode string

const (
	// UniqueUpsert keeps the entity's uniqueness constraint and writes
	// with insert-or-no-op-on-conflict. Correct under concurrency but can
	// deadlock, which the writer detects and retries.
	UniqueUpsert WriteMode = "unique-upsert"

	// DenormalizedAppend drops the uniqueness constraint: the raw value is
	// carried on every referencing row and writes are plain appends. This
	// is the mode that is deadlock-free by construction.
	DenormalizedAppend WriteMode = "denormalized-append"
)

// MergePolicy decides how a hydrated author row lands on an existing row.
// Stub rows never overwrite anything under either policy.
type MergePolicy string

const (
	// FirstWriterWins upgrades stub rows to hydrated but leaves already
	// hydrated rows untouched.
	FirstWriterWins MergePolicy = "first-writer-wins"

	// LastWriterWins replaces the full profile unconditionally; the batch
	// that commits last determines every field.
	LastWriterWins MergePolicy = "last-writer-wins"
)

// Policy declares the write mode for each entity kind plus the author merge
// policy. It must match the schema variant provisioned externally: URL
// interning requires the normalized schema's urls table.
type Policy struct {
	URLs     WriteMode
	Mentions WriteMode
	Tags     WriteMode
	Media    WriteMode
	Users    MergePolicy
}

// NormalizedPolicy targets the fully-normalized schema variant.
func NormalizedPolicy() Policy {
	return Policy{
		URLs:     UniqueUpsert,
		Mentions: UniqueUpsert,
		Tags:     UniqueUpsert,
		Media:    UniqueUpsert,
		Users:    FirstWriterWins,
	}
}

// DenormalizedPolicy targets the denormalized-key schema variant.
func DenormalizedPolicy() Policy {
	return Policy{
		URLs:     DenormalizedAppend,
		Mentions: DenormalizedAppend,
		Tags:     DenormalizedAppend,
		Media:    DenormalizedAppend,
		Users:    LastWriterWins,
	}
}

func (m WriteMode) valid() bool {
	return m == UniqueUpsert || m == DenormalizedAppend
}

// Validate rejects unknown modes and mode combinations the schema cannot
// satisfy.
func (p Policy) Validate() error {
	for name, m := range map[string]WriteMode{
		"urls": p.URLs, "mentions": p.Mentions, "tags": p.Tags, "media": p.Media,
	} {
		if !m.valid() {
			return fmt.Errorf("invalid write mode %q for %s", m, name)
		}
	}
	if p.Users != FirstWriterWins && p.Users != LastWriterWins {
		return fmt.Errorf("invalid users merge policy %q", p.Users)
	}
	if p.Media == UniqueUpsert && p.URLs != UniqueUpsert {
		return fmt.Errorf("media in %s mode requires urls in %s mode (media rows reference interned urls)",
			UniqueUpsert, UniqueUpsert)
	}
	return nil
}
