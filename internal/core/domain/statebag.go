package domain

import (
	"encoding/json"
	"regexp"
)

// placeholderPattern matches {key} references in stage instructions. Keys
// are bare identifiers, optionally dotted for namespaced sub-stage outputs.
var placeholderPattern = regexp.MustCompile(`\{([A-Za-z0-9_][A-Za-z0-9_.-]*)\}`)

// StateBag is the ordered mapping of output keys to the latest text value
// produced for them. It is owned by one session and only touched by the
// single invocation running against that session, so it carries no lock.
type StateBag struct {
	keys   []string
	values map[string]string
}

// StateEntry is one key/value pair, used for ordered serialization.
type StateEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// NewStateBag creates an empty bag.
func NewStateBag() *StateBag {
	return &StateBag{values: make(map[string]string)}
}

// Set stores the value under key, overwriting any prior value. First-write
// order of keys is preserved for serialization and inspection.
func (b *StateBag) Set(key, value string) {
	if _, ok := b.values[key]; !ok {
		b.keys = append(b.keys, key)
	}
	b.values[key] = value
}

// Get returns the most recent value for key and whether it was ever set.
func (b *StateBag) Get(key string) (string, bool) {
	v, ok := b.values[key]
	return v, ok
}

// Keys returns the keys in first-write order.
func (b *StateBag) Keys() []string {
	out := make([]string, len(b.keys))
	copy(out, b.keys)
	return out
}

// Len returns the number of keys in the bag.
func (b *StateBag) Len() int {
	return len(b.keys)
}

// Entries returns the bag contents in first-write order.
func (b *StateBag) Entries() []StateEntry {
	out := make([]StateEntry, 0, len(b.keys))
	for _, k := range b.keys {
		out = append(out, StateEntry{Key: k, Value: b.values[k]})
	}
	return out
}

// Merge copies every entry of other into b, overwriting on key collision.
func (b *StateBag) Merge(other *StateBag) {
	if other == nil {
		return
	}
	for _, k := range other.keys {
		b.Set(k, other.values[k])
	}
}

// Clone returns an independent copy of the bag.
func (b *StateBag) Clone() *StateBag {
	c := NewStateBag()
	c.Merge(b)
	return c
}

// Interpolate resolves every {key} placeholder in template against the bag.
// A reference to a key that was never written fails with an
// unresolved-key error; this is the default (strict) policy.
func (b *StateBag) Interpolate(template string) (string, error) {
	var missing string
	out := placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		key := placeholderPattern.FindStringSubmatch(match)[1]
		if v, ok := b.values[key]; ok {
			return v
		}
		if missing == "" {
			missing = key
		}
		return match
	})
	if missing != "" {
		return "", NewUnresolvedKeyError(missing)
	}
	return out, nil
}

// InterpolateLenient resolves placeholders like Interpolate but substitutes
// the empty string for keys that were never written.
func (b *StateBag) InterpolateLenient(template string) string {
	return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		key := placeholderPattern.FindStringSubmatch(match)[1]
		return b.values[key]
	})
}

// MarshalJSON serializes the bag as an ordered entry list.
func (b *StateBag) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.Entries())
}

// UnmarshalJSON restores a bag from an ordered entry list.
func (b *StateBag) UnmarshalJSON(data []byte) error {
	var entries []StateEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	b.keys = nil
	b.values = make(map[string]string, len(entries))
	for _, e := range entries {
		b.Set(e.Key, e.Value)
	}
	return nil
}
