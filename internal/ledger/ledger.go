// Package ledger accumulates the unique detected values per document and per
// category across a run, with incremental checkpointing to durable storage.
//
// Because the ledger holds raw PII values, files can optionally be sealed
// with NaCl secretbox before hitting disk. The default output is plain,
// human-readable, key-ordered JSON.
package ledger

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"golang.org/x/crypto/nacl/secretbox"

	"github.com/dativo-io/veil/internal/entity"
)

// sealMagic prefixes encrypted ledger files so Load can distinguish them
// from plain JSON.
var sealMagic = []byte("VEILBOX1")

// Ledger is the in-memory per-document entity record. All methods are safe
// for concurrent use; a checkpoint is a point-in-time snapshot taken under
// the same lock as Record, so partial writes never interleave.
type Ledger struct {
	mu    sync.Mutex
	docs  map[string]*record
	parts int
	key   *[32]byte
}

// record holds first-occurrence-ordered unique values per category key.
type record struct {
	values map[string][]string
	seen   map[string]map[string]bool
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithEncryptionKey seals checkpoint and finalize output with the given
// 32-byte key. Load needs the same key.
func WithEncryptionKey(key []byte) Option {
	return func(l *Ledger) {
		var k [32]byte
		copy(k[:], key)
		l.key = &k
	}
}

// New creates an empty ledger.
func New(opts ...Option) *Ledger {
	l := &Ledger{docs: make(map[string]*record)}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Record adds the resolved entities of one document. Duplicate values under
// the same category are dropped; first-occurrence order is preserved. A call
// with zero entities records nothing, keeping the ledger sparse.
func (l *Ledger) Record(documentID string, resolved []entity.Candidate) {
	if len(resolved) == 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.docs[documentID]
	if !ok {
		rec = &record{
			values: make(map[string][]string),
			seen:   make(map[string]map[string]bool),
		}
		l.docs[documentID] = rec
	}
	for _, e := range resolved {
		rec.add(e.Category.Key(), e.Text)
	}
}

func (r *record) add(category, value string) {
	if r.seen[category] == nil {
		r.seen[category] = make(map[string]bool)
	}
	if r.seen[category][value] {
		return
	}
	r.seen[category][value] = true
	r.values[category] = append(r.values[category], value)
}

// Has reports whether the document id is already recorded.
func (l *Ledger) Has(documentID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.docs[documentID]
	return ok
}

// Len returns the number of documents with at least one recorded entity.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.docs)
}

// Snapshot returns a deep copy of the ledger contents, keyed by document id
// then lower_snake_case category.
func (l *Ledger) Snapshot() map[string]map[string][]string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

func (l *Ledger) snapshotLocked() map[string]map[string][]string {
	out := make(map[string]map[string][]string, len(l.docs))
	for id, rec := range l.docs {
		cats := make(map[string][]string, len(rec.values))
		for cat, vals := range rec.values {
			cats[cat] = append([]string(nil), vals...)
		}
		out[id] = cats
	}
	return out
}

// Merge folds a previously loaded snapshot into the ledger, preserving the
// order of values already present and deduplicating per category.
func (l *Ledger) Merge(snapshot map[string]map[string][]string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, cats := range snapshot {
		rec, ok := l.docs[id]
		if !ok {
			rec = &record{
				values: make(map[string][]string),
				seen:   make(map[string]map[string]bool),
			}
			l.docs[id] = rec
		}
		for cat, vals := range cats {
			for _, v := range vals {
				rec.add(cat, v)
			}
		}
	}
}

// Checkpoint serializes the current state to "<path>.partN" without touching
// the in-memory ledger. N increments per call so earlier snapshots are never
// truncated. Returns the written file path.
func (l *Ledger) Checkpoint(path string) (string, error) {
	l.mu.Lock()
	snap := l.snapshotLocked()
	l.parts++
	part := l.parts
	key := l.key
	l.mu.Unlock()

	partPath := fmt.Sprintf("%s.part%d", path, part)
	if err := writeSnapshot(partPath, snap, key); err != nil {
		return "", fmt.Errorf("writing ledger checkpoint: %w", err)
	}
	return partPath, nil
}

// Finalize performs one last complete serialization to path.
func (l *Ledger) Finalize(path string) error {
	l.mu.Lock()
	snap := l.snapshotLocked()
	key := l.key
	l.mu.Unlock()

	if err := writeSnapshot(path, snap, key); err != nil {
		return fmt.Errorf("writing ledger: %w", err)
	}
	return nil
}

// writeSnapshot marshals the snapshot as indented JSON (map keys sort, so
// output is key-ordered) and optionally seals it.
func writeSnapshot(path string, snap map[string]map[string][]string, key *[32]byte) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	if key != nil {
		data, err = seal(data, key)
		if err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o600)
}

func seal(plaintext []byte, key *[32]byte) ([]byte, error) {
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}
	out := append([]byte(nil), sealMagic...)
	out = append(out, nonce[:]...)
	return secretbox.Seal(out, plaintext, &nonce, key), nil
}

// Load reads a ledger snapshot from disk (plain or sealed) for resuming a
// prior run. key may be nil for plain files.
func Load(path string, key []byte) (map[string]map[string][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading ledger file: %w", err)
	}

	if len(data) >= len(sealMagic)+24 && string(data[:len(sealMagic)]) == string(sealMagic) {
		if key == nil {
			return nil, fmt.Errorf("ledger file %s is sealed but no key was provided", path)
		}
		var k [32]byte
		copy(k[:], key)
		var nonce [24]byte
		copy(nonce[:], data[len(sealMagic):len(sealMagic)+24])
		plain, ok := secretbox.Open(nil, data[len(sealMagic)+24:], &nonce, &k)
		if !ok {
			return nil, fmt.Errorf("opening sealed ledger file %s: wrong key or corrupt data", path)
		}
		data = plain
	}

	var snap map[string]map[string][]string
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parsing ledger file %s: %w", path, err)
	}
	return snap, nil
}

// Stats summarizes the ledger for end-of-run reporting.
type Stats struct {
	Documents     int
	TotalEntities int
	PerCategory   map[string]int
}

// Stats counts recorded documents and per-category value totals.
func (l *Ledger) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := Stats{
		Documents:   len(l.docs),
		PerCategory: make(map[string]int),
	}
	for _, rec := range l.docs {
		for cat, vals := range rec.values {
			s.PerCategory[cat] += len(vals)
			s.TotalEntities += len(vals)
		}
	}
	return s
}
