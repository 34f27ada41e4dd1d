// Package history implements the durable, on-disk mirror of the manager's
// in-memory state: a bbolt-backed value store with one bucket for entry
// metadata and JSON payloads, and a sidecar directory holding image bytes
// keyed by digest so the bolt value stays small.
package history

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/clipcatd/clipcat/internal/types"
)

const (
	bucketEntriesV2 = "clips_v2"
	bucketEntriesV1 = "clips" // legacy: kind-less records, treated as Clipboard
	bucketMeta      = "meta"
	schemaKey       = "schema_version"
)

// record is the JSON payload stored per key in bucketEntriesV2.
type record struct {
	ID            uint64             `json:"id"`
	ClipboardKind types.ClipboardKind `json:"kind"`
	Timestamp     time.Time          `json:"timestamp"`
	ContentKind   types.ContentKind  `json:"content_kind"`
	Text          string             `json:"text,omitempty"`
	ImageDigest   string             `json:"image_digest,omitempty"`
	ImageWidth    int                `json:"image_width,omitempty"`
	ImageHeight   int                `json:"image_height,omitempty"`
	Sha256Digest  string             `json:"sha256_digest"`
}

// legacyRecord is the schema-v1 shape: no kind field, text only.
type legacyRecord struct {
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Store is the durable history mirror. Safe for concurrent use only to the
// extent bbolt itself is; the worker serialises all writes through one
// goroutine in practice.
type Store struct {
	logger    *zap.Logger
	db        *bbolt.DB
	imageDir  string
}

// Open opens (creating if necessary) the bbolt database at dbPath and
// ensures imageDir exists for sidecar storage.
func Open(logger *zap.Logger, dbPath, imageDir string) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(imageDir, 0o755); err != nil {
		return nil, fmt.Errorf("history: create image dir: %w", err)
	}
	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", dbPath, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(bucketEntriesV2)); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(bucketMeta)); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("history: init buckets: %w", err)
	}
	return &Store{logger: logger, db: db, imageDir: imageDir}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func idKey(id uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, id)
	return buf
}

// Load detects the on-disk schema and returns every entry it can
// reconstruct. Schema v1 records default their kind to Clipboard and, the
// first time they're seen, are migrated into bucketEntriesV2 and the v1
// bucket is dropped — so a crash between two clean shutdowns can never
// leave the database permanently stuck re-reading the legacy schema.
// Schema v2 image records whose sidecar file is missing are skipped with a
// warning.
func (s *Store) Load() ([]types.ClipEntry, error) {
	var entries []types.ClipEntry
	var migrated bool

	err := s.db.Update(func(tx *bbolt.Tx) error {
		if v2 := tx.Bucket([]byte(bucketEntriesV2)); v2 != nil {
			if err := v2.ForEach(func(k, v []byte) error {
				var rec record
				if err := json.Unmarshal(v, &rec); err != nil {
					return fmt.Errorf("decode v2 record: %w", err)
				}
				entry, ok := s.recordToEntry(rec)
				if !ok {
					return nil
				}
				entries = append(entries, entry)
				return nil
			}); err != nil {
				return err
			}
		}
		v1 := tx.Bucket([]byte(bucketEntriesV1))
		if v1 == nil {
			return nil
		}
		if err := v1.ForEach(func(k, v []byte) error {
			var legacy legacyRecord
			if err := json.Unmarshal(v, &legacy); err != nil {
				return fmt.Errorf("decode v1 record: %w", err)
			}
			content := types.Content{Kind: types.ContentText, Text: legacy.Text}
			entry, err := types.NewClipEntry(content, types.Clipboard, legacy.Timestamp)
			if err != nil {
				return nil
			}
			entries = append(entries, entry)
			return nil
		}); err != nil {
			return err
		}

		v2, err := tx.CreateBucketIfNotExists([]byte(bucketEntriesV2))
		if err != nil {
			return err
		}
		for _, e := range entries {
			data, err := json.Marshal(entryToRecord(e))
			if err != nil {
				return err
			}
			if err := v2.Put(idKey(e.ID), data); err != nil {
				return err
			}
		}
		if err := tx.DeleteBucket([]byte(bucketEntriesV1)); err != nil {
			return err
		}
		migrated = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("history: load: %w", err)
	}
	if migrated {
		s.logger.Info("history: migrated legacy v1 records to v2", zap.Int("count", len(entries)))
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Timestamp.Before(entries[j].Timestamp) })
	return entries, nil
}

func (s *Store) recordToEntry(rec record) (types.ClipEntry, bool) {
	var content types.Content
	switch rec.ContentKind {
	case types.ContentImage:
		data, err := os.ReadFile(filepath.Join(s.imageDir, rec.ImageDigest+".png"))
		if err != nil {
			s.logger.Warn("history: image sidecar missing, skipping entry",
				zap.Uint64("id", rec.ID), zap.String("digest", rec.ImageDigest))
			return types.ClipEntry{}, false
		}
		img, err := types.DecodePNG(data)
		if err != nil {
			s.logger.Warn("history: corrupt image sidecar, skipping entry", zap.Uint64("id", rec.ID), zap.Error(err))
			return types.ClipEntry{}, false
		}
		content = types.Content{Kind: types.ContentImage, Image: img}
	default:
		content = types.Content{Kind: types.ContentText, Text: rec.Text}
	}

	return types.ClipEntry{
		ID:            rec.ID,
		Content:       content,
		ClipboardKind: rec.ClipboardKind,
		Timestamp:     rec.Timestamp,
		Sha256Digest:  rec.Sha256Digest,
	}, true
}

func entryToRecord(e types.ClipEntry) record {
	rec := record{
		ID:            e.ID,
		ClipboardKind: e.ClipboardKind,
		Timestamp:     e.Timestamp,
		ContentKind:   e.Content.Kind,
		Sha256Digest:  e.Sha256Digest,
	}
	switch e.Content.Kind {
	case types.ContentImage:
		rec.ImageDigest = e.Sha256Digest
		rec.ImageWidth = e.Content.Image.Width
		rec.ImageHeight = e.Content.Image.Height
	default:
		rec.Text = e.Content.Text
	}
	return rec
}

func (s *Store) writeSidecar(e types.ClipEntry) error {
	if e.Content.Kind != types.ContentImage {
		return nil
	}
	path := filepath.Join(s.imageDir, e.Sha256Digest+".png")
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	data, err := types.EncodePNG(e.Content.Image)
	if err != nil {
		return err
	}
	// A random suffix, rather than a fixed ".tmp", keeps two concurrent
	// writers of the same digest (e.g. a crash-recovered Save racing a
	// live Put) from clobbering each other's in-flight file.
	tmp := path + "." + uuid.NewString() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Save truncates and rewrites the value bucket with entries, writing an
// image sidecar for each image entry not yet on disk. Sidecar writes
// precede the bucket swap so a crash can only leave unreferenced sidecars.
func (s *Store) Save(entries []types.ClipEntry) error {
	for _, e := range entries {
		if err := s.writeSidecar(e); err != nil {
			return fmt.Errorf("history: write sidecar for %d: %w", e.ID, err)
		}
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket([]byte(bucketEntriesV2)); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
			return err
		}
		b, err := tx.CreateBucket([]byte(bucketEntriesV2))
		if err != nil {
			return err
		}
		for _, e := range entries {
			data, err := json.Marshal(entryToRecord(e))
			if err != nil {
				return err
			}
			if err := b.Put(idKey(e.ID), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// Clear empties the store and deletes every sidecar.
func (s *Store) Clear() error {
	if err := s.Save(nil); err != nil {
		return err
	}
	return s.gcSidecars(nil)
}

// Put appends (or overwrites) a single record, used online by the worker
// for every newly inserted entry.
func (s *Store) Put(e types.ClipEntry) error {
	if err := s.writeSidecar(e); err != nil {
		return fmt.Errorf("history: write sidecar for %d: %w", e.ID, err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketEntriesV2))
		data, err := json.Marshal(entryToRecord(e))
		if err != nil {
			return err
		}
		return b.Put(idKey(e.ID), data)
	})
}

// Delete removes a single record by id, used when the manager evicts or
// removes an entry so the store never outgrows the manager's capacity.
func (s *Store) Delete(id uint64) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketEntriesV2)).Delete(idKey(id))
	})
}

// ShrinkTo keeps the n newest entries by timestamp, rewrites the value
// bucket, and garbage-collects sidecars no longer referenced.
func (s *Store) ShrinkTo(n int) error {
	entries, err := s.Load()
	if err != nil {
		return err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Timestamp.After(entries[j].Timestamp) })
	if n < len(entries) {
		entries = entries[:n]
	}
	if err := s.Save(entries); err != nil {
		return err
	}
	return s.gcSidecars(entries)
}

// SaveAndShrinkTo performs Save then ShrinkTo as a single logical operation,
// used at shutdown.
func (s *Store) SaveAndShrinkTo(entries []types.ClipEntry, n int) error {
	if err := s.Save(entries); err != nil {
		return err
	}
	return s.ShrinkTo(n)
}

func (s *Store) gcSidecars(keep []types.ClipEntry) error {
	referenced := make(map[string]struct{}, len(keep))
	for _, e := range keep {
		if e.Content.Kind == types.ContentImage {
			referenced[e.Sha256Digest] = struct{}{}
		}
	}

	files, err := os.ReadDir(s.imageDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("history: list image dir: %w", err)
	}
	for _, f := range files {
		name := f.Name()
		digest := name[:len(name)-len(filepath.Ext(name))]
		if _, ok := referenced[digest]; ok {
			continue
		}
		if err := os.Remove(filepath.Join(s.imageDir, name)); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("history: failed to remove orphan sidecar", zap.String("file", name), zap.Error(err))
		}
	}
	return nil
}
