package registry

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"toolgate/internal/domain"
)

const (
	schemaVersion = 1

	rootBucketName     = "toolgate"
	metaBucketName     = "meta"
	backendsBucketName = "backends"
	versionKey         = "version"
)

// Store persists backend registrations so dynamically added backends
// survive restarts. Values are JSON, keyed by backend name.
type Store struct {
	mu     sync.RWMutex
	db     *bolt.DB
	path   string
	closed bool
}

// OpenStore opens (or creates) the registration database at path.
func OpenStore(path string) (*Store, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, fmt.Errorf("store path is required")
	}
	if err := os.MkdirAll(filepath.Dir(trimmed), 0o755); err != nil {
		return nil, fmt.Errorf("ensure store dir: %w", err)
	}
	options := &bolt.Options{Timeout: time.Second}
	base, err := bolt.Open(trimmed, 0o600, options)
	if err != nil {
		return nil, fmt.Errorf("open store db: %w", err)
	}
	if err := ensureSchema(base); err != nil {
		_ = base.Close()
		return nil, err
	}
	return &Store{db: base, path: trimmed}, nil
}

func ensureSchema(db *bolt.DB) error {
	return db.Update(func(tx *bolt.Tx) error {
		root, err := tx.CreateBucketIfNotExists([]byte(rootBucketName))
		if err != nil {
			return fmt.Errorf("create root bucket: %w", err)
		}
		meta, err := root.CreateBucketIfNotExists([]byte(metaBucketName))
		if err != nil {
			return fmt.Errorf("create meta bucket: %w", err)
		}
		if _, err := root.CreateBucketIfNotExists([]byte(backendsBucketName)); err != nil {
			return fmt.Errorf("create backends bucket: %w", err)
		}

		current := readSchemaVersion(meta)
		switch {
		case current == 0:
			return writeSchemaVersion(meta, schemaVersion)
		case current > schemaVersion:
			return fmt.Errorf("unsupported store schema version %d", current)
		default:
			return nil
		}
	})
}

func readSchemaVersion(meta *bolt.Bucket) int {
	raw := meta.Get([]byte(versionKey))
	if len(raw) != 8 {
		return 0
	}
	return int(binary.BigEndian.Uint64(raw))
}

func writeSchemaVersion(meta *bolt.Bucket, version int) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(version))
	return meta.Put([]byte(versionKey), buf)
}

// Close releases the database. Safe to call more than once.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Put writes one registration, replacing any previous record for the name.
func (s *Store) Put(reg domain.Registration) error {
	if reg.Name == "" {
		return fmt.Errorf("registration name is required")
	}
	value, err := json.Marshal(reg.Config)
	if err != nil {
		return fmt.Errorf("encode registration %s: %w", reg.Name, err)
	}
	return s.update(func(tx *bolt.Tx) error {
		bucket, err := backendsBucket(tx)
		if err != nil {
			return err
		}
		if err := bucket.Put([]byte(reg.Name), value); err != nil {
			return fmt.Errorf("write registration %s: %w", reg.Name, err)
		}
		return nil
	})
}

// Delete removes a registration. Deleting an absent name is a no-op.
func (s *Store) Delete(name string) error {
	return s.update(func(tx *bolt.Tx) error {
		bucket, err := backendsBucket(tx)
		if err != nil {
			return err
		}
		if err := bucket.Delete([]byte(name)); err != nil {
			return fmt.Errorf("delete registration %s: %w", name, err)
		}
		return nil
	})
}

// Get returns the stored registration for name, if present.
func (s *Store) Get(name string) (domain.Registration, bool, error) {
	var (
		reg   domain.Registration
		found bool
	)
	err := s.view(func(tx *bolt.Tx) error {
		bucket, err := backendsBucket(tx)
		if err != nil {
			return err
		}
		raw := bucket.Get([]byte(name))
		if raw == nil {
			return nil
		}
		var config domain.BackendConfig
		if err := json.Unmarshal(raw, &config); err != nil {
			return fmt.Errorf("decode registration %s: %w", name, err)
		}
		reg = domain.Registration{Name: name, Config: config}
		found = true
		return nil
	})
	return reg, found, err
}

// List returns every stored registration sorted by name. Records that fail
// to decode are skipped rather than failing the whole listing.
func (s *Store) List() ([]domain.Registration, error) {
	var out []domain.Registration
	err := s.view(func(tx *bolt.Tx) error {
		bucket, err := backendsBucket(tx)
		if err != nil {
			return err
		}
		return bucket.ForEach(func(key, value []byte) error {
			if value == nil {
				return nil
			}
			var config domain.BackendConfig
			if err := json.Unmarshal(value, &config); err != nil {
				return nil
			}
			out = append(out, domain.Registration{Name: string(key), Config: config})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) view(fn func(*bolt.Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return domain.ErrStoreClosed
	}
	return s.db.View(fn)
}

func (s *Store) update(fn func(*bolt.Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return domain.ErrStoreClosed
	}
	return s.db.Update(fn)
}

func backendsBucket(tx *bolt.Tx) (*bolt.Bucket, error) {
	root := tx.Bucket([]byte(rootBucketName))
	if root == nil {
		return nil, fmt.Errorf("missing root bucket")
	}
	bucket := root.Bucket([]byte(backendsBucketName))
	if bucket == nil {
		return nil, fmt.Errorf("missing backends bucket")
	}
	return bucket, nil
}
