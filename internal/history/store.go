// Package history persists received alerts to an embedded bolt database so
// the recall plugin can answer "have we seen this before" queries across
// restarts.
package history

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.etcd.io/bbolt"
	"go.uber.org/zap"
)

const (
	// AlertsBucket maps fingerprint -> JSON-encoded []Entry
	AlertsBucket = "alerts"
	// MetaBucket holds schema bookkeeping
	MetaBucket = "meta"

	// SchemaVersionKey is the meta key holding the schema version
	SchemaVersionKey = "schema_version"
	// CurrentSchemaVersion is bumped on incompatible layout changes
	CurrentSchemaVersion uint64 = 1
)

// Entry is one observed alert occurrence
type Entry struct {
	Fingerprint  string            `json:"fingerprint"`
	Status       string            `json:"status"`
	AlertName    string            `json:"alertname"`
	Labels       map[string]string `json:"labels"`
	Annotations  map[string]string `json:"annotations"`
	StartsAt     time.Time         `json:"startsAt"`
	EndsAt       time.Time         `json:"endsAt,omitempty"`
	GeneratorURL string            `json:"generatorURL,omitempty"`
	ReceivedAt   time.Time         `json:"receivedAt"`

	// webhook context the alert arrived with
	Receiver string `json:"receiver,omitempty"`
	GroupKey string `json:"groupKey,omitempty"`
}

// Stats summarizes the stored history
type Stats struct {
	Fingerprints int            `json:"fingerprints"`
	Entries      int            `json:"entries"`
	ByStatus     map[string]int `json:"by_status"`
	ByAlertName  map[string]int `json:"by_alertname"`
}

// Store wraps bolt operations for alert history
type Store struct {
	db     *bbolt.DB
	logger *zap.SugaredLogger
}

// New opens (or creates) the history database under dataDir
func New(dataDir string, logger *zap.SugaredLogger) (*Store, error) {
	dbPath := filepath.Join(dataDir, "history.db")

	db, err := bbolt.Open(dbPath, 0644, &bbolt.Options{
		Timeout: 10 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	store := &Store{
		db:     db,
		logger: logger,
	}

	if err := store.initBuckets(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize buckets: %w", err)
	}

	return store, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range []string{AlertsBucket, MetaBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(bucket)); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}

		metaBucket := tx.Bucket([]byte(MetaBucket))
		versionBytes := make([]byte, 8)
		binary.LittleEndian.PutUint64(versionBytes, CurrentSchemaVersion)
		return metaBucket.Put([]byte(SchemaVersionKey), versionBytes)
	})
}

// Append records one alert occurrence under its fingerprint
func (s *Store) Append(entry Entry) error {
	if entry.Fingerprint == "" {
		return fmt.Errorf("entry has no fingerprint")
	}
	if entry.ReceivedAt.IsZero() {
		entry.ReceivedAt = time.Now().UTC()
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(AlertsBucket))
		if bucket == nil {
			return fmt.Errorf("alerts bucket not found")
		}

		var entries []Entry
		if existing := bucket.Get([]byte(entry.Fingerprint)); existing != nil {
			if err := json.Unmarshal(existing, &entries); err != nil {
				s.logger.Warnw("Discarding unreadable history record",
					"fingerprint", entry.Fingerprint, "error", err)
				entries = nil
			}
		}
		entries = append(entries, entry)

		data, err := json.Marshal(entries)
		if err != nil {
			return fmt.Errorf("failed to marshal history entries: %w", err)
		}
		return bucket.Put([]byte(entry.Fingerprint), data)
	})
}

// ByFingerprint returns all occurrences recorded for one fingerprint,
// oldest first. A missing fingerprint yields an empty slice, not an error.
func (s *Store) ByFingerprint(fingerprint string) ([]Entry, error) {
	var entries []Entry
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(AlertsBucket))
		if bucket == nil {
			return fmt.Errorf("alerts bucket not found")
		}
		data := bucket.Get([]byte(fingerprint))
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &entries)
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Query returns recorded occurrences filtered by status and alertname
// (either may be empty), newest first, capped at limit (0 means no cap).
func (s *Store) Query(status, alertName string, limit int) ([]Entry, error) {
	var matched []Entry
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(AlertsBucket))
		if bucket == nil {
			return fmt.Errorf("alerts bucket not found")
		}
		return bucket.ForEach(func(_, data []byte) error {
			var entries []Entry
			if err := json.Unmarshal(data, &entries); err != nil {
				return nil // skip unreadable records
			}
			for _, entry := range entries {
				if status != "" && entry.Status != status {
					continue
				}
				if alertName != "" && !strings.EqualFold(entry.AlertName, alertName) {
					continue
				}
				matched = append(matched, entry)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].ReceivedAt.After(matched[j].ReceivedAt)
	})
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// Stats aggregates counts across the whole store
func (s *Store) Stats() (*Stats, error) {
	stats := &Stats{
		ByStatus:    make(map[string]int),
		ByAlertName: make(map[string]int),
	}
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(AlertsBucket))
		if bucket == nil {
			return fmt.Errorf("alerts bucket not found")
		}
		return bucket.ForEach(func(_, data []byte) error {
			var entries []Entry
			if err := json.Unmarshal(data, &entries); err != nil {
				return nil
			}
			stats.Fingerprints++
			stats.Entries += len(entries)
			for _, entry := range entries {
				stats.ByStatus[entry.Status]++
				if entry.AlertName != "" {
					stats.ByAlertName[entry.AlertName]++
				}
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// SchemaVersion returns the stored schema version
func (s *Store) SchemaVersion() (uint64, error) {
	var version uint64
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(MetaBucket))
		if bucket == nil {
			return fmt.Errorf("meta bucket not found")
		}
		if data := bucket.Get([]byte(SchemaVersionKey)); data != nil {
			version = binary.LittleEndian.Uint64(data)
		}
		return nil
	})
	return version, err
}
