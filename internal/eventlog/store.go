// Shoprank - Marketplace Recommendation and User Behavior Modeling
// Copyright 2026 David Kim (dkim815)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dkim815/shoprank

// Package eventlog provides a BadgerDB-backed append-only log of feedback
// events with per-user lookup and daily statistics rollups.
//
// Raw events carry a TTL and expire automatically; the daily rollups are
// small and kept indefinitely.
package eventlog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/dkim815/shoprank/internal/metrics"
	"github.com/dkim815/shoprank/internal/recommend"
)

// Key prefixes for BadgerDB storage
const (
	eventKeyPrefix = "evt:"
	userKeyPrefix  = "user:"
	statsKeyPrefix = "stats:"
)

// ErrEventNotFound indicates a lookup for an unknown event ID.
var ErrEventNotFound = errors.New("event not found")

// Config holds event log settings.
type Config struct {
	// Dir is the BadgerDB directory. Ignored when InMemory is set.
	Dir string `json:"dir" koanf:"dir"`

	// InMemory runs the log without disk persistence (tests, ephemeral
	// deployments).
	InMemory bool `json:"in_memory" koanf:"in_memory"`

	// EventTTL is how long raw events are retained.
	EventTTL time.Duration `json:"event_ttl" koanf:"event_ttl"`
}

// DefaultConfig returns production defaults for the event log.
func DefaultConfig() Config {
	return Config{
		Dir:      "data/eventlog",
		EventTTL: 30 * 24 * time.Hour,
	}
}

// DailyStats is the per-day feedback rollup.
type DailyStats struct {
	// Date is the UTC day in YYYY-MM-DD form.
	Date string `json:"date"`

	// Impressions is the impression event count.
	Impressions uint64 `json:"impressions"`

	// Clicks is the click event count.
	Clicks uint64 `json:"clicks"`

	// Purchases is the purchase event count.
	Purchases uint64 `json:"purchases"`

	// Revenue is the summed purchase amount.
	Revenue float64 `json:"revenue"`
}

// Store is the event log.
type Store struct {
	db     *badger.DB
	ttl    time.Duration
	logger zerolog.Logger
}

// Open opens the event log database.
func Open(cfg Config, logger zerolog.Logger) (*Store, error) {
	if cfg.EventTTL <= 0 {
		cfg.EventTTL = DefaultConfig().EventTTL
	}

	opts := badger.DefaultOptions(cfg.Dir).
		WithInMemory(cfg.InMemory).
		WithLogger(nil)
	if cfg.InMemory {
		opts = opts.WithDir("").WithValueDir("")
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}

	return &Store{
		db:     db,
		ttl:    cfg.EventTTL,
		logger: logger.With().Str("component", "eventlog").Logger(),
	}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append writes an event and updates the day's rollup in one transaction.
// Replaying an already-stored event ID is a no-op, so redeliveries never
// double-count the daily stats.
func (s *Store) Append(ctx context.Context, ev recommend.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ev.ID == "" {
		return errors.New("event has no id")
	}

	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		eventKey := []byte(eventKeyPrefix + ev.ID)
		switch _, gerr := txn.Get(eventKey); {
		case gerr == nil:
			// Already logged; skip the index write and the stats bump
			return nil
		case !errors.Is(gerr, badger.ErrKeyNotFound):
			return fmt.Errorf("check event: %w", gerr)
		}

		entry := badger.NewEntry(eventKey, data).WithTTL(s.ttl)
		if err := txn.SetEntry(entry); err != nil {
			return fmt.Errorf("set event: %w", err)
		}

		// Secondary index: user:<id>:<unix-nanos>:<event-id> for ordered
		// per-user scans
		userKey := fmt.Sprintf("%s%s:%020d:%s", userKeyPrefix, ev.UserID, ev.Timestamp.UnixNano(), ev.ID)
		userEntry := badger.NewEntry([]byte(userKey), data).WithTTL(s.ttl)
		if err := txn.SetEntry(userEntry); err != nil {
			return fmt.Errorf("set user index: %w", err)
		}

		return s.bumpDailyStats(txn, ev)
	})

	metrics.RecordEventLogWrite(err)
	return err
}

// bumpDailyStats increments the day's rollup inside the append transaction.
func (s *Store) bumpDailyStats(txn *badger.Txn, ev recommend.Event) error {
	day := ev.Timestamp.UTC().Format("2006-01-02")
	key := []byte(statsKeyPrefix + day)

	stats := DailyStats{Date: day}
	item, err := txn.Get(key)
	switch {
	case err == nil:
		if verr := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &stats)
		}); verr != nil {
			return fmt.Errorf("decode daily stats: %w", verr)
		}
	case errors.Is(err, badger.ErrKeyNotFound):
		// First event of the day
	default:
		return fmt.Errorf("get daily stats: %w", err)
	}

	switch ev.Kind {
	case recommend.EventImpression:
		stats.Impressions++
	case recommend.EventClick:
		stats.Clicks++
	case recommend.EventPurchase:
		stats.Purchases++
		stats.Revenue += ev.Price
	}

	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshal daily stats: %w", err)
	}
	return txn.Set(key, data)
}

// Get retrieves a single event by ID.
func (s *Store) Get(ctx context.Context, id string) (recommend.Event, error) {
	if err := ctx.Err(); err != nil {
		return recommend.Event{}, err
	}

	var ev recommend.Event
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(eventKeyPrefix + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrEventNotFound
		}
		if err != nil {
			return fmt.Errorf("get event: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &ev)
		})
	})
	return ev, err
}

// RecentByUser returns a user's most recent events, newest first.
func (s *Store) RecentByUser(ctx context.Context, userID string, limit int) ([]recommend.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	prefix := []byte(userKeyPrefix + userID + ":")
	events := make([]recommend.Event, 0, limit)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration needs a seek key past the prefix range
		seek := append(append([]byte{}, prefix...), 0xFF)
		for it.Seek(seek); it.ValidForPrefix(prefix) && len(events) < limit; it.Next() {
			var ev recommend.Event
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &ev)
			}); err != nil {
				return fmt.Errorf("decode event: %w", err)
			}
			events = append(events, ev)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

// Daily returns the rollup for a UTC day (YYYY-MM-DD).
// Days with no events return a zero-valued rollup, not an error.
func (s *Store) Daily(ctx context.Context, date string) (DailyStats, error) {
	if err := ctx.Err(); err != nil {
		return DailyStats{}, err
	}

	stats := DailyStats{Date: date}
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(statsKeyPrefix + date))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get daily stats: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &stats)
		})
	})
	return stats, err
}

// RunGC triggers a value log garbage collection pass.
// Badger recommends periodic GC from a background goroutine; the
// ErrNoRewrite result just means there was nothing to collect, and
// in-memory databases have no value log at all.
func (s *Store) RunGC() error {
	err := s.db.RunValueLogGC(0.5)
	if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrGCInMemoryMode) {
		return nil
	}
	return err
}
