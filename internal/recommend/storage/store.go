// Shoprank - Marketplace Recommendation and User Behavior Modeling
// Copyright 2026 David Kim (dkim815)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dkim815/shoprank

// Package storage provides versioned on-disk persistence for engine
// model snapshots.
//
// Snapshots are gob-encoded, gzip-compressed, and carry a SHA-256
// checksum so a truncated or corrupted file is detected at load time
// instead of silently restoring bad model state. Each snapshot name is
// versioned independently ({name}_v{version}.gob.gz), enabling rollback
// and pruning of old versions.
package storage

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dkim815/shoprank/internal/recommend"
)

// ErrSnapshotNotFound indicates no snapshot exists for the requested
// name and version.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// SnapshotMetadata describes a stored snapshot.
type SnapshotMetadata struct {
	// Name is the snapshot family (e.g., "engine").
	Name string `json:"name"`

	// Version is monotonically increasing per name.
	Version int `json:"version"`

	// SavedAt is when the snapshot was written.
	SavedAt time.Time `json:"saved_at"`

	// UserCount is the number of user states in the snapshot.
	UserCount int `json:"user_count"`

	// Checksum is the SHA-256 of the uncompressed gob payload.
	Checksum string `json:"checksum"`

	// SizeBytes is the compressed payload size.
	SizeBytes int64 `json:"size_bytes"`
}

// snapshotFile is the on-disk layout: metadata plus compressed payload,
// gob-encoded as a single struct.
type snapshotFile struct {
	Metadata   SnapshotMetadata
	Compressed []byte
}

// Store manages snapshot files under a base directory.
// All operations are safe for concurrent use.
type Store struct {
	baseDir  string
	mu       sync.RWMutex
	versions map[string]int
}

// NewStore opens (or creates) a snapshot store at baseDir and indexes
// any existing snapshot files.
func NewStore(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o750); err != nil { //nolint:gosec // 0750 is acceptable for model storage
		return nil, fmt.Errorf("create storage directory: %w", err)
	}

	s := &Store{
		baseDir:  baseDir,
		versions: make(map[string]int),
	}
	if err := s.scan(); err != nil {
		return nil, fmt.Errorf("scan snapshots: %w", err)
	}
	return s, nil
}

// scan indexes the latest version per snapshot name.
func (s *Store) scan() error {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name, version, ok := parseSnapshotFilename(entry.Name())
		if !ok {
			continue
		}
		if current, exists := s.versions[name]; !exists || version > current {
			s.versions[name] = version
		}
	}
	return nil
}

// parseSnapshotFilename splits "engine_v3.gob.gz" into ("engine", 3).
func parseSnapshotFilename(filename string) (name string, version int, ok bool) {
	base, found := strings.CutSuffix(filename, ".gob.gz")
	if !found {
		return "", 0, false
	}

	idx := strings.LastIndex(base, "_v")
	if idx <= 0 {
		return "", 0, false
	}

	version, err := strconv.Atoi(base[idx+2:])
	if err != nil || version < 1 {
		return "", 0, false
	}
	return base[:idx], version, true
}

// path returns the file path for a snapshot name and version.
func (s *Store) path(name string, version int) string {
	return filepath.Join(s.baseDir, fmt.Sprintf("%s_v%d.gob.gz", name, version))
}

// Save writes a new snapshot version and returns its metadata.
// The version is allocated automatically (latest + 1).
func (s *Store) Save(ctx context.Context, name string, state recommend.EngineState) (*SnapshotMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var payload bytes.Buffer
	if err := gob.NewEncoder(&payload).Encode(state); err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	raw := payload.Bytes()

	hash := sha256.Sum256(raw)

	var compressed bytes.Buffer
	gzw := gzip.NewWriter(&compressed)
	if _, err := gzw.Write(raw); err != nil {
		return nil, fmt.Errorf("compress snapshot: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return nil, fmt.Errorf("finalize compression: %w", err)
	}

	version := s.versions[name] + 1
	meta := SnapshotMetadata{
		Name:      name,
		Version:   version,
		SavedAt:   time.Now(),
		UserCount: len(state.Users),
		Checksum:  hex.EncodeToString(hash[:]),
		SizeBytes: int64(compressed.Len()),
	}

	// Write to a temp file first so a crash never leaves a half-written
	// snapshot under the final name
	final := s.path(name, version)
	tmp := final + ".tmp"
	f, err := os.Create(tmp) //nolint:gosec // path is built from the trusted name parameter
	if err != nil {
		return nil, fmt.Errorf("create snapshot file: %w", err)
	}

	encErr := gob.NewEncoder(f).Encode(snapshotFile{
		Metadata:   meta,
		Compressed: compressed.Bytes(),
	})
	closeErr := f.Close()
	if encErr != nil {
		_ = os.Remove(tmp) //nolint:errcheck // best-effort cleanup
		return nil, fmt.Errorf("write snapshot file: %w", encErr)
	}
	if closeErr != nil {
		_ = os.Remove(tmp) //nolint:errcheck // best-effort cleanup
		return nil, fmt.Errorf("close snapshot file: %w", closeErr)
	}
	if err := os.Rename(tmp, final); err != nil {
		return nil, fmt.Errorf("publish snapshot file: %w", err)
	}

	s.versions[name] = version
	return &meta, nil
}

// Load reads a snapshot by name and version. Version 0 loads the latest.
func (s *Store) Load(ctx context.Context, name string, version int) (recommend.EngineState, *SnapshotMetadata, error) {
	if err := ctx.Err(); err != nil {
		return recommend.EngineState{}, nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if version == 0 {
		var ok bool
		version, ok = s.versions[name]
		if !ok {
			return recommend.EngineState{}, nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, name)
		}
	}

	f, err := os.Open(s.path(name, version)) //nolint:gosec // path is built from the trusted name parameter
	if err != nil {
		if os.IsNotExist(err) {
			return recommend.EngineState{}, nil, fmt.Errorf("%w: %s v%d", ErrSnapshotNotFound, name, version)
		}
		return recommend.EngineState{}, nil, fmt.Errorf("open snapshot file: %w", err)
	}
	defer func() { _ = f.Close() }() //nolint:errcheck // error on close after read is not actionable

	var sf snapshotFile
	if err := gob.NewDecoder(f).Decode(&sf); err != nil {
		return recommend.EngineState{}, nil, fmt.Errorf("read snapshot file: %w", err)
	}

	gzr, err := gzip.NewReader(bytes.NewReader(sf.Compressed))
	if err != nil {
		return recommend.EngineState{}, nil, fmt.Errorf("decompress snapshot: %w", err)
	}
	defer func() { _ = gzr.Close() }() //nolint:errcheck // error on gzip close after read is not actionable

	raw, err := io.ReadAll(gzr)
	if err != nil {
		return recommend.EngineState{}, nil, fmt.Errorf("read decompressed snapshot: %w", err)
	}

	hash := sha256.Sum256(raw)
	if checksum := hex.EncodeToString(hash[:]); checksum != sf.Metadata.Checksum {
		return recommend.EngineState{}, nil, fmt.Errorf("snapshot checksum mismatch: expected %s, got %s",
			sf.Metadata.Checksum, checksum)
	}

	var state recommend.EngineState
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&state); err != nil {
		return recommend.EngineState{}, nil, fmt.Errorf("decode snapshot: %w", err)
	}

	return state, &sf.Metadata, nil
}

// LatestVersion returns the newest stored version for a name.
func (s *Store) LatestVersion(name string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	version, ok := s.versions[name]
	return version, ok
}

// List returns metadata for the latest snapshot of every name.
func (s *Store) List(ctx context.Context) ([]SnapshotMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []SnapshotMetadata
	for name, version := range s.versions {
		f, err := os.Open(s.path(name, version)) //nolint:gosec // path is built from indexed names
		if err != nil {
			continue
		}

		var sf snapshotFile
		err = gob.NewDecoder(f).Decode(&sf)
		_ = f.Close() //nolint:errcheck // error on close after read is not actionable
		if err != nil {
			continue
		}
		out = append(out, sf.Metadata)
	}
	return out, nil
}

// Prune deletes old versions of a snapshot name, keeping the newest keep
// versions. A keep below 1 is treated as 1.
func (s *Store) Prune(ctx context.Context, name string, keep int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if keep < 1 {
		keep = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	versions, err := s.versionsOf(name)
	if err != nil {
		return err
	}

	sort.Sort(sort.Reverse(sort.IntSlice(versions)))
	for _, v := range versions[min(keep, len(versions)):] {
		_ = os.Remove(s.path(name, v)) //nolint:errcheck // best-effort cleanup of old versions
	}
	return nil
}

// Delete removes a specific snapshot version and re-indexes the name.
func (s *Store) Delete(ctx context.Context, name string, version int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(name, version)); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}

	if s.versions[name] != version {
		return nil
	}

	versions, err := s.versionsOf(name)
	if err != nil {
		return err
	}

	latest := 0
	for _, v := range versions {
		if v > latest {
			latest = v
		}
	}
	if latest == 0 {
		delete(s.versions, name)
		return nil
	}
	s.versions[name] = latest
	return nil
}

// versionsOf lists all on-disk versions for a name.
// Caller must hold the lock.
func (s *Store) versionsOf(name string) ([]int, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("read storage directory: %w", err)
	}

	var versions []int
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		entryName, version, ok := parseSnapshotFilename(entry.Name())
		if !ok || entryName != name {
			continue
		}
		versions = append(versions, version)
	}
	return versions, nil
}

// Register gob types for serialization.
//
//nolint:gochecknoinits // gob.Register must be called in init for type registration
func init() {
	gob.Register(recommend.EngineState{})
	gob.Register(recommend.UserStateSnapshot{})
	gob.Register(SnapshotMetadata{})
	gob.Register(snapshotFile{})
}
