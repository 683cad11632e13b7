// Package gcio persists the GC coordinator's retention state to disk and
// correlates it with the checkpoint/WAL directories the snapshot daemon and
// WAL writer maintain — both out of scope per spec.md §1, but named as the
// source of "notifications ... about existing checkpoints" the coordinator
// consumes (§4.4). This package plays that role concretely: a JSON
// manifest of known checkpoint vclocks, written atomically and guarded by
// a file lock, plus a concurrent directory scan correlating WAL segment
// files with the vclock each one starts at.
package gcio

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/calvinalkan/fileproc"

	"github.com/calvinalkan/memtx/internal/fsx"
	"github.com/calvinalkan/memtx/internal/gc"
)

const manifestFileName = "gc-manifest.json"

// Manifest is the durable record of every checkpoint vclock the GC
// coordinator has been notified about, so a restarted process can
// reconstruct gc.Coordinator's checkpoint list without rescanning.
type Manifest struct {
	Checkpoints []gc.VClock `json:"checkpoints"`
}

// SaveManifest serializes m and writes it atomically to dir/gc-manifest.json.
func SaveManifest(fs fsx.FS, dir string, m Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("gcio: marshal manifest: %w", err)
	}

	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("gcio: mkdir manifest dir: %w", err)
	}

	path := filepath.Join(dir, manifestFileName)

	if err := fs.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("gcio: write manifest: %w", err)
	}

	return nil
}

// LoadManifest reads dir/gc-manifest.json, returning an empty Manifest if
// it does not yet exist.
func LoadManifest(fs fsx.FS, dir string) (Manifest, error) {
	path := filepath.Join(dir, manifestFileName)

	data, err := fs.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Manifest{}, nil
		}

		return Manifest{}, fmt.Errorf("gcio: read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("gcio: unmarshal manifest: %w", err)
	}

	return m, nil
}

// LockManifest acquires an exclusive lock guarding concurrent manifest
// writers, at dir/.gc-manifest.lock.
func LockManifest(fs fsx.FS, dir string) (*fsx.Lock, error) {
	locker := fsx.NewLocker(fs)

	lock, err := locker.TryLock(filepath.Join(dir, ".gc-manifest.lock"))
	if err != nil {
		return nil, fmt.Errorf("gcio: lock manifest: %w", err)
	}

	return lock, nil
}

// WALSegment is one on-disk WAL segment file correlated with the vclock it
// starts at (the header's own `Start` field, a JSON-encoded stand-in for
// the real binary WAL segment header format, which is out of scope per
// spec.md §1 — the same documented-exception posture as the tuple
// encoding shim in encoding.go: no pack example carries a WAL segment
// format library).
type WALSegment struct {
	Path  string    `json:"path"`
	Start gc.VClock `json:"start"`
}

type walSegmentHeader struct {
	Start gc.VClock `json:"start"`
}

// ScanWALDir concurrently walks dir for "*.wal" files and parses each
// one's header, using fileproc's parallel directory walker
// (github.com/calvinalkan/fileproc) the same way the reference
// implementation's internal/store.scanTicketFiles walks a ticket tree:
// fileproc.ProcessStat streams stat+lazy-open pairs to a worker pool, and
// per-file errors are collected rather than aborting the whole scan.
func ScanWALDir(ctx context.Context, dir string) ([]WALSegment, error) {
	opts := fileproc.Options{
		Recursive: false,
		Suffix:    ".wal",
	}

	results, errs := fileproc.ProcessStat(ctx, dir, func(path []byte, _ fileproc.Stat, f fileproc.LazyFile) (*WALSegment, error) {
		var hdr walSegmentHeader

		if err := json.NewDecoder(f).Decode(&hdr); err != nil {
			return nil, &fileproc.ProcessError{Path: string(path), Err: err}
		}

		return &WALSegment{Path: filepath.Join(dir, string(path)), Start: hdr.Start}, nil
	}, opts)

	if len(errs) > 0 {
		return nil, fmt.Errorf("gcio: scan wal dir %s: %w", dir, errsJoin(errs))
	}

	segments := make([]WALSegment, 0, len(results))
	for _, r := range results {
		segments = append(segments, r.Value)
	}

	return segments, nil
}

func errsJoin(errs []error) error {
	var joined error

	for _, e := range errs {
		if joined == nil {
			joined = e

			continue
		}

		joined = fmt.Errorf("%w; %w", joined, e)
	}

	return joined
}
