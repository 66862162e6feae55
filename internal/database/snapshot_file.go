package database

import (
	"bufio"
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/kozaktomas/face-auth/internal/facematch"
)

const (
	snapshotMagic   = "FTPL"
	snapshotVersion = 1
)

// Ensure FilePersister implements SnapshotPersister interface at compile time
var _ SnapshotPersister = (*FilePersister)(nil)

// snapshotFile is the gob payload of a snapshot file.
type snapshotFile struct {
	Version   int
	SavedAt   time.Time
	Templates map[string][][]float32
}

// FilePersister writes snapshots to a single file as a zstd-compressed gob
// stream behind a small header. Writes go to a temp file in the same
// directory which is renamed over the target, so readers see either the old
// or the new snapshot, never a partial one.
type FilePersister struct {
	path string
}

// NewFilePersister creates a persister for path.
func NewFilePersister(path string) *FilePersister {
	return &FilePersister{path: path}
}

// Path returns the snapshot file path.
func (p *FilePersister) Path() string {
	return p.path
}

// Name implements SnapshotPersister.
func (p *FilePersister) Name() string {
	return "file"
}

// Load reads the snapshot file. A missing file yields an empty snapshot.
func (p *FilePersister) Load(_ context.Context) (Snapshot, error) {
	f, err := os.Open(p.path) //nolint:gosec // path is from trusted config
	if errors.Is(err, os.ErrNotExist) {
		return make(Snapshot), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot file: %w", err)
	}
	defer f.Close()

	return decodeSnapshot(bufio.NewReader(f))
}

// Save atomically replaces the snapshot file.
func (p *FilePersister) Save(_ context.Context, snapshot Snapshot) error {
	return writeFileAtomic(p.path, func(w io.Writer) error {
		return encodeSnapshot(w, snapshot)
	})
}

func encodeSnapshot(w io.Writer, snapshot Snapshot) error {
	if _, err := io.WriteString(w, snapshotMagic); err != nil {
		return fmt.Errorf("failed to write snapshot header: %w", err)
	}
	if _, err := w.Write([]byte{snapshotVersion}); err != nil {
		return fmt.Errorf("failed to write snapshot header: %w", err)
	}

	zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("failed to create zstd encoder: %w", err)
	}

	payload := snapshotFile{
		Version:   snapshotVersion,
		SavedAt:   time.Now().UTC(),
		Templates: make(map[string][][]float32, len(snapshot)),
	}
	for id, embs := range snapshot {
		vecs := make([][]float32, len(embs))
		for i, e := range embs {
			vecs[i] = e
		}
		payload.Templates[id] = vecs
	}

	if err := gob.NewEncoder(zw).Encode(payload); err != nil {
		_ = zw.Close()
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to flush zstd encoder: %w", err)
	}
	return nil
}

func decodeSnapshot(r io.Reader) (Snapshot, error) {
	header := make([]byte, len(snapshotMagic)+1)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("%w: reading header: %v", ErrCorruptSnapshot, err)
	}
	if !bytes.Equal(header[:len(snapshotMagic)], []byte(snapshotMagic)) {
		return nil, fmt.Errorf("%w: bad magic", ErrCorruptSnapshot)
	}
	if v := header[len(snapshotMagic)]; v != snapshotVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorruptSnapshot, v)
	}

	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	defer zr.Close()

	var payload snapshotFile
	if err := gob.NewDecoder(zr).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}

	snap := make(Snapshot, len(payload.Templates))
	for id, vecs := range payload.Templates {
		embs := make([]facematch.Embedding, len(vecs))
		for i, v := range vecs {
			embs[i] = v
		}
		snap[id] = embs
	}
	return snap, nil
}

// writeFileAtomic writes to a temp file next to filename, syncs it and
// renames it over filename.
func writeFileAtomic(filename string, writeFunc func(io.Writer) error) error {
	dir := filepath.Dir(filename)
	base := filepath.Base(filename)

	tmp, err := os.CreateTemp(dir, base+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		if tmpName != "" {
			_ = os.Remove(tmpName)
		}
	}()

	if err := tmp.Chmod(0o600); err != nil {
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}

	buf := bufio.NewWriterSize(tmp, 64*1024)
	if err := writeFunc(buf); err != nil {
		return err
	}
	if err := buf.Flush(); err != nil {
		return fmt.Errorf("failed to flush snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close snapshot: %w", err)
	}

	if err := os.Rename(tmpName, filename); err != nil {
		return fmt.Errorf("failed to replace snapshot file: %w", err)
	}
	tmpName = ""

	// Best-effort: fsync the directory so the rename is durable on POSIX.
	if d, err := os.Open(dir); err == nil { //nolint:gosec // dir of trusted config path
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}
