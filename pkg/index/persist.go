package index

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/openviking/vikingdb/pkg/record"
	"github.com/openviking/vikingdb/pkg/vdberrors"
)

// writeDoneSuffix marks a version directory as a complete, crash-safe
// snapshot: the dump finishes writing under a temp path, then this
// zero-byte marker is touched as the last step, so a reader can tell a
// torn write from a complete one just by the marker's presence.
const writeDoneSuffix = ".write_done"

// snapshotEntry is the on-disk shape of one EngineEntry.
type snapshotEntry struct {
	Label  uint64             `json:"label"`
	Dense  []float32          `json:"dense,omitempty"`
	Sparse map[uint32]float32 `json:"sparse,omitempty"`
}

// PersistDir manages the versions/ directory for one index: dumping new
// snapshots, finding the newest valid one to recover from, and garbage
// collecting everything else.
type PersistDir struct {
	root string // .../<collection>/index/<index-name>/versions
}

// NewPersistDir ensures indexDir/versions exists and returns a handle to it.
func NewPersistDir(indexDir string) (*PersistDir, error) {
	root := filepath.Join(indexDir, "versions")
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, vdberrors.New("index.persist.init", vdberrors.IndexIO, err)
	}
	return &PersistDir{root: root}, nil
}

// NewestVersion scans for the highest-numbered version directory that has
// a matching .write_done marker; a version without one is an incomplete
// (crashed-mid-write) snapshot and is ignored. Returns 0 if none is valid.
func (p *PersistDir) NewestVersion() (int64, error) {
	entries, err := os.ReadDir(p.root)
	if err != nil {
		return 0, vdberrors.New("index.persist.newest_version", vdberrors.IndexIO, err)
	}

	var versions []int64
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		v, err := strconv.ParseInt(e.Name(), 10, 64)
		if err != nil {
			continue
		}
		if _, err := os.Stat(filepath.Join(p.root, e.Name()+writeDoneSuffix)); err != nil {
			continue
		}
		versions = append(versions, v)
	}
	if len(versions) == 0 {
		return 0, nil
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] > versions[j] })
	return versions[0], nil
}

// Dump writes engine's snapshot to a new version directory stamped with
// versionNS (nanosecond timestamp), then touches the .write_done marker as
// the final step so a concurrent reader never observes a partial write.
func (p *PersistDir) Dump(versionNS int64, engine Engine) error {
	versionDir := filepath.Join(p.root, strconv.FormatInt(versionNS, 10))
	tmpDir := versionDir + ".tmp"
	if err := os.RemoveAll(tmpDir); err != nil {
		return vdberrors.New("index.persist.dump", vdberrors.IndexIO, err)
	}
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return vdberrors.New("index.persist.dump", vdberrors.IndexIO, err)
	}

	entries := engine.Snapshot()
	rows := make([]snapshotEntry, len(entries))
	for i, e := range entries {
		rows[i] = snapshotEntry{Label: uint64(e.Label), Dense: e.Dense, Sparse: e.Sparse}
	}
	data, err := json.Marshal(rows)
	if err != nil {
		return vdberrors.New("index.persist.dump", vdberrors.IndexIO, err)
	}
	if err := os.WriteFile(filepath.Join(tmpDir, "data.json"), data, 0o644); err != nil {
		return vdberrors.New("index.persist.dump", vdberrors.IndexIO, err)
	}

	if err := os.Rename(tmpDir, versionDir); err != nil {
		return vdberrors.New("index.persist.dump", vdberrors.IndexIO, err)
	}
	marker, err := os.Create(versionDir + writeDoneSuffix)
	if err != nil {
		return vdberrors.New("index.persist.dump", vdberrors.IndexIO, err)
	}
	return marker.Close()
}

// Load reads the snapshot at version and replays it into a freshly built
// engine via makeEngine, returning the populated engine.
func (p *PersistDir) Load(version int64, makeEngine func() Engine) (Engine, error) {
	versionDir := filepath.Join(p.root, strconv.FormatInt(version, 10))
	data, err := os.ReadFile(filepath.Join(versionDir, "data.json"))
	if err != nil {
		return nil, vdberrors.New("index.persist.load", vdberrors.IndexIO, err)
	}
	var rows []snapshotEntry
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, vdberrors.New("index.persist.load", vdberrors.IndexIO, err)
	}

	engine := makeEngine()
	for _, row := range rows {
		if err := engine.Insert(record.Label(row.Label), row.Dense, row.Sparse); err != nil {
			return nil, vdberrors.New("index.persist.load", vdberrors.IndexIO, err)
		}
	}
	// Stamp the engine with the version this snapshot was dumped at so a
	// caller's subsequent delta replay resumes from exactly here rather than
	// from 0.
	engine.SetVersion(version)
	return engine, nil
}

// GC removes every version directory (and its .write_done marker) except
// those named in keep — Collection.Persist passes {previous newest,
// dump_version} so a reader mid-recovery never loses the version it's about
// to open.
func (p *PersistDir) GC(keep []int64) error {
	keepSet := make(map[string]bool, len(keep)*2)
	for _, v := range keep {
		name := strconv.FormatInt(v, 10)
		keepSet[name] = true
		keepSet[name+writeDoneSuffix] = true
	}

	entries, err := os.ReadDir(p.root)
	if err != nil {
		return vdberrors.New("index.persist.gc", vdberrors.IndexIO, err)
	}
	for _, e := range entries {
		if keepSet[e.Name()] {
			continue
		}
		if err := os.RemoveAll(filepath.Join(p.root, e.Name())); err != nil {
			return vdberrors.New("index.persist.gc", vdberrors.IndexIO, fmt.Errorf("removing %s: %w", e.Name(), err))
		}
	}
	return nil
}
