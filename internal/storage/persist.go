package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/saorsa-labs/communitas-core/internal/types"
)

// ledgerRecord is what the write-ahead log and snapshot persist for one
// PrivateMax address: the encrypted envelope bytes plus its metadata.
type ledgerRecord struct {
	Blob []byte                 `json:"blob"`
	Meta types.StorageMetadata  `json:"meta"`
}

const (
	ledgerOpPut    = "PUT"
	ledgerOpDelete = "DELETE"
)

type ledgerEntry struct {
	Op     string               `json:"op"`
	Key    types.StorageAddress `json:"key"`
	Record ledgerRecord         `json:"record,omitempty"`
}

// ledgerWAL is an append-only, newline-delimited JSON log: every local
// mutation is durably recorded before the in-memory maps change, so a
// crashed node can rebuild its PrivateMax content by replaying from the
// last snapshot forward.
type ledgerWAL struct {
	mu   sync.Mutex
	file *os.File
}

func openLedgerWAL(path string) (*ledgerWAL, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &ledgerWAL{file: f}, nil
}

func (w *ledgerWAL) append(e ledgerEntry) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if _, err := w.file.Write(data); err != nil {
		return err
	}
	return w.file.Sync()
}

func (w *ledgerWAL) readAll() ([]ledgerEntry, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.file.Seek(0, 0); err != nil {
		return nil, err
	}

	var entries []ledgerEntry
	scanner := bufio.NewScanner(w.file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e ledgerEntry
		if err := json.Unmarshal(line, &e); err != nil {
			// Corrupt tail entry from a partial write — skip it and keep
			// replaying; the snapshot plus the entries before it are
			// still sound.
			continue
		}
		entries = append(entries, e)
	}
	return entries, scanner.Err()
}

func (w *ledgerWAL) truncate() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.file.Truncate(0); err != nil {
		return err
	}
	_, err := w.file.Seek(0, 0)
	return err
}

func (w *ledgerWAL) close() error {
	return w.file.Close()
}

// snapshotFile is the on-disk shape of snapshot.json: the full
// address -> record set at the moment the snapshot was taken.
type snapshotFile struct {
	Records []snapshotEntry `json:"records"`
}

type snapshotEntry struct {
	Key    types.StorageAddress `json:"key"`
	Record ledgerRecord         `json:"record"`
}

func writeSnapshot(dataDir string, records map[types.StorageAddress]ledgerRecord) error {
	path := filepath.Join(dataDir, "snapshot.json")
	tmp := path + ".tmp"

	snap := snapshotFile{Records: make([]snapshotEntry, 0, len(records))}
	for k, v := range records {
		snap.Records = append(snap.Records, snapshotEntry{Key: k, Record: v})
	}

	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(snap); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	// Atomic rename: a crash between Create and Rename leaves the previous
	// snapshot intact.
	return os.Rename(tmp, path)
}

func loadSnapshot(dataDir string) (map[types.StorageAddress]ledgerRecord, error) {
	path := filepath.Join(dataDir, "snapshot.json")
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return map[types.StorageAddress]ledgerRecord{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var snap snapshotFile
	if err := json.NewDecoder(f).Decode(&snap); err != nil {
		return nil, err
	}
	records := make(map[types.StorageAddress]ledgerRecord, len(snap.Records))
	for _, e := range snap.Records {
		records[e.Key] = e.Record
	}
	return records, nil
}

// openLedger loads the last snapshot and replays every WAL entry written
// after it, returning the reconstructed address -> record map and an open
// WAL ready to accept further appends.
func openLedger(dataDir string) (map[types.StorageAddress]ledgerRecord, *ledgerWAL, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create data dir: %w", err)
	}

	records, err := loadSnapshot(dataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("load snapshot: %w", err)
	}

	wal, err := openLedgerWAL(filepath.Join(dataDir, "wal.log"))
	if err != nil {
		return nil, nil, fmt.Errorf("open wal: %w", err)
	}

	entries, err := wal.readAll()
	if err != nil {
		return nil, nil, fmt.Errorf("replay wal: %w", err)
	}
	for _, e := range entries {
		switch e.Op {
		case ledgerOpPut:
			records[e.Key] = e.Record
		case ledgerOpDelete:
			delete(records, e.Key)
		}
	}

	return records, wal, nil
}
