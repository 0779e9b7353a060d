// Package state persists which index mappings this instance has already
// applied, so restarts skip the bootstrap round-trip unless the mapping
// version changed.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// IndexRecord records a mapping applied to an index
type IndexRecord struct {
	Index          string    `json:"index"`
	MappingVersion int       `json:"mapping_version"`
	EnsuredAt      time.Time `json:"ensured_at"`
}

var mu sync.Mutex

const stateFileName = "searchbox_state.json"

func stateFilePath() string {
	if dir := os.Getenv("SEARCHBOX_STATE_DIR"); dir != "" {
		return filepath.Join(dir, stateFileName)
	}
	// Prefer a persistent location when possible; fall back to the working dir
	// so the file survives reboots that clear temp directories.
	defaultDir := "/var/lib/searchbox"
	if err := os.MkdirAll(defaultDir, 0o755); err == nil {
		return filepath.Join(defaultDir, stateFileName)
	}
	if wd, err := os.Getwd(); err == nil {
		return filepath.Join(wd, stateFileName)
	}
	return filepath.Join(os.TempDir(), stateFileName)
}

// loadAllUnlocked reads the state file. Caller must hold the package mutex.
func loadAllUnlocked() (map[string]IndexRecord, error) {
	p := stateFilePath()
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]IndexRecord), nil
		}
		return nil, fmt.Errorf("load state: %w", err)
	}
	out := make(map[string]IndexRecord)
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("unmarshal state: %w", err)
	}
	return out, nil
}

// saveAllUnlocked writes the state file. Caller must hold the package mutex.
func saveAllUnlocked(m map[string]IndexRecord) error {
	p := stateFilePath()
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("mkdir state dir: %w", err)
	}
	if err := os.WriteFile(p, b, 0o640); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	return nil
}

// PutIndexRecord persists a record keyed by index name. The package mutex is
// held for the full read-modify-write cycle to avoid lost updates.
func PutIndexRecord(r IndexRecord) error {
	mu.Lock()
	defer mu.Unlock()
	m, err := loadAllUnlocked()
	if err != nil {
		return err
	}
	m[r.Index] = r
	return saveAllUnlocked(m)
}

// GetIndexRecord looks up a record by index name
func GetIndexRecord(index string) (IndexRecord, bool, error) {
	mu.Lock()
	defer mu.Unlock()
	m, err := loadAllUnlocked()
	if err != nil {
		return IndexRecord{}, false, err
	}
	r, ok := m[index]
	return r, ok, nil
}

// RemoveIndexRecord removes a record by index name. Protected by the package mutex.
func RemoveIndexRecord(index string) error {
	mu.Lock()
	defer mu.Unlock()
	m, err := loadAllUnlocked()
	if err != nil {
		return err
	}
	delete(m, index)
	return saveAllUnlocked(m)
}

// GetAllIndexRecords returns all persisted index records
func GetAllIndexRecords() (map[string]IndexRecord, error) {
	mu.Lock()
	defer mu.Unlock()
	return loadAllUnlocked()
}
