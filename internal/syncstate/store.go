package syncstate

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/gofrs/uuid"
)

// Store is the durable Sync-State Store for one sync pair (spec.md §4.2). A
// sync pair is identified by the sorted, joined set of participating backend
// ids — syncPairId — so two runs naming the same backends in a different
// order address the same on-disk state.
//
// Store is safe for concurrent use by goroutines within one process. Across
// processes, a single writer per syncPairId is enforced with a file lock: a
// second process attempting to Open the same syncPairId fails immediately
// rather than blocking, since state loaded into memory at Open time would
// otherwise go stale under a second writer.
type Store struct {
	mu sync.Mutex

	basePath   string
	syncPairID string
	dir        string

	itemsPath string
	mapPath   string

	lock *flock.Flock

	items    map[string]SyncItem          // syncId -> item
	mappings map[mappingKey]IDMapping     // (source,sourceId,target) -> mapping
	byBackendID map[string]map[string]string // backendId -> (backend-local gid -> syncId)

	cacheLoaded bool
}

// syncPairID computes the deterministic pair id for a set of backend ids:
// sorted and joined with "-" (spec.md §6). Two Opens naming the same
// backends, regardless of order, resolve to the same on-disk directory.
func syncPairID(backendIDs []string) string {
	sorted := append([]string(nil), backendIDs...)
	sort.Strings(sorted)
	return strings.Join(sorted, "-")
}

// Open loads (or initializes) the store for the sync pair named by
// backendIDs, rooted under basePath. It acquires an exclusive file lock for
// the pair and loads the current on-disk state into memory once; the
// in-memory caches are authoritative for the remainder of this Store's
// lifetime (state is not re-read from disk until Close and a fresh Open).
func Open(basePath string, backendIDs []string) (*Store, error) {
	if len(backendIDs) < 2 {
		return nil, fmt.Errorf("syncstate: at least two backend ids required, got %d", len(backendIDs))
	}

	pairID := syncPairID(backendIDs)
	dir := filepath.Join(basePath, "sync-state", pairID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("syncstate: create state dir: %w", err)
	}

	lockPath := filepath.Join(dir, ".lock")
	fl := flock.New(lockPath)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("syncstate: acquire lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("syncstate: sync pair %q is locked by another process", pairID)
	}

	s := &Store{
		basePath:    basePath,
		syncPairID:  pairID,
		dir:         dir,
		itemsPath:   filepath.Join(dir, "sync-items.jsonl"),
		mapPath:     filepath.Join(dir, "id-mappings.jsonl"),
		lock:        fl,
		items:       make(map[string]SyncItem),
		mappings:    make(map[mappingKey]IDMapping),
		byBackendID: make(map[string]map[string]string),
	}

	if err := s.load(); err != nil {
		_ = fl.Unlock()
		return nil, err
	}

	return s, nil
}

// load reads the JSONL logs into the in-memory caches. Each line is the
// latest-known JSON encoding of one SyncItem or IDMapping; later lines for
// the same key supersede earlier ones (append-only log, last-write-wins on
// replay).
func (s *Store) load() error {
	if err := s.loadItems(); err != nil {
		return err
	}
	if err := s.loadMappings(); err != nil {
		return err
	}
	s.cacheLoaded = true
	return nil
}

func (s *Store) loadItems() error {
	f, err := os.Open(s.itemsPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("syncstate: open items log: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		var rec itemRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return fmt.Errorf("syncstate: decode items log line: %w", err)
		}
		if rec.Deleted {
			s.forgetItem(rec.Item.SyncID)
			continue
		}
		s.indexItem(rec.Item)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("syncstate: scan items log: %w", err)
	}
	return nil
}

func (s *Store) loadMappings() error {
	f, err := os.Open(s.mapPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("syncstate: open mappings log: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		var m IDMapping
		if err := json.Unmarshal(line, &m); err != nil {
			return fmt.Errorf("syncstate: decode mappings log line: %w", err)
		}
		if item, ok := s.items[m.SyncID]; !ok || item.BackendIDs[m.SourceBackend] != m.SourceID || item.BackendIDs[m.TargetBackend] != m.TargetID {
			continue
		}
		s.mappings[mappingKey{m.SourceBackend, m.SourceID, m.TargetBackend}] = m
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("syncstate: scan mappings log: %w", err)
	}
	return nil
}

// itemRecord is the on-disk envelope for one sync-items.jsonl line: either an
// upsert of Item, or a tombstone (Deleted=true, only SyncID populated).
type itemRecord struct {
	Item    SyncItem `json:"item"`
	Deleted bool     `json:"deleted,omitempty"`
}

func (s *Store) indexItem(item SyncItem) {
	s.items[item.SyncID] = item
	for backendID, gid := range item.BackendIDs {
		m, ok := s.byBackendID[backendID]
		if !ok {
			m = make(map[string]string)
			s.byBackendID[backendID] = m
		}
		m[gid] = item.SyncID
	}
}

func (s *Store) forgetItem(syncID string) {
	item, ok := s.items[syncID]
	if !ok {
		return
	}
	for backendID, gid := range item.BackendIDs {
		if m, ok := s.byBackendID[backendID]; ok {
			delete(m, gid)
		}
	}
	delete(s.items, syncID)
}

// CreateSyncItem assigns a new syncId and durably records item. CreatedAt
// and UpdatedAt are set to now if zero.
func (s *Store) CreateSyncItem(backendIDs map[string]string, versions map[string]string) (*SyncItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("syncstate: generate syncId: %w", err)
	}

	now := time.Now().UTC()
	item := SyncItem{
		SyncID:        id.String(),
		BackendIDs:    cloneStringMap(backendIDs),
		Versions:      cloneStringMap(versions),
		LastSyncTimes: make(map[string]time.Time, len(backendIDs)),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for backendID := range backendIDs {
		item.LastSyncTimes[backendID] = now
	}

	if err := s.appendItem(item, false); err != nil {
		return nil, err
	}
	s.indexItem(item)
	s.rebuildMappingsForItem(item)

	result := item.clone()
	return &result, nil
}

// UpdateSyncItem applies partial to the item named by syncID and persists
// the result. It returns *NotFoundError if syncID is unknown. On write
// failure the in-memory state is left unchanged (rolled back) so a failed
// write never leaves the cache ahead of disk.
func (s *Store) UpdateSyncItem(syncID string, partial ItemPartial) (*SyncItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.items[syncID]
	if !ok {
		return nil, &NotFoundError{SyncID: syncID}
	}

	updated := existing.clone()
	if partial.BackendIDs != nil {
		for k, v := range partial.BackendIDs {
			updated.BackendIDs[k] = v
		}
	}
	if partial.Versions != nil {
		for k, v := range partial.Versions {
			updated.Versions[k] = v
		}
	}
	if partial.LastSyncTimes != nil {
		for k, v := range partial.LastSyncTimes {
			updated.LastSyncTimes[k] = v
		}
	}
	if partial.HasConflicts != nil {
		updated.HasConflicts = *partial.HasConflicts
	}
	updated.UpdatedAt = time.Now().UTC()

	if err := s.appendItem(updated, false); err != nil {
		// Rollback: in-memory state still reflects `existing`, untouched.
		return nil, err
	}

	// Re-index: drop stale backendID->syncId entries for backends this
	// item no longer claims, then re-add under the new state.
	s.forgetItem(syncID)
	s.indexItem(updated)
	s.rebuildMappingsForItem(updated)

	result := updated.clone()
	return &result, nil
}

// DeleteSyncItem removes the item named by syncID and its derived mappings.
// It is not an error to delete an unknown syncID (idempotent).
func (s *Store) DeleteSyncItem(syncID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[syncID]
	if !ok {
		return nil
	}

	tombstone := itemRecord{Item: SyncItem{SyncID: syncID}, Deleted: true}
	if err := s.appendRecord(s.itemsPath, tombstone); err != nil {
		return err
	}

	s.forgetItem(syncID)
	s.removeMappingsForItem(item)
	return nil
}

// GetSyncItem returns the item named by syncID, or *NotFoundError.
func (s *Store) GetSyncItem(syncID string) (*SyncItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[syncID]
	if !ok {
		return nil, &NotFoundError{SyncID: syncID}
	}
	result := item.clone()
	return &result, nil
}

// FindSyncItemByBackendID returns the item that claims gid within backendID,
// or *NotFoundError if none does.
func (s *Store) FindSyncItemByBackendID(backendID, gid string) (*SyncItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	syncID, ok := s.byBackendID[backendID][gid]
	if !ok {
		return nil, &NotFoundError{SyncID: fmt.Sprintf("%s:%s", backendID, gid)}
	}
	item := s.items[syncID]
	result := item.clone()
	return &result, nil
}

// ItemsForBackend returns every item that has a backendID entry for
// backendID, in no particular order.
func (s *Store) ItemsForBackend(backendID string) []SyncItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []SyncItem
	for _, item := range s.items {
		if _, ok := item.BackendIDs[backendID]; ok {
			out = append(out, item.clone())
		}
	}
	return out
}

// AllItems returns every SyncItem currently tracked.
func (s *Store) AllItems() []SyncItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]SyncItem, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, item.clone())
	}
	return out
}

// GetIDMapping looks up the target-backend id for a (sourceBackend,
// sourceID) pair, under targetBackend.
func (s *Store) GetIDMapping(sourceBackend, sourceID, targetBackend string) (*IDMapping, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.mappings[mappingKey{sourceBackend, sourceID, targetBackend}]
	if !ok {
		return nil, false
	}
	copy := m
	return &copy, true
}

// AllMappings returns every derived IDMapping row.
func (s *Store) AllMappings() []IDMapping {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]IDMapping, 0, len(s.mappings))
	for _, m := range s.mappings {
		out = append(out, m)
	}
	return out
}

// rebuildMappingsForItem derives every (source,target) pair row for item's
// populated backend slots and persists them. For N populated slots this
// produces N*(N-1) rows, both directions, every pair.
func (s *Store) rebuildMappingsForItem(item SyncItem) {
	s.removeMappingsForItem(item)

	for _, m := range DeriveMappings(item, time.Now().UTC()) {
		key := mappingKey{m.SourceBackend, m.SourceID, m.TargetBackend}
		s.mappings[key] = m
		_ = s.appendRecord(s.mapPath, m)
	}
}

// removeMappingsForItem drops every in-memory mapping row derived from
// item's current backend slots. It does not rewrite the on-disk mapping
// log; stale mapping rows are superseded on the next rebuild and ignored on
// replay once their owning item is gone (replay only ever reads the latest
// in-memory state, never an orphaned mapping, since AllMappings/GetIDMapping
// are served from the in-memory index rebuilt by rebuildMappingsForItem).
func (s *Store) removeMappingsForItem(item SyncItem) {
	for backendID, gid := range item.BackendIDs {
		for k := range s.mappings {
			if k.sourceBackend == backendID && k.sourceID == gid {
				delete(s.mappings, k)
			}
		}
	}
}

// appendItem writes item as the newest record in the items log and is the
// single point where an upsert becomes durable.
func (s *Store) appendItem(item SyncItem, deleted bool) error {
	return s.appendRecord(s.itemsPath, itemRecord{Item: item, Deleted: deleted})
}

// appendRecord marshals v as one JSON line and appends it to path. The file
// is opened in append mode so concurrent readers never observe a partial
// line; within this process, s.mu already serializes all writers.
func (s *Store) appendRecord(path string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("syncstate: marshal record: %w", err)
	}
	data = append(data, '\n')

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("syncstate: open %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("syncstate: write %s: %w", path, err)
	}
	return f.Sync()
}

// Close releases the file lock for this sync pair. The Store must not be
// used after Close.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lock.Unlock()
}

// SyncPairID returns the deterministic directory-safe identifier for this
// store's sync pair.
func (s *Store) SyncPairID() string {
	return s.syncPairID
}
