package ecs

import (
	"reflect"
	"sort"

	"github.com/kamstrup/intmap"
)

// changeRecord is one added/removed event for a component type, stamped with the
// storage-wide change sequence at the time it happened.
type changeRecord struct {
	entity EntityId
	seq    uint64
}

type changeLog struct {
	added   []changeRecord
	removed []changeRecord
}

// changeTracker keeps a per-type log of component additions and removals.
// Records survive one full tick after they are written (see Storage.TrimChanges).
type changeTracker struct {
	seq       uint64
	trimFloor uint64
	logs      map[reflect.Type]*changeLog
}

func newChangeTracker() *changeTracker {
	return &changeTracker{
		logs: make(map[reflect.Type]*changeLog),
	}
}

func (c *changeTracker) log(t reflect.Type) *changeLog {
	l, ok := c.logs[t]
	if !ok {
		l = &changeLog{}
		c.logs[t] = l
	}
	return l
}

func (c *changeTracker) recordAdded(t reflect.Type, entity EntityId) {
	c.seq++
	l := c.log(t)
	l.added = append(l.added, changeRecord{entity: entity, seq: c.seq})
}

func (c *changeTracker) recordRemoved(t reflect.Type, entity EntityId) {
	c.seq++
	l := c.log(t)
	l.removed = append(l.removed, changeRecord{entity: entity, seq: c.seq})
}

// collect adds every entity recorded after the given sequence into the set.
func collect(records []changeRecord, after uint64, into *intmap.Set[EntityId]) {
	start := sort.Search(len(records), func(i int) bool {
		return records[i].seq > after
	})
	for _, rec := range records[start:] {
		into.Add(rec.entity)
	}
}

func trimRecords(records []changeRecord, upTo uint64) []changeRecord {
	cut := sort.Search(len(records), func(i int) bool {
		return records[i].seq > upTo
	})
	if cut == 0 {
		return records
	}
	return append(records[:0], records[cut:]...)
}

// trim drops every record written before the previous trim and moves the floor forward.
func (c *changeTracker) trim() {
	floor := c.trimFloor
	for t, l := range c.logs {
		l.added = trimRecords(l.added, floor)
		l.removed = trimRecords(l.removed, floor)
		if len(l.added) == 0 && len(l.removed) == 0 {
			delete(c.logs, t)
		}
	}
	c.trimFloor = c.seq
}

// Changes holds the entities whose component of one type was added or removed
// since the reader last looked.
type Changes struct {
	Added   *intmap.Set[EntityId]
	Removed *intmap.Set[EntityId]
}

// ChangeReader is a cursor over the change log of one component type.
// Each Read returns only what happened since the previous Read, so a reader polled
// once per tick sees every addition and removal exactly once. A reader that skips
// more than a full tick misses changes that were trimmed in between.
type ChangeReader struct {
	storage  *Storage
	compType reflect.Type
	cursor   uint64
}

// NewChangeReader creates a reader for component type T.
// A fresh reader observes every change still retained by the storage.
func NewChangeReader[T any](storage *Storage) *ChangeReader {
	return NewChangeReaderFor(storage, reflect.TypeFor[T]())
}

// NewChangeReaderFor creates a reader for the given component type.
func NewChangeReaderFor(storage *Storage, compType reflect.Type) *ChangeReader {
	return &ChangeReader{
		storage:  storage,
		compType: compType,
	}
}

// Type returns the component type this reader observes.
func (r *ChangeReader) Type() reflect.Type {
	return r.compType
}

// Read returns the changes recorded since the last Read and advances the cursor.
func (r *ChangeReader) Read() Changes {
	tracker := r.storage.changes
	changes := Changes{
		Added:   intmap.NewSet[EntityId](8),
		Removed: intmap.NewSet[EntityId](8),
	}

	if l, ok := tracker.logs[r.compType]; ok {
		collect(l.added, r.cursor, changes.Added)
		collect(l.removed, r.cursor, changes.Removed)
	}

	r.cursor = tracker.seq
	return changes
}

// Pending reports whether any change is waiting for the next Read.
func (r *ChangeReader) Pending() bool {
	l, ok := r.storage.changes.logs[r.compType]
	if !ok {
		return false
	}
	last := func(records []changeRecord) uint64 {
		if len(records) == 0 {
			return 0
		}
		return records[len(records)-1].seq
	}
	return last(l.added) > r.cursor || last(l.removed) > r.cursor
}
