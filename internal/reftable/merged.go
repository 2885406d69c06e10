package reftable

import "sort"

// Merged is the logical, deduplicated view across every table currently in
// a stack, as described by spec.md §3 ("Merged view"). It is built eagerly
// from a snapshot of readers; per spec.md §4.2 it is "only valid until the
// next write".
type Merged struct {
	refs []RefRecord
	logs []LogRecord
}

// NewMerged merges readers (oldest first, i.e. in stack order) into one
// sorted, shadowed view. For refs, the table with the highest stack
// position wins ties on Name. For logs, the table with the highest stack
// position wins ties on the (RefName, UpdateIndex) pair — this is what
// lets an expiry tombstone (written into a later table, carrying the
// same update index as the entry it replaces) shadow the original entry
// it supersedes.
func NewMerged(readers []*Reader) (*Merged, error) {
	type refEntry struct {
		rec   RefRecord
		order int
	}
	refByName := make(map[string]refEntry)
	for order, rd := range readers {
		for _, rec := range rd.refs {
			if prev, ok := refByName[rec.Name]; !ok || order >= prev.order {
				refByName[rec.Name] = refEntry{rec, order}
			}
		}
	}
	refs := make([]RefRecord, 0, len(refByName))
	for _, e := range refByName {
		refs = append(refs, e.rec)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Name < refs[j].Name })

	type logKey struct {
		name string
		idx  uint64
	}
	type logEntry struct {
		rec   LogRecord
		order int
	}
	logByKey := make(map[logKey]logEntry)
	for order, rd := range readers {
		for _, rec := range rd.logs {
			k := logKey{rec.RefName, rec.UpdateIndex}
			if prev, ok := logByKey[k]; !ok || order >= prev.order {
				logByKey[k] = logEntry{rec, order}
			}
		}
	}
	logs := make([]LogRecord, 0, len(logByKey))
	for _, e := range logByKey {
		logs = append(logs, e.rec)
	}
	sort.Slice(logs, func(i, j int) bool {
		if logs[i].RefName != logs[j].RefName {
			return logs[i].RefName < logs[j].RefName
		}
		return logs[i].UpdateIndex > logs[j].UpdateIndex
	})

	return &Merged{refs: refs, logs: logs}, nil
}

// Lookup returns the exact ref record for name, if any exists in the
// merged view (including tombstones).
func (m *Merged) Lookup(name string) (RefRecord, bool) {
	i := sort.Search(len(m.refs), func(i int) bool { return m.refs[i].Name >= name })
	if i < len(m.refs) && m.refs[i].Name == name {
		return m.refs[i].Clone(), true
	}
	return RefRecord{}, false
}

// RefCursor walks ref records in ascending name order starting at a seek
// point.
type RefCursor struct {
	refs []RefRecord
	i    int
}

// SeekRef positions a cursor at the first ref record with Name >= prefix.
func (m *Merged) SeekRef(prefix string) *RefCursor {
	i := sort.Search(len(m.refs), func(i int) bool { return m.refs[i].Name >= prefix })
	return &RefCursor{refs: m.refs, i: i}
}

// Next returns the next record, or ok=false at end of stream.
func (c *RefCursor) Next() (RefRecord, bool) {
	if c.i >= len(c.refs) {
		return RefRecord{}, false
	}
	r := c.refs[c.i]
	c.i++
	return r.Clone(), true
}

// LogCursor walks log records in (RefName asc, UpdateIndex desc) order.
type LogCursor struct {
	logs []LogRecord
	i    int
}

// SeekLog positions a cursor at the first log record with RefName >= name.
func (m *Merged) SeekLog(name string) *LogCursor {
	i := sort.Search(len(m.logs), func(i int) bool { return m.logs[i].RefName >= name })
	return &LogCursor{logs: m.logs, i: i}
}

// Next returns the next record, or ok=false at end of stream.
func (c *LogCursor) Next() (LogRecord, bool) {
	if c.i >= len(c.logs) {
		return LogRecord{}, false
	}
	r := c.logs[c.i]
	c.i++
	return r.Clone(), true
}
