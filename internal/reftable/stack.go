package reftable

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/singleflight"

	"github.com/untoldecay/reftable/internal/refhash"
	"github.com/untoldecay/reftable/internal/reflock"
)

// ErrLockConflict is returned by NewAddition, Addition.Commit and Add
// when another writer holds the manifest lock or has advanced
// tables.list since the last reload. Callers should reload and retry.
// Compaction does not return it: a compaction that finds a lock held
// or the stack stale gives up and returns nil.
var ErrLockConflict = errors.New("reftable: lock conflict")

// CompactionStats tracks how often compaction (automatic after Add, or
// CompactAll) has been attempted, how often an automatic attempt gave
// up, and how many bytes of compacted tables it has written, for
// diagnostics.
type CompactionStats struct {
	BytesWritten uint64
	Attempts     int
	Failures     int
}

// String renders compaction stats for trace logs, e.g. "3 attempts, 1
// failure, 42 kB written".
func (s CompactionStats) String() string {
	failWord := "failures"
	if s.Failures == 1 {
		failWord = "failure"
	}
	return fmt.Sprintf("%d attempts, %d %s, %s written",
		s.Attempts, s.Failures, failWord, humanize.Bytes(s.BytesWritten))
}

// manifestName is the well-known file listing a stack's tables, one
// per line, oldest first.
const manifestName = "tables.list"

// tableOverheadBytes is the fixed header+footer cost of every table
// this package writes (28-byte header, repeated in the footer, plus a
// 4-byte CRC32). Compaction sizing uses payload size, not file size.
const tableOverheadBytes = headerSize + headerSize + 4

// Stack is an auto-compacting, append-only sequence of reftables
// backed by one directory and one tables.list manifest. It is the
// "external sorted-table stack" collaborator the transactional ref
// backend is built on top of.
type Stack struct {
	dir       string
	listPath  string
	algo      refhash.Algorithm
	blockSize uint32

	mu     sync.Mutex
	stack  []*Reader
	merged *Merged

	reloadGroup singleflight.Group

	Stats CompactionStats
}

// NewStack opens (or creates) a stack rooted at dir, using algo for
// object IDs and blockSize as the advisory block size recorded in new
// tables' headers.
func NewStack(dir string, algo refhash.Algorithm, blockSize uint32) (*Stack, error) {
	st := &Stack{
		dir:       dir,
		listPath:  filepath.Join(dir, manifestName),
		algo:      algo,
		blockSize: blockSize,
	}
	if err := st.Reload(); err != nil {
		return nil, err
	}
	return st, nil
}

func (st *Stack) readNames() ([]string, error) {
	data, err := os.ReadFile(st.listPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var names []string
	for _, line := range strings.Split(string(data), "\n") {
		if line != "" {
			names = append(names, line)
		}
	}
	return names, nil
}

// reloadOnce reopens whichever tables in names aren't already held
// open, reusing existing readers for the rest, and swaps them in.
func (st *Stack) reloadOnce(names []string) error {
	st.mu.Lock()
	cur := make(map[string]*Reader, len(st.stack))
	for _, r := range st.stack {
		cur[r.Name()] = r
	}
	st.mu.Unlock()

	newTables := make([]*Reader, 0, len(names))
	for _, name := range names {
		if rd, ok := cur[name]; ok {
			newTables = append(newTables, rd)
			delete(cur, name)
			continue
		}
		rd, err := NewReaderFromFile(filepath.Join(st.dir, name))
		if err != nil {
			for _, t := range newTables {
				if _, stillCur := cur[t.Name()]; !stillCur {
					t.Close()
				}
			}
			return err
		}
		newTables = append(newTables, rd)
	}

	st.mu.Lock()
	st.stack = newTables
	st.mu.Unlock()
	for _, v := range cur {
		v.Close()
	}
	return nil
}

// Reload re-reads tables.list and refreshes the merged view. Concurrent
// callers collapse onto a single underlying reload via singleflight,
// matching the "reload before every read or mutation" rule: repeated
// reloads across goroutines shouldn't each pay the I/O cost.
func (st *Stack) Reload() error {
	_, err, _ := st.reloadGroup.Do("reload", func() (interface{}, error) {
		return nil, st.reloadLocked()
	})
	return err
}

func (st *Stack) reloadLocked() error {
	deadline := time.Now().Add(2500 * time.Millisecond)
	var names []string
	for {
		var err error
		names, err = st.readNames()
		if err != nil {
			return err
		}
		err = st.reloadOnce(names)
		if err == nil {
			break
		}
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		if time.Now().After(deadline) {
			return err
		}
		after, aerr := st.readNames()
		if aerr != nil {
			return aerr
		}
		if reflect.DeepEqual(after, names) {
			return err
		}
	}

	st.mu.Lock()
	tabs := append([]*Reader(nil), st.stack...)
	st.mu.Unlock()

	merged, err := NewMerged(tabs)
	if err != nil {
		return err
	}
	st.mu.Lock()
	st.merged = merged
	st.mu.Unlock()
	return nil
}

// Merged returns the current merged view. Per spec.md §4.2 it is only
// valid until the next write.
func (st *Stack) Merged() *Merged {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.merged
}

// NextUpdateIndex reports the update index the next Add must use.
func (st *Stack) NextUpdateIndex() uint64 {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.nextUpdateIndexLocked()
}

func (st *Stack) nextUpdateIndexLocked() uint64 {
	if n := len(st.stack); n > 0 {
		return st.stack[n-1].MaxUpdateIndex() + 1
	}
	return 1
}

func (st *Stack) upToDate() (bool, error) {
	names, err := st.readNames()
	if err != nil {
		return false, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if len(names) != len(st.stack) {
		return false, nil
	}
	for i, r := range st.stack {
		if r.Name() != names[i] {
			return false, nil
		}
	}
	return true, nil
}

func (st *Stack) writeManifest(lock *reflock.Lock, names []string) error {
	content := strings.Join(names, "\n")
	if len(names) > 0 {
		content += "\n"
	}
	if err := os.WriteFile(lock.Path(), []byte(content), 0644); err != nil {
		return err
	}
	if err := os.Rename(lock.Path(), st.listPath); err != nil {
		return err
	}
	return syncDir(st.dir)
}

// Add appends one new table to the stack in one shot: write builds its
// contents, and the result becomes visible only once tables.list is
// atomically rewritten to include it. If another writer holds the
// manifest lock or has already advanced the stack, Add returns
// ErrLockConflict and reloads so the caller can retry. Callers that
// need the open/commit/abort phases separated (the transaction engine,
// which must expand symrefs and check old-oid preconditions between
// opening the addition and writing to it) should use NewAddition
// directly instead.
func (st *Stack) Add(write func(wr *Writer) error) error {
	a, err := st.NewAddition()
	if err != nil {
		if errors.Is(err, ErrLockConflict) {
			st.Reload()
		}
		return err
	}
	if err := write(a.Writer()); err != nil {
		a.Abort()
		return fmt.Errorf("reftable: writer callback: %w", err)
	}
	if err := a.Commit(); err != nil {
		if errors.Is(err, ErrLockConflict) {
			st.Reload()
		}
		return err
	}
	return st.AutoCompact()
}

func (st *Stack) tableSizesForCompaction(tabs []*Reader) []uint64 {
	sizes := make([]uint64, len(tabs))
	for i, t := range tabs {
		sz := t.Size() - tableOverheadBytes
		if sz < 1 {
			sz = 1
		}
		sizes[i] = uint64(sz)
	}
	return sizes
}

type segment struct {
	start, end int // end exclusive
	log        int
	bytes      uint64
}

func (s segment) size() int { return s.end - s.start }

func log2(sz uint64) int {
	if sz == 0 {
		panic("reftable: log2(0)")
	}
	l := 0
	for sz > 0 {
		l++
		sz /= 2
	}
	return l - 1
}

func sizesToSegments(sizes []uint64) []segment {
	var cur segment
	var res []segment
	for i, sz := range sizes {
		l := log2(sz)
		if cur.log != l && cur.bytes > 0 {
			res = append(res, cur)
			cur = segment{start: i}
		}
		cur.log = l
		cur.end = i + 1
		cur.bytes += sz
	}
	res = append(res, cur)
	return res
}

// suggestCompactionSegment picks the smallest (by log2 magnitude) run
// of adjacent tables worth merging, then greedily grows it backwards
// while doing so keeps shrinking the exponent — the same geometric
// balancing heuristic a log-structured merge tree uses to keep the
// number of segments logarithmic in the number of writes.
func suggestCompactionSegment(sizes []uint64) *segment {
	if len(sizes) == 0 {
		return nil
	}
	segs := sizesToSegments(sizes)

	minSeg := segment{log: 64}
	for _, s := range segs {
		if s.size() == 1 {
			continue
		}
		if s.log < minSeg.log {
			minSeg = s
		}
	}
	if minSeg.size() == 0 {
		return nil
	}

	for minSeg.start > 0 {
		prev := minSeg.start - 1
		if log2(minSeg.bytes) < log2(sizes[prev]) {
			break
		}
		minSeg.start = prev
		minSeg.bytes += sizes[prev]
	}
	return &minSeg
}

// AutoCompact compacts a segment of the stack if its table sizes look
// imbalanced. It is called automatically after every successful Add.
func (st *Stack) AutoCompact() error {
	st.mu.Lock()
	tabs := append([]*Reader(nil), st.stack...)
	st.mu.Unlock()

	seg := suggestCompactionSegment(st.tableSizesForCompaction(tabs))
	if seg == nil {
		return nil
	}
	_, err := st.compactRangeStats(seg.start, seg.end-1)
	return err
}

// CompactAll merges every table in the stack into one. If a needed lock
// is held elsewhere or tables.list changed since the last reload, it
// returns nil without compacting.
func (st *Stack) CompactAll() error {
	st.mu.Lock()
	n := len(st.stack)
	st.mu.Unlock()
	if n == 0 {
		return nil
	}
	_, err := st.compactRange(0, n-1)
	return err
}

func (st *Stack) compactRangeStats(first, last int) (bool, error) {
	ok, err := st.compactRange(first, last)
	if !ok {
		st.Stats.Failures++
	}
	return ok, err
}

func (st *Stack) compactRange(first, last int) (bool, error) {
	if first >= last {
		return true, nil
	}
	st.Stats.Attempts++

	manifestLock := reflock.New(st.listPath + ".lock")
	if err := manifestLock.TryLock(); err != nil {
		if errors.Is(err, reflock.ErrLocked) {
			return false, nil
		}
		return false, err
	}
	manifestHeld := true
	defer func() {
		if manifestHeld {
			manifestLock.Unlock()
			os.Remove(manifestLock.Path())
		}
	}()

	if ok, err := st.upToDate(); err != nil || !ok {
		return false, err
	}

	st.mu.Lock()
	tabs := append([]*Reader(nil), st.stack...)
	st.mu.Unlock()

	var subLocks []*reflock.Lock
	defer func() {
		for _, l := range subLocks {
			l.Unlock()
			os.Remove(l.Path())
		}
	}()
	for i := first; i <= last; i++ {
		sl := reflock.New(filepath.Join(st.dir, tabs[i].Name()+".lock"))
		if err := sl.TryLock(); err != nil {
			if errors.Is(err, reflock.ErrLocked) {
				return false, nil
			}
			return false, err
		}
		subLocks = append(subLocks, sl)
	}

	// Release the manifest lock while we do the (possibly slow) merge
	// write: the per-table locks already keep a concurrent compaction
	// from touching the same inputs, and Add works against a disjoint
	// new table name so it can proceed concurrently.
	manifestLock.Unlock()
	os.Remove(manifestLock.Path())
	manifestHeld = false

	tmpPath, tn, err := st.compactLocked(tabs, first, last)
	if err != nil {
		return false, err
	}
	removeTmp := true
	defer func() {
		if removeTmp {
			os.Remove(tmpPath)
		}
	}()

	finalLock := reflock.New(st.listPath + ".lock")
	if err := finalLock.TryLock(); err != nil {
		if errors.Is(err, reflock.ErrLocked) {
			return false, nil
		}
		return false, err
	}
	defer func() {
		finalLock.Unlock()
		os.Remove(finalLock.Path())
	}()

	if ok, err := st.upToDate(); err != nil || !ok {
		return false, err
	}

	destName := tn.String()
	destPath := filepath.Join(st.dir, destName)
	if err := os.Rename(tmpPath, destPath); err != nil {
		return false, err
	}
	removeTmp = false
	syncDir(st.dir)

	var names []string
	for i := 0; i < first; i++ {
		names = append(names, tabs[i].Name())
	}
	names = append(names, destName)
	for i := last + 1; i < len(tabs); i++ {
		names = append(names, tabs[i].Name())
	}

	if err := st.writeManifest(finalLock, names); err != nil {
		os.Remove(destPath)
		return false, err
	}

	for i := first; i <= last; i++ {
		os.Remove(filepath.Join(st.dir, tabs[i].Name()))
	}
	if fi, err := os.Stat(destPath); err == nil {
		st.Stats.BytesWritten += uint64(fi.Size())
	}

	return true, st.Reload()
}

func (st *Stack) compactLocked(tabs []*Reader, first, last int) (string, tableName, error) {
	tn := tableName{
		Min:    tabs[first].MinUpdateIndex(),
		Max:    tabs[last].MaxUpdateIndex(),
		Suffix: newSuffix(),
	}
	tmpPath := filepath.Join(st.dir, ".tmp-compact-"+tn.Suffix)
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return "", tableName{}, err
	}
	defer f.Close()

	wr := NewWriter(f, st.algo, st.blockSize)
	if err := st.writeCompact(wr, tabs, first, last); err != nil {
		os.Remove(tmpPath)
		return "", tableName{}, err
	}
	if err := wr.Close(); err != nil {
		os.Remove(tmpPath)
		return "", tableName{}, err
	}
	if err := f.Sync(); err != nil {
		os.Remove(tmpPath)
		return "", tableName{}, err
	}
	return tmpPath, tn, nil
}

func (st *Stack) writeCompact(wr *Writer, tabs []*Reader, first, last int) error {
	wr.SetLimits(tabs[first].MinUpdateIndex(), tabs[last].MaxUpdateIndex())

	subtabs := tabs[first : last+1]
	merged, err := NewMerged(subtabs)
	if err != nil {
		return err
	}

	refCur := merged.SeekRef("")
	for {
		rec, ok := refCur.Next()
		if !ok {
			break
		}
		// Tombstones only need to survive while an older table they
		// shadow still exists; once a compaction reaches all the way
		// to the bottom of the stack there is nothing left to shadow.
		if first == 0 && rec.IsDeletion() {
			continue
		}
		if err := wr.AddRef(rec); err != nil {
			return err
		}
	}

	logCur := merged.SeekLog("")
	for {
		rec, ok := logCur.Next()
		if !ok {
			break
		}
		if first == 0 && rec.IsTombstone() {
			continue
		}
		if err := wr.AddLog(rec); err != nil {
			return err
		}
	}
	return nil
}

// Close releases every open reader. The stack must not be used
// afterwards.
func (st *Stack) Close() error {
	st.mu.Lock()
	defer st.mu.Unlock()
	for _, r := range st.stack {
		r.Close()
	}
	st.stack = nil
	st.merged = nil
	return nil
}
