// Package wal implements the write-ahead log described in spec.md §4.D: an
// append-only sequence of length-framed, CRC-protected records that the
// command gateway appends to before acknowledging a mutation, and that
// internal/snapshot replays on recovery to reconstruct state newer than the
// last snapshot.
//
// No repository in the retrieval pack implements a durable log of this
// shape (the teacher's internal/storage.Store is an in-memory map with an
// explicit "no WAL" limitation called out in its own doc comment). The
// framing, fsync-policy, and segment-rotation mechanics here are therefore
// built directly against stdlib os/bufio/encoding/binary/hash/crc32 — see
// DESIGN.md for why no richer pack dependency could take their place — but
// the background flusher's ticker/context/WaitGroup lifecycle follows the
// same shape as internal/expire's sweeper, itself grounded on the teacher's
// internal/coordinator health monitor loop.
package wal

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/hivellm/synap/internal/config"
)

// Record is one logged operation: a monotonic sequence number, the mutating
// command's opcode, and its serialized arguments (spec.md §4.D).
type Record struct {
	Seq  uint64
	Op   string
	Args []string
}

const segmentPrefix = "wal-"
const segmentSuffix = ".log"

// segmentFileName formats the file holding records starting at firstSeq.
func segmentFileName(firstSeq uint64) string {
	return fmt.Sprintf("%s%020d%s", segmentPrefix, firstSeq, segmentSuffix)
}

// segmentStartSeq parses the first sequence number out of a segment file
// name, or (0, false) if name doesn't match the expected pattern.
func segmentStartSeq(name string) (uint64, bool) {
	if !strings.HasPrefix(name, segmentPrefix) || !strings.HasSuffix(name, segmentSuffix) {
		return 0, false
	}
	mid := strings.TrimSuffix(strings.TrimPrefix(name, segmentPrefix), segmentSuffix)
	seq, err := strconv.ParseUint(mid, 10, 64)
	if err != nil {
		return 0, false
	}
	return seq, true
}

// ListSegments returns the WAL segment file names under dir in ascending
// sequence order, used both by the writer (to resume after restart) and by
// internal/snapshot's recovery replay.
func ListSegments(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, ent := range entries {
		if ent.IsDir() {
			continue
		}
		if _, ok := segmentStartSeq(ent.Name()); ok {
			names = append(names, ent.Name())
		}
	}
	sort.Slice(names, func(i, j int) bool {
		si, _ := segmentStartSeq(names[i])
		sj, _ := segmentStartSeq(names[j])
		return si < sj
	})
	return names, nil
}

// pendingCommit is a completion handle for one Append call, closed (with an
// error, or nil) once the record is durable under the configured fsync
// policy. Group commit batches many pendingCommits behind a single fsync.
type pendingCommit struct {
	done chan error
}

// WAL is the append-only log for one Synap instance. A mutex guards the
// active segment file; Append is safe to call concurrently.
type WAL struct {
	dir       string
	fsyncMode config.FsyncMode
	interval  time.Duration
	maxBytes  int64
	log       zerolog.Logger

	mu          sync.Mutex
	file        *os.File
	writer      *bufio.Writer
	segStart    uint64 // first seq in the current segment
	segBytes    int64
	nextSeq     uint64
	pending     []*pendingCommit

	nextSeqNoop uint64 // sequence counter used only when the WAL is disabled

	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed int32
}

// Open creates or resumes a WAL rooted at cfg.Dir, positioning nextSeq just
// past whatever was last durably appended. If cfg.Enabled is false, Open
// still succeeds but every Append is a no-op (spec.md allows running without
// a WAL, trading durability for throughput).
func Open(cfg config.WALConfig, log zerolog.Logger) (*WAL, error) {
	w := &WAL{
		dir:       cfg.Dir,
		fsyncMode: cfg.FsyncMode,
		interval:  cfg.FsyncInterval(),
		maxBytes:  cfg.SegmentMaxBytes,
		log:       log.With().Str("component", "wal").Logger(),
	}
	if !cfg.Enabled {
		return w, nil
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("wal: mkdir %s: %w", cfg.Dir, err)
	}
	segs, err := ListSegments(cfg.Dir)
	if err != nil {
		return nil, err
	}
	if len(segs) == 0 {
		if err := w.openSegment(1); err != nil {
			return nil, err
		}
	} else {
		last := segs[len(segs)-1]
		lastSeq, err := maxSeqInSegment(filepath.Join(cfg.Dir, last))
		if err != nil {
			return nil, err
		}
		start, _ := segmentStartSeq(last)
		w.segStart = start
		w.nextSeq = lastSeq + 1
		f, err := os.OpenFile(filepath.Join(cfg.Dir, last), os.O_RDWR|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("wal: reopen %s: %w", last, err)
		}
		info, _ := f.Stat()
		w.file = f
		w.segBytes = info.Size()
		w.writer = bufio.NewWriter(f)
	}
	if w.nextSeq == 0 {
		w.nextSeq = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	if w.fsyncMode == config.FsyncPeriodic {
		w.wg.Add(1)
		go w.flushLoop(ctx)
	}
	return w, nil
}

// maxSeqInSegment scans a segment file and returns the highest sequence
// number recorded in it, truncating the file in place if its final record is
// torn (a partial write from a crash mid-append — spec.md §4.D durability
// invariant: a record not fully flushed was never acknowledged, so it is
// safe to discard).
func maxSeqInSegment(path string) (uint64, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var last uint64
	var offset int64
	for {
		rec, n, err := decodeRecord(r)
		if err != nil {
			if err := f.Truncate(offset); err != nil {
				return 0, err
			}
			break
		}
		offset += int64(n)
		last = rec.Seq
	}
	return last, nil
}

// openSegment starts a brand new segment file beginning at firstSeq.
func (w *WAL) openSegment(firstSeq uint64) error {
	path := filepath.Join(w.dir, segmentFileName(firstSeq))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("wal: create segment %s: %w", path, err)
	}
	w.file = f
	w.writer = bufio.NewWriter(f)
	w.segStart = firstSeq
	w.segBytes = 0
	w.nextSeq = firstSeq
	return nil
}

// encodeRecord serializes rec as:
//
//	[u32 totalLen][u64 seq][u16 opLen][op][u32 argc][argc * (u32 len, bytes)][u32 crc32]
//
// crc32 covers every byte between totalLen and itself. totalLen covers
// everything after itself, so a reader can detect a torn tail write by
// comparing the frame length against remaining bytes before even looking at
// the checksum.
func encodeRecord(rec Record) []byte {
	body := make([]byte, 0, 64)
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:8], rec.Seq)
	body = append(body, tmp[:8]...)

	binary.BigEndian.PutUint16(tmp[:2], uint16(len(rec.Op)))
	body = append(body, tmp[:2]...)
	body = append(body, rec.Op...)

	binary.BigEndian.PutUint32(tmp[:4], uint32(len(rec.Args)))
	body = append(body, tmp[:4]...)
	for _, a := range rec.Args {
		binary.BigEndian.PutUint32(tmp[:4], uint32(len(a)))
		body = append(body, tmp[:4]...)
		body = append(body, a...)
	}

	crc := crc32.ChecksumIEEE(body)
	binary.BigEndian.PutUint32(tmp[:4], crc)
	body = append(body, tmp[:4]...)

	out := make([]byte, 4+len(body))
	binary.BigEndian.PutUint32(out[:4], uint32(len(body)))
	copy(out[4:], body)
	return out
}

// decodeRecord reads one frame from r, returning the decoded record and the
// total number of bytes consumed (frame length prefix included). err is
// io.EOF (or an io error) on end of stream, and a generic error on a short
// read or CRC mismatch — both of which the caller treats as a torn tail.
func decodeRecord(r *bufio.Reader) (Record, int, error) {
	var lenBuf [4]byte
	if _, err := readFull(r, lenBuf[:]); err != nil {
		return Record{}, 0, err
	}
	bodyLen := binary.BigEndian.Uint32(lenBuf[:])
	body := make([]byte, bodyLen)
	if _, err := readFull(r, body); err != nil {
		return Record{}, 0, fmt.Errorf("wal: short record body: %w", err)
	}
	if len(body) < 8+2+4+4 {
		return Record{}, 0, fmt.Errorf("wal: record body too short")
	}
	wantCRC := binary.BigEndian.Uint32(body[len(body)-4:])
	gotCRC := crc32.ChecksumIEEE(body[:len(body)-4])
	if wantCRC != gotCRC {
		return Record{}, 0, fmt.Errorf("wal: crc mismatch")
	}

	off := 0
	seq := binary.BigEndian.Uint64(body[off : off+8])
	off += 8
	opLen := int(binary.BigEndian.Uint16(body[off : off+2]))
	off += 2
	op := string(body[off : off+opLen])
	off += opLen
	argc := int(binary.BigEndian.Uint32(body[off : off+4]))
	off += 4
	args := make([]string, 0, argc)
	for i := 0; i < argc; i++ {
		al := int(binary.BigEndian.Uint32(body[off : off+4]))
		off += 4
		args = append(args, string(body[off:off+al]))
		off += al
	}
	return Record{Seq: seq, Op: op, Args: args}, 4 + len(body), nil
}

// readFull is bufio.Reader-friendly io.ReadFull (stdlib's io.ReadFull works
// fine on a Reader, this wrapper exists purely to keep the import list
// short and the call sites above uncluttered).
func readFull(r *bufio.Reader, buf []byte) (int, error) {
	read := 0
	for read < len(buf) {
		n, err := r.Read(buf[read:])
		read += n
		if err != nil {
			return read, err
		}
	}
	return read, nil
}

// Append writes op+args as the next record and blocks until it is durable
// per the configured fsync policy (spec.md §4.D invariant: "if a record
// acknowledged success, it is durable under the configured policy"). It
// returns the assigned sequence number.
func (w *WAL) Append(op string, args []string) (uint64, error) {
	if atomic.LoadInt32(&w.closed) == 1 {
		return 0, fmt.Errorf("wal: closed")
	}
	if w.file == nil {
		// WAL disabled: sequence numbers still advance so callers (and
		// replication) have a consistent seq space to reason about.
		return atomic.AddUint64(&w.nextSeqNoop, 1), nil
	}

	w.mu.Lock()
	seq := w.nextSeq
	w.nextSeq++
	rec := Record{Seq: seq, Op: op, Args: args}
	frame := encodeRecord(rec)

	if w.maxBytes > 0 && w.segBytes > 0 && w.segBytes+int64(len(frame)) > w.maxBytes {
		if err := w.rotateLocked(); err != nil {
			w.mu.Unlock()
			return 0, err
		}
	}

	if _, err := w.writer.Write(frame); err != nil {
		w.mu.Unlock()
		return 0, fmt.Errorf("wal: write: %w", err)
	}
	w.segBytes += int64(len(frame))

	switch w.fsyncMode {
	case config.FsyncNever:
		w.mu.Unlock()
		return seq, nil
	case config.FsyncAlways:
		err := w.flushAndSyncLocked()
		w.mu.Unlock()
		return seq, err
	default: // FsyncPeriodic: wait for the next tick's group commit.
		pc := &pendingCommit{done: make(chan error, 1)}
		w.pending = append(w.pending, pc)
		w.mu.Unlock()
		return seq, <-pc.done
	}
}

// rotateLocked closes the current segment and opens the next one, starting
// at the sequence number about to be written. Caller must hold w.mu.
func (w *WAL) rotateLocked() error {
	if err := w.flushAndSyncLocked(); err != nil {
		return err
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("wal: close segment: %w", err)
	}
	return w.openSegment(w.nextSeq)
}

// flushAndSyncLocked drains the buffered writer to the OS and fsyncs it.
// Caller must hold w.mu.
func (w *WAL) flushAndSyncLocked() error {
	if err := w.writer.Flush(); err != nil {
		return fmt.Errorf("wal: flush: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("wal: fsync: %w", err)
	}
	return nil
}

// flushLoop is the group-commit flusher for FsyncPeriodic mode: on every
// tick it syncs once and releases every Append call that queued behind it,
// turning N concurrent appenders into a single fsync syscall.
func (w *WAL) flushLoop(ctx context.Context) {
	defer w.wg.Done()
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.drainPending(w.commitNow())
			return
		case <-ticker.C:
			w.drainPending(w.commitNow())
		}
	}
}

// commitNow flushes and syncs the active segment, returning the error (if
// any) to report to every Append call waiting on this round.
func (w *WAL) commitNow() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	return w.flushAndSyncLocked()
}

func (w *WAL) drainPending(err error) {
	w.mu.Lock()
	batch := w.pending
	w.pending = nil
	w.mu.Unlock()
	for _, pc := range batch {
		pc.done <- err
	}
}

// Close flushes, fsyncs, stops the background flusher, and closes the
// active segment file. Safe to call once.
func (w *WAL) Close() error {
	if !atomic.CompareAndSwapInt32(&w.closed, 0, 1) {
		return nil
	}
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	if w.file == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.flushAndSyncLocked(); err != nil {
		return err
	}
	return w.file.Close()
}

// LastSeq returns the sequence number of the most recent Append (0 if the
// WAL has accepted no records yet), for callers that need a snapshot's
// base_seq without waiting on another Append.
func (w *WAL) LastSeq() uint64 {
	if w.file == nil {
		return atomic.LoadUint64(&w.nextSeqNoop)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.nextSeq == 0 {
		return 0
	}
	return w.nextSeq - 1
}

// Replay walks every segment under dir in order, invoking fn for each
// record whose Seq is > fromSeq (internal/snapshot calls this with the base
// sequence of the newest snapshot). A torn final record in the last segment
// is treated as the end of the stream rather than an error, matching
// maxSeqInSegment's truncation-on-open behavior.
func Replay(dir string, fromSeq uint64, fn func(Record) error) error {
	segs, err := ListSegments(dir)
	if err != nil {
		return err
	}
	for _, name := range segs {
		if err := replaySegment(filepath.Join(dir, name), fromSeq, fn); err != nil {
			return err
		}
	}
	return nil
}

func replaySegment(path string, fromSeq uint64, fn func(Record) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	r := bufio.NewReader(f)
	for {
		rec, _, err := decodeRecord(r)
		if err != nil {
			return nil // EOF or a torn tail record: stop, don't error.
		}
		if rec.Seq <= fromSeq {
			continue
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
}
