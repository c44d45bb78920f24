package entry

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

type Config struct {
	Dir         string
	SegmentSize int64
}

// WAL is the request journal: every mutating request is framed, checked,
// and appended before the engine executes it. Frames are
// [type:1][seq:8][time:8][len:4][payload][crc:4]; segments rotate by size.
type WAL struct {
	dir      string
	segSize  int64
	current  *segment
	segIndex int
	nextSeq  uint64
}

func Open(cfg Config) (*WAL, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}

	segIndex, lastSeq, err := scanDir(cfg.Dir)
	if err != nil {
		return nil, err
	}

	seg, err := openSegment(cfg.Dir, segIndex)
	if err != nil {
		return nil, err
	}

	return &WAL{
		dir:      cfg.Dir,
		segSize:  cfg.SegmentSize,
		current:  seg,
		segIndex: segIndex,
		nextSeq:  lastSeq,
	}, nil
}

// Append assigns the record its journal sequence and writes the frame.
func (w *WAL) Append(r *Record) error {
	w.nextSeq++
	r.Seq = w.nextSeq

	payloadLen := uint32(len(r.Data))
	buf := make([]byte, headerSize+payloadLen+4)

	buf[0] = byte(r.Type)
	binary.BigEndian.PutUint64(buf[1:9], r.Seq)
	binary.BigEndian.PutUint64(buf[9:17], uint64(r.Time))
	binary.BigEndian.PutUint32(buf[17:21], payloadLen)
	copy(buf[headerSize:], r.Data)

	crc := crcSum(buf[:headerSize+payloadLen])
	binary.BigEndian.PutUint32(buf[headerSize+payloadLen:], crc)

	if err := w.current.append(buf); err != nil {
		return err
	}

	if w.current.offset >= w.segSize {
		return w.rotate()
	}
	return nil
}

// LastSeq is the journal position of the most recent append.
func (w *WAL) LastSeq() uint64 { return w.nextSeq }

// Sync flushes the active segment to disk.
func (w *WAL) Sync() error { return w.current.sync() }

func (w *WAL) Close() error { return w.current.close() }

func (w *WAL) rotate() error {
	_ = w.current.close()
	w.segIndex++

	seg, err := openSegment(w.dir, w.segIndex)
	if err != nil {
		return err
	}
	w.current = seg
	return nil
}

// TruncateBefore removes closed segments whose records are all covered by
// a snapshot at journal position seq.
func (w *WAL) TruncateBefore(seq uint64) error {
	files, err := sortedSegments(w.dir)
	if err != nil {
		return err
	}

	for _, path := range files {
		if path == segmentPath(w.dir, w.segIndex) {
			continue // never drop the active segment
		}
		maxSeq, err := maxSeqInSegment(path)
		if err != nil {
			continue
		}
		if maxSeq <= seq {
			_ = os.Remove(path)
		}
	}
	return nil
}

// scanDir finds the highest segment index and the last journal sequence
// so an existing journal resumes where it left off.
func scanDir(dir string) (segIndex int, lastSeq uint64, err error) {
	files, err := sortedSegments(dir)
	if err != nil {
		return 0, 0, err
	}
	for _, path := range files {
		idx := segmentIndex(path)
		if idx > segIndex {
			segIndex = idx
		}
		maxSeq, err := maxSeqInSegment(path)
		if err != nil {
			continue
		}
		if maxSeq > lastSeq {
			lastSeq = maxSeq
		}
	}
	return segIndex, lastSeq, nil
}

func sortedSegments(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "segment-*.wal"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func segmentIndex(path string) int {
	base := filepath.Base(path)
	base = strings.TrimPrefix(base, "segment-")
	base = strings.TrimSuffix(base, ".wal")
	idx, _ := strconv.Atoi(base)
	return idx
}
