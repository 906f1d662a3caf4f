// Package fasta parses FASTA reference files, optionally using a
// faidx-style index for random access.  See
// http://www.htslib.org/doc/faidx.html.  A FASTA file holds named sequences
// whose bases may be wrapped across lines:
//
// >chr7
// ACGTAC
// GAGGAC
// GCG
// >chr8
// ACGT
//
// A sequence name is the run of non-space characters immediately after '>';
// anything after the first space is a free-form description and is ignored.
package fasta

import (
	"bufio"
	"bytes"
	"io"
	"sync"

	"github.com/pkg/errors"
)

// Fasta is read-only access to a set of named sequences.
type Fasta interface {
	// Get returns the bases of seqName over the 0-based half-open interval
	// [start, end).  Implementations are safe for concurrent use.
	Get(seqName string, start, end uint64) ([]byte, error)

	// Len returns the length of seqName.
	Len(seqName string) (uint64, error)

	// SeqNames returns all sequence names in file order.
	SeqNames() []string
}

type memFasta struct {
	seqs     map[string][]byte
	seqNames []string
}

// New reads all FASTA data from r into memory.
func New(r io.Reader) (Fasta, error) {
	f := &memFasta{seqs: make(map[string][]byte)}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(nil, 1024*1024*16)
	var name string
	var seq []byte
	flush := func() error {
		if len(seq) == 0 {
			return nil
		}
		if name == "" {
			return errors.New("fasta: sequence data before any '>' header")
		}
		f.seqs[name] = seq
		f.seqNames = append(f.seqNames, name)
		return nil
	}
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if line[0] == '>' {
			if err := flush(); err != nil {
				return nil, err
			}
			fields := bytes.Fields(line[1:])
			if len(fields) == 0 {
				return nil, errors.New("fasta: empty sequence name")
			}
			name = string(fields[0])
			seq = nil
			continue
		}
		seq = append(seq, line...)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "fasta: read")
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *memFasta) Get(seqName string, start, end uint64) ([]byte, error) {
	seq, ok := f.seqs[seqName]
	if !ok {
		return nil, errors.Errorf("fasta: sequence not found: %s", seqName)
	}
	if end <= start {
		return nil, errors.Errorf("fasta: empty range [%d, %d)", start, end)
	}
	if end > uint64(len(seq)) {
		return nil, errors.Errorf("fasta: range [%d, %d) outside sequence %s of length %d",
			start, end, seqName, len(seq))
	}
	out := make([]byte, end-start)
	copy(out, seq[start:end])
	return out, nil
}

func (f *memFasta) Len(seqName string) (uint64, error) {
	seq, ok := f.seqs[seqName]
	if !ok {
		return 0, errors.Errorf("fasta: sequence not found: %s", seqName)
	}
	return uint64(len(seq)), nil
}

func (f *memFasta) SeqNames() []string { return f.seqNames }

type indexedFasta struct {
	mu       sync.Mutex
	reader   io.ReadSeeker
	seqs     map[string]faiEntry
	seqNames []string
}

// NewIndexed returns a Fasta that serves Get by seeking in fasta, using the
// faidx data from index.  Nothing is read up front except the index itself.
func NewIndexed(fasta io.ReadSeeker, index io.Reader) (Fasta, error) {
	entries, names, err := parseIndex(index)
	if err != nil {
		return nil, err
	}
	return &indexedFasta{reader: fasta, seqs: entries, seqNames: names}, nil
}

func (f *indexedFasta) Get(seqName string, start, end uint64) ([]byte, error) {
	ent, ok := f.seqs[seqName]
	if !ok {
		return nil, errors.Errorf("fasta: sequence not in index: %s", seqName)
	}
	if end <= start {
		return nil, errors.Errorf("fasta: empty range [%d, %d)", start, end)
	}
	if end > ent.length {
		return nil, errors.Errorf("fasta: range [%d, %d) outside sequence %s of length %d",
			start, end, seqName, ent.length)
	}

	// Byte offset of base `start`, accounting for the newline bytes at the
	// end of each full line before it.
	sepWidth := ent.lineWidth - ent.lineBases
	offset := ent.offset + start + sepWidth*(start/ent.lineBases)
	// Bytes to read: requested bases plus every separator crossed.
	firstLineBases := ent.lineBases - start%ent.lineBases
	var seps uint64
	if end-start > firstLineBases {
		seps = 1 + (end-start-firstLineBases)/ent.lineBases
	}
	raw := make([]byte, end-start+seps*sepWidth)

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.reader.Seek(int64(offset), io.SeekStart); err != nil {
		return nil, errors.Wrapf(err, "fasta: seek %s@%d", seqName, offset)
	}
	if _, err := io.ReadFull(f.reader, raw); err != nil {
		return nil, errors.Wrapf(err, "fasta: read %s [%d, %d) (truncated file or stale index?)",
			seqName, start, end)
	}

	out := make([]byte, 0, end-start)
	linePos := (offset - ent.offset) % ent.lineWidth
	for _, b := range raw {
		if linePos < ent.lineBases {
			out = append(out, b)
		}
		linePos++
		if linePos == ent.lineWidth {
			linePos = 0
		}
	}
	return out, nil
}

func (f *indexedFasta) Len(seqName string) (uint64, error) {
	ent, ok := f.seqs[seqName]
	if !ok {
		return 0, errors.Errorf("fasta: sequence not in index: %s", seqName)
	}
	return ent.length, nil
}

func (f *indexedFasta) SeqNames() []string { return f.seqNames }
