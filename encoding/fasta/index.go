package fasta

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// faiEntry is one line of a faidx index: sequence length, byte offset of the
// first base, bases per line, and bytes per line including the separator.
type faiEntry struct {
	length    uint64
	offset    uint64
	lineBases uint64
	lineWidth uint64
}

// parseIndex reads a faidx index ("name\tlength\toffset\tlinebases\tlinewidth"
// per sequence) and returns the entries plus the names in offset order, which
// matches file order.
func parseIndex(r io.Reader) (map[string]faiEntry, []string, error) {
	entries := make(map[string]faiEntry)
	var names []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 5 {
			return nil, nil, errors.Errorf("fasta: malformed index line: %q", line)
		}
		var (
			ent  faiEntry
			err  error
			errs [4]error
		)
		ent.length, errs[0] = strconv.ParseUint(fields[1], 10, 64)
		ent.offset, errs[1] = strconv.ParseUint(fields[2], 10, 64)
		ent.lineBases, errs[2] = strconv.ParseUint(fields[3], 10, 64)
		ent.lineWidth, errs[3] = strconv.ParseUint(fields[4], 10, 64)
		for _, err = range errs {
			if err != nil {
				return nil, nil, errors.Wrapf(err, "fasta: malformed index line: %q", line)
			}
		}
		if ent.lineBases == 0 || ent.lineWidth < ent.lineBases {
			return nil, nil, errors.Errorf("fasta: inconsistent line geometry in index line: %q", line)
		}
		if _, ok := entries[fields[0]]; ok {
			return nil, nil, errors.Errorf("fasta: duplicate sequence in index: %s", fields[0])
		}
		entries[fields[0]] = ent
		names = append(names, fields[0])
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, errors.Wrap(err, "fasta: read index")
	}
	return entries, names, nil
}

// ReferenceLengths parses a faidx index and returns each sequence's length.
// The FASTA data itself is not needed.
func ReferenceLengths(index io.Reader) (map[string]uint64, error) {
	entries, _, err := parseIndex(index)
	if err != nil {
		return nil, err
	}
	lengths := make(map[string]uint64, len(entries))
	for name, ent := range entries {
		lengths[name] = ent.length
	}
	return lengths, nil
}
