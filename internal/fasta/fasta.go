// Package fasta parses and checks FASTA payloads returned by the sequence viewer.
package fasta

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Payload errors.
var (
	ErrEmpty         = errors.New("fasta payload is empty")
	ErrNoHeader      = errors.New("fasta payload does not start with a '>' header")
	ErrEmptySequence = errors.New("fasta record has no sequence")
)

// maxLine bounds a single line; some viewers return whole genomes unwrapped.
const maxLine = 64 << 20

// Record is one parsed FASTA entry.
type Record struct {
	ID          string
	Description string
	Seq         []byte
}

// Parse reads every record from r. Sequence letters are upper-cased and
// line breaks removed. Blank lines are ignored.
func Parse(r io.Reader) ([]Record, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)

	var records []Record

	for sc.Scan() {
		line := bytes.TrimRight(sc.Bytes(), "\r")
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		if line[0] == '>' {
			records = append(records, headerRecord(string(line[1:])))

			continue
		}

		if len(records) == 0 {
			return nil, ErrNoHeader
		}

		cur := &records[len(records)-1]
		cur.Seq = append(cur.Seq, bytes.ToUpper(bytes.TrimSpace(line))...)
	}

	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read fasta: %w", err)
	}

	if len(records) == 0 {
		return nil, ErrEmpty
	}

	return records, nil
}

func headerRecord(header string) Record {
	header = strings.TrimSpace(header)

	id, desc, _ := strings.Cut(header, " ")

	return Record{ID: id, Description: strings.TrimSpace(desc)}
}

// Validate checks that payload is FASTA with at least one non-empty record.
func Validate(payload []byte) error {
	if len(bytes.TrimSpace(payload)) == 0 {
		return ErrEmpty
	}

	records, err := Parse(bytes.NewReader(payload))
	if err != nil {
		return err
	}

	for _, rec := range records {
		if len(rec.Seq) == 0 {
			return fmt.Errorf("%w: %s", ErrEmptySequence, rec.ID)
		}
	}

	return nil
}

// Length returns the total number of residues across records.
func Length(records []Record) int {
	n := 0
	for _, r := range records {
		n += len(r.Seq)
	}

	return n
}
