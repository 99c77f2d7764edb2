// Package metadata reads and writes the signed comment header that prefixes
// plain-text state files.
//
// A signed file looks like:
//
//	# ncbi-fasta-extractor identifier set
//	# version: 1
//	# count: 2
//	# last_modified: 2024-05-01T10:00:00Z
//	# sha256: <hex digest of the body>
//	<body>
package metadata

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Title is the first header line of every signed file.
const Title = "# ncbi-fasta-extractor identifier set"

const headerPrefix = "#"

// Metadata verification errors.
var (
	ErrNoMetadataBlock = errors.New("no metadata block found")
	ErrNoHashFound     = errors.New("no hash found in metadata")
	ErrHashMismatch    = errors.New("hash mismatch")
	ErrBadCount        = errors.New("invalid count in metadata")
)

// Metadata is the parsed header.
type Metadata struct {
	LastModify time.Time
	Version    string
	Hash       string
	Count      int
}

// Extract splits content into its header and body. The header is every
// leading line starting with '#'. A nil Metadata means there was no header.
func Extract(content string) (*Metadata, string, error) {
	rest := content

	var header []string

	for strings.HasPrefix(rest, headerPrefix) {
		line, tail, found := strings.Cut(rest, "\n")
		header = append(header, line)

		if !found {
			rest = ""

			break
		}

		rest = tail
	}

	if len(header) == 0 {
		return nil, content, nil
	}

	meta := &Metadata{Count: -1}

	for _, line := range header {
		key, val, ok := strings.Cut(strings.TrimPrefix(line, headerPrefix), ":")
		if !ok {
			continue
		}

		key = strings.TrimSpace(key)
		val = strings.TrimSpace(val)

		switch key {
		case "version":
			meta.Version = val
		case "count":
			n, err := strconv.Atoi(val)
			if err != nil || n < 0 {
				return nil, rest, fmt.Errorf("%w: %q", ErrBadCount, val)
			}

			meta.Count = n
		case "last_modified":
			if t, err := time.Parse(time.RFC3339, val); err == nil {
				meta.LastModify = t
			}
		case "sha256":
			meta.Hash = val
		}
	}

	return meta, rest, nil
}

// CalculateHash computes the SHA-256 hash of a body.
func CalculateHash(body string) string {
	hash := sha256.Sum256([]byte(body))

	return hex.EncodeToString(hash[:])
}

// Sign prefixes body with a header describing it.
func Sign(body, version string, count int, now time.Time) string {
	var b strings.Builder

	b.WriteString(Title + "\n")
	fmt.Fprintf(&b, "# version: %s\n", version)
	fmt.Fprintf(&b, "# count: %d\n", count)
	fmt.Fprintf(&b, "# last_modified: %s\n", now.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "# sha256: %s\n", CalculateHash(body))
	b.WriteString(body)

	return b.String()
}

// Verify checks that the body matches the hash in its header and returns both.
func Verify(content string) (*Metadata, string, error) {
	meta, body, err := Extract(content)
	if err != nil {
		return nil, "", err
	}

	if meta == nil {
		return nil, "", ErrNoMetadataBlock
	}

	if meta.Hash == "" {
		return nil, "", ErrNoHashFound
	}

	calculated := CalculateHash(body)
	if calculated != meta.Hash {
		return nil, "", fmt.Errorf("%w: expected %s, got %s", ErrHashMismatch, meta.Hash, calculated)
	}

	return meta, body, nil
}
