package transfer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path"
	"strings"
	"time"
)

// StagedFile is a local copy of one source object.
type StagedFile struct {
	Key          string
	Path         string
	Size         int64
	LastModified time.Time
}

// Manifest lists the files one Fetch produced, in listing order. It is handed
// to exactly one Load and then released.
type Manifest struct {
	RunID  string
	Bucket string
	// Dir is the run-scoped staging directory; empty when nothing was fetched.
	Dir   string
	Files []StagedFile
}

func (m Manifest) Len() int { return len(m.Files) }

// Release deletes the run's local staging directory.
func (m Manifest) Release() error {
	if m.Dir == "" {
		return nil
	}
	if err := os.RemoveAll(m.Dir); err != nil {
		return fmt.Errorf("remove staging dir: %w", err)
	}
	return nil
}

// StagingLocation is the warehouse-side location reserved for one run.
func StagingLocation(runID string) string {
	return "run/" + runID
}

// localName derives a flat file name from the full object key. The digest
// keeps keys that share a base name apart; the base name is kept for humans.
func localName(key string) string {
	sum := sha256.Sum256([]byte(key))
	base := path.Base(strings.TrimRight(key, "/"))
	base = strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\' || r == 0:
			return '_'
		case r < 0x20:
			return -1
		}
		return r
	}, base)
	if base == "." || base == ".." || base == "" {
		base = "object"
	}
	if len(base) > 128 {
		base = base[len(base)-128:]
	}
	return hex.EncodeToString(sum[:8]) + "_" + base
}
