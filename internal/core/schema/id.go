package schema

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/minio/highwayhash"
)

// identityKey is fixed so ids reproduce across processes and hosts; facts
// hashed today must collide with themselves on every future scan
var identityKey = []byte("datalens.fact.identity.hash.v001")

// FactID is the stable 64-bit identity of a fact. It renders as zero-padded
// hex so ids survive JSON consumers that truncate large integers
type FactID uint64

// Identity hashes the fact identity key (repository, filePath, symbolName,
// kind). Components are NUL-separated so no two tuples share one digest input
func Identity(repository, filePath, symbolName string, kind FactKind) FactID {
	buf := make([]byte, 0, len(repository)+len(filePath)+len(symbolName)+len(kind)+4)
	for _, part := range []string{repository, filePath, symbolName, string(kind)} {
		buf = append(buf, part...)
		buf = append(buf, 0)
	}
	return FactID(highwayhash.Sum64(buf, identityKey))
}

// ContentHash hashes raw file content for parse-cache keys and idempotent
// re-scan checks
func ContentHash(b []byte) uint64 {
	return highwayhash.Sum64(b, identityKey)
}

func (id FactID) String() string { return fmt.Sprintf("%016x", uint64(id)) }

// Int64 reinterprets the id for storage in a signed BIGINT column
func (id FactID) Int64() int64 { return int64(uint64(id)) }

// IDFromInt64 is the inverse of Int64
func IDFromInt64(v int64) FactID { return FactID(uint64(v)) }

// ParseFactID reads the hex form produced by String
func ParseFactID(s string) (FactID, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 16, 64)
	if err != nil {
		return 0, fmt.Errorf("schema: bad fact id %q: %w", s, err)
	}
	return FactID(v), nil
}

func (id FactID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + id.String() + `"`), nil
}

func (id *FactID) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*id = 0
		return nil
	}
	v, err := ParseFactID(s)
	if err != nil {
		return err
	}
	*id = v
	return nil
}
