package reftable

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"

	"github.com/google/uuid"
)

// tableName is the structured form of a table's file name:
// 0x<min>-0x<max>-<suffix>.ref
type tableName struct {
	Min, Max uint64
	Suffix   string
}

func (n tableName) String() string {
	return fmt.Sprintf("0x%012x-0x%012x-%s.ref", n.Min, n.Max, n.Suffix)
}

var nameRE = regexp.MustCompile(`^0x([0-9a-fA-F]{12,16})-0x([0-9a-fA-F]{12,16})-([0-9a-zA-Z]{8})\.ref$`)

func parseTableName(s string) (tableName, error) {
	m := nameRE.FindStringSubmatch(s)
	if m == nil {
		return tableName{}, fmt.Errorf("reftable: malformed table name %q", s)
	}
	min, err := strconv.ParseUint(m[1], 16, 64)
	if err != nil {
		return tableName{}, fmt.Errorf("reftable: bad min index in %q: %w", s, err)
	}
	max, err := strconv.ParseUint(m[2], 16, 64)
	if err != nil {
		return tableName{}, fmt.Errorf("reftable: bad max index in %q: %w", s, err)
	}
	return tableName{Min: min, Max: max, Suffix: m[3]}, nil
}

// newSuffix returns an 8-character alphanumeric tag derived from a random
// UUID, giving table file names the same collision-resistance multiple
// concurrent writers need without relying on a process-local math/rand
// sequence.
func newSuffix() string {
	id, err := uuid.NewRandom()
	if err != nil {
		// crypto/rand failure is effectively unrecoverable on any real
		// system; fall back to reading crypto/rand directly rather
		// than panic.
		var b [4]byte
		_, _ = rand.Read(b[:])
		return hex.EncodeToString(b[:])
	}
	return hex.EncodeToString(id[:4])
}
