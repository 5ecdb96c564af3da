package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// computeFingerprint hashes the sorted "table(col,...)" entries followed by
// the sorted foreign key strings. Driver enumeration order has no effect.
func computeFingerprint(c *Catalog) string {
	entries := make([]string, 0, len(c.tables))
	for name, t := range c.tables {
		cols := make([]string, 0, len(t.Columns))
		for col := range t.Columns {
			cols = append(cols, col)
		}
		sort.Strings(cols)
		entries = append(entries, name+"("+strings.Join(cols, ",")+")")
	}
	sort.Strings(entries)

	fks := make([]string, 0, len(c.fkIndex))
	for fk := range c.fkIndex {
		fks = append(fks, fk.String())
	}
	sort.Strings(fks)

	h := sha256.New()
	for _, e := range entries {
		h.Write([]byte("T "))
		h.Write([]byte(e))
		h.Write([]byte{'\n'})
	}
	for _, fk := range fks {
		h.Write([]byte("F "))
		h.Write([]byte(fk))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}
