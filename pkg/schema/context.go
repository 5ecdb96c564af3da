package schema

import (
	"sort"
	"strings"

	"github.com/jinzhu/inflection"
)

// BuildContext renders the catalog as the deterministic schema description
// given to the generator:
//
//	Database schema:
//	- albums(album_id, artist_id, title)
//
//	Foreign keys:
//	- albums.artist_id -> artists.artist_id
func BuildContext(c *Catalog) string {
	var b strings.Builder
	b.WriteString("Database schema:")

	for _, name := range c.TableNames() {
		t := c.tables[name]
		cols := make([]string, 0, len(t.Columns))
		for col := range t.Columns {
			cols = append(cols, col)
		}
		sort.Strings(cols)

		b.WriteString("\n- ")
		b.WriteString(name)
		b.WriteString("(")
		b.WriteString(strings.Join(cols, ", "))
		b.WriteString(")")
	}

	fks := c.AllForeignKeys()
	if len(fks) > 0 {
		b.WriteString("\n\nForeign keys:")
		for _, fk := range fks {
			b.WriteString("\n- ")
			b.WriteString(fk.String())
		}
	}

	return b.String()
}

// Entities returns the words a user might use to mention schema content:
// table names, their singular forms, and columns that are not identifiers.
func Entities(c *Catalog) []string {
	set := make(map[string]struct{})
	for name, t := range c.tables {
		set[name] = struct{}{}
		set[inflection.Singular(name)] = struct{}{}
		for _, word := range strings.Split(name, "_") {
			if word != "" {
				set[inflection.Singular(word)] = struct{}{}
			}
		}
		for col := range t.Columns {
			if strings.HasSuffix(col, "id") {
				continue
			}
			set[col] = struct{}{}
		}
	}

	out := make([]string, 0, len(set))
	for e := range set {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}
