// Package lang loads the flat key=value translation files the desktop client
// ships ("en-us.lang" etc). Lookup falls back to the key itself so a missing
// translation degrades to something readable instead of an empty label.
package lang

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

type Table struct {
	translate map[string]string
}

// Load reads dir/name.lang. A missing file yields an empty table, which makes
// every lookup fall back to its key.
func Load(dir, name string) *Table {
	t := &Table{translate: map[string]string{}}

	f, err := os.Open(filepath.Join(dir, name+".lang"))
	if err != nil {
		return t
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if i := strings.Index(line, "#"); i >= 0 {
			line = line[:i]
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		t.translate[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return t
}

func (t *Table) Text(key string) string {
	if v, ok := t.translate[key]; ok {
		return v
	}
	return key
}
