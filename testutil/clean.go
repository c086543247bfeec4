package testutil

import (
	"os"
	"path/filepath"
)

// CleanDir empties dirname, creating it if needed, but leaves the entries named in keeps.
func CleanDir(dirname string, keeps []string) error {
	entries, err := os.ReadDir(dirname)
	if os.IsNotExist(err) {
		return os.MkdirAll(dirname, 0755)
	} else if err != nil {
		return err
	}

	m := map[string]struct{}{}
	for _, k := range keeps {
		m[k] = struct{}{}
	}

	for _, e := range entries {
		if _, found := m[e.Name()]; found {
			continue
		}
		err = os.RemoveAll(filepath.Join(dirname, e.Name()))
		if err != nil {
			return err
		}
	}
	return nil
}
