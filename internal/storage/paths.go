package storage

import (
	"strings"

	"golang.org/x/exp/slices"
)

const PathSeparator = "/"

// Join joins path elements with the separator, ignoring empty elements and stray separators.
func Join(elems ...string) string {
	parts := make([]string, 0, len(elems))
	for _, elem := range elems {
		if clean := CleanPath(elem); clean != "" {
			parts = append(parts, clean)
		}
	}
	return strings.Join(parts, PathSeparator)
}

// CleanPath strips leading, trailing and repeated separators. The root is the empty string.
func CleanPath(path string) string {
	segments := strings.Split(path, PathSeparator)
	kept := segments[:0]
	for _, segment := range segments {
		if segment != "" {
			kept = append(kept, segment)
		}
	}
	return strings.Join(kept, PathSeparator)
}

// childPrefix returns the prefix shared by every descendant of path.
func childPrefix(path string) string {
	if path == "" {
		return ""
	}
	return path + PathSeparator
}

// isAtOrBelow returns true if key is path itself or one of its descendants.
func isAtOrBelow(key, path string) bool {
	return path == "" || key == path || strings.HasPrefix(key, childPrefix(path))
}

// childNames returns the sorted, de-duplicated immediate child names of path, given every leaf key at or below it.
func childNames(path string, keys []string) []string {
	prefix := childPrefix(path)
	names := make([]string, 0)
	seen := make(map[string]bool)
	for _, key := range keys {
		if !strings.HasPrefix(key, prefix) || key == path {
			continue
		}
		rest := strings.TrimPrefix(key, prefix)
		name := strings.SplitN(rest, PathSeparator, 2)[0]
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

// GetAllKeys returns every path holding a value, in sorted order.
func GetAllKeys(persister Persister) ([]string, error) {
	keys := make([]string, 0)
	if err := collectKeys(persister, "", &keys); err != nil {
		return nil, err
	}
	slices.Sort(keys)
	return keys, nil
}

func collectKeys(persister Persister, path string, keys *[]string) error {
	if path != "" {
		if _, err := persister.Get(path); err == nil {
			*keys = append(*keys, path)
		} else if !IsNotFound(err) {
			return err
		}
	}
	children, err := persister.GetChildren(path)
	if err != nil {
		if IsNotFound(err) {
			return nil
		}
		return err
	}
	for _, child := range children {
		if err := collectKeys(persister, Join(path, child), keys); err != nil {
			return err
		}
	}
	return nil
}

// ClearAllData removes everything from persister, including data written by other namespaces.
func ClearAllData(persister Persister) error {
	return persister.RecursiveDelete("")
}
