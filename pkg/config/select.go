package config

import (
	"errors"
	"strings"
)

// ErrBlockNotFound is returned by callers that need an error value for a
// path that does not resolve. Select itself reports misses with a bool.
var ErrBlockNotFound = errors.New("block not found")

// DefaultSeparator joins path segments in dotted form.
const DefaultSeparator = "."

// Select returns the child keys of the block named by path.
// The bool is false if any path segment is missing or path is empty.
func Select(t *ConfigTree, path []string) ([]string, bool) {
	n := t.Lookup(path)
	if n == nil {
		return nil, false
	}
	return n.Keys(), true
}

// SelectDotted is Select for a separator-joined path. Keys may themselves
// contain the separator ("neighbor 10.0.0.1"): at each level the longest
// run of segments that names an existing child wins, falling back to
// shorter runs if the rest of the path does not resolve.
func SelectDotted(t *ConfigTree, dotted, sep string) ([]string, bool) {
	path, ok := ResolvePath(t, dotted, sep)
	if !ok {
		return nil, false
	}
	return Select(t, path)
}

// ResolvePath splits dotted into the key path it names in t.
func ResolvePath(t *ConfigTree, dotted, sep string) ([]string, bool) {
	if t == nil || dotted == "" {
		return nil, false
	}
	if sep == "" {
		sep = DefaultSeparator
	}
	parts := strings.Split(dotted, sep)
	return resolve(t.Child, parts, sep)
}

func resolve(child func(string) *Node, parts []string, sep string) ([]string, bool) {
	for j := len(parts); j > 0; j-- {
		key := strings.Join(parts[:j], sep)
		n := child(key)
		if n == nil {
			continue
		}
		if j == len(parts) {
			return []string{key}, true
		}
		if rest, ok := resolve(n.Child, parts[j:], sep); ok {
			return append([]string{key}, rest...), true
		}
	}
	return nil, false
}

// SplitPath splits a dotted path without consulting a tree.
func SplitPath(dotted, sep string) []string {
	if dotted == "" {
		return nil
	}
	if sep == "" {
		sep = DefaultSeparator
	}
	return strings.Split(dotted, sep)
}

// ConfigBlock parses text and returns the child keys of the block named by
// the dotted path.
func ConfigBlock(text, dotted string, indent int) ([]string, bool) {
	return SelectDotted(ParseText(text, indent).Tree, dotted, DefaultSeparator)
}
