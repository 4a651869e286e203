// Package cmdtree defines the canonical command tree of the cfgblock shell.
//
// The local shell (pkg/cli) and its completer both derive from
// OperationalTree; add a command here and it appears in tab completion
// and ? help.
package cmdtree

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// DeviceLister returns the names of loaded devices.
type DeviceLister interface {
	Devices() []string
}

// Node defines a completion tree node with description, children, and
// optional dynamic values.
type Node struct {
	Desc      string
	Children  map[string]*Node
	DynamicFn func(src DeviceLister) []string
}

// Candidate holds a command name and its description for display.
type Candidate struct {
	Name string
	Desc string
}

func devices(src DeviceLister) []string {
	if src == nil {
		return nil
	}
	return src.Devices()
}

// OperationalTree defines the shell commands.
var OperationalTree = map[string]*Node{
	"load": {Desc: "Load a device configuration file (load <device> <file> [indent N])"},
	"show": {Desc: "Show information", Children: map[string]*Node{
		"devices":       {Desc: "Show loaded devices"},
		"block":         {Desc: "Show child commands of a block", DynamicFn: devices},
		"configuration": {Desc: "Show parsed configuration", DynamicFn: devices},
		"errors":        {Desc: "Show indentation anomalies", DynamicFn: devices},
		"history":       {Desc: "Show earlier snapshots", DynamicFn: devices},
		"paths":         {Desc: "Show every block path", DynamicFn: devices},
	}},
	"findall": {Desc: "Show all regex matches in a configuration", DynamicFn: devices},
	"search":  {Desc: "Show the first regex match in a configuration", DynamicFn: devices},
	"clear": {Desc: "Clear information", Children: map[string]*Node{
		"device": {Desc: "Forget a loaded device", DynamicFn: devices},
	}},
	"help": {Desc: "Show help"},
	"quit": {Desc: "Exit the shell"},
	"exit": {Desc: "Exit the shell"},
}

// KeysFromTree returns a sorted list of keys from a Node map.
func KeysFromTree(tree map[string]*Node) []string {
	keys := KeysOf(tree)
	sort.Strings(keys)
	return keys
}

// HelpCandidates returns Candidates from a tree's children for help display.
func HelpCandidates(tree map[string]*Node) []Candidate {
	candidates := make([]Candidate, 0, len(tree))
	for name, node := range tree {
		candidates = append(candidates, Candidate{Name: name, Desc: node.Desc})
	}
	return candidates
}

// Resolve walks words through tree. It returns the last static node
// reached, the number of words consumed by static nodes, and the number of
// dynamic values consumed after it. ok is false if a word matches nothing.
func Resolve(tree map[string]*Node, words []string) (node *Node, static, dynamic int, ok bool) {
	current := tree
	for i, w := range words {
		next, found := current[w]
		if !found {
			if node != nil && node.DynamicFn != nil {
				return node, i, len(words) - i, true
			}
			return nil, i, 0, false
		}
		node = next
		if node.Children == nil {
			return node, i + 1, len(words) - i - 1, true
		}
		current = node.Children
	}
	return node, len(words), 0, true
}

// CompleteFromTree walks the tree to find completion candidates for the
// given words and partial.
func CompleteFromTree(tree map[string]*Node, words []string, partial string, src DeviceLister) []string {
	cands := CompleteFromTreeWithDesc(tree, words, partial, src)
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.Name
	}
	return out
}

// CompleteFromTreeWithDesc walks the tree returning name+description pairs.
// Dynamic values are only offered for the first argument after a node.
func CompleteFromTreeWithDesc(tree map[string]*Node, words []string, partial string, src DeviceLister) []Candidate {
	node, static, dynamic, ok := Resolve(tree, words)
	if !ok {
		return nil
	}

	var candidates []Candidate
	if node == nil || (node.Children != nil && dynamic == 0 && static == len(words)) {
		current := tree
		if node != nil {
			current = node.Children
		}
		for name, n := range current {
			if strings.HasPrefix(name, partial) {
				candidates = append(candidates, Candidate{Name: name, Desc: n.Desc})
			}
		}
	}
	if node != nil && node.DynamicFn != nil && dynamic == 0 {
		for _, name := range node.DynamicFn(src) {
			if strings.HasPrefix(name, partial) {
				candidates = append(candidates, Candidate{Name: name, Desc: "(loaded)"})
			}
		}
	}
	return candidates
}

// LookupDesc finds the description for a candidate name given the
// command path words.
func LookupDesc(words []string, name string) string {
	current := OperationalTree
	for _, w := range words {
		node, ok := current[w]
		if !ok || node.Children == nil {
			return ""
		}
		current = node.Children
	}
	if node, ok := current[name]; ok {
		return node.Desc
	}
	return ""
}

// WriteHelp prints aligned completion candidates to w.
// The output is written in one call so that readline refreshes once.
func WriteHelp(w io.Writer, candidates []Candidate) {
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Name < candidates[j].Name })
	maxWidth := 20
	for _, c := range candidates {
		if len(c.Name)+2 > maxWidth {
			maxWidth = len(c.Name) + 2
		}
	}
	var sb strings.Builder
	sb.WriteString("Possible completions:\n")
	for _, c := range candidates {
		if c.Desc != "" {
			fmt.Fprintf(&sb, "  %-*s %s\n", maxWidth, c.Name, c.Desc)
		} else {
			fmt.Fprintf(&sb, "  %s\n", c.Name)
		}
	}
	io.WriteString(w, sb.String())
}

// WriteTreeHelp prints help for the subtree at path.
func WriteTreeHelp(w io.Writer, header string, tree map[string]*Node, path ...string) {
	fmt.Fprintln(w, header)
	current := tree
	for _, p := range path {
		node, ok := current[p]
		if !ok || node.Children == nil {
			return
		}
		current = node.Children
	}
	WriteHelp(w, HelpCandidates(current))
}

// CommonPrefix returns the longest shared prefix among the given strings.
func CommonPrefix(items []string) string {
	if len(items) == 0 {
		return ""
	}
	prefix := items[0]
	for _, s := range items[1:] {
		for !strings.HasPrefix(s, prefix) {
			prefix = prefix[:len(prefix)-1]
			if prefix == "" {
				return ""
			}
		}
	}
	return prefix
}

// KeysOf returns an unsorted list of keys from a Node map.
func KeysOf(m map[string]*Node) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

// FilterPrefix returns only items that start with the given prefix.
func FilterPrefix(items []string, prefix string) []string {
	if prefix == "" {
		return items
	}
	var result []string
	for _, item := range items {
		if strings.HasPrefix(item, prefix) {
			result = append(result, item)
		}
	}
	return result
}
