package config

import (
	"strings"
)

// Node is one command block in the configuration tree.
// Its children are kept in first-insertion order.
type Node struct {
	// Key is the trimmed text of the line that produced this node.
	Key string

	// Line where this node was (last) defined.
	Line int

	children children
}

// children is an insertion-ordered map of child nodes.
type children struct {
	order []string
	index map[string]*Node
}

// set inserts n, replacing any existing child with the same key.
// A replaced key keeps its original position.
func (c *children) set(n *Node) {
	if c.index == nil {
		c.index = make(map[string]*Node)
	}
	if _, ok := c.index[n.Key]; !ok {
		c.order = append(c.order, n.Key)
	}
	c.index[n.Key] = n
}

func (c *children) get(key string) *Node {
	return c.index[key]
}

func (c *children) keys() []string {
	return append(make([]string, 0, len(c.order)), c.order...)
}

func (c *children) nodes() []*Node {
	result := make([]*Node, len(c.order))
	for i, k := range c.order {
		result[i] = c.index[k]
	}
	return result
}

func (c *children) clone() children {
	out := children{order: append([]string(nil), c.order...)}
	if c.index != nil {
		out.index = make(map[string]*Node, len(c.index))
		for k, n := range c.index {
			out.index[k] = n.Clone()
		}
	}
	return out
}

// Child returns the child with the given key, or nil.
func (n *Node) Child(key string) *Node {
	return n.children.get(key)
}

// Keys returns the child keys in order. The result is never nil.
func (n *Node) Keys() []string {
	return n.children.keys()
}

// Children returns the child nodes in order.
func (n *Node) Children() []*Node {
	return n.children.nodes()
}

// Len returns the number of children.
func (n *Node) Len() int {
	return len(n.children.order)
}

// Clone creates a deep copy of the node.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	return &Node{Key: n.Key, Line: n.Line, children: n.children.clone()}
}

// ConfigTree is the root of a parsed configuration.
type ConfigTree struct {
	children children
}

// NewConfigTree returns an empty tree.
func NewConfigTree() *ConfigTree {
	return &ConfigTree{}
}

// Child returns the top-level node with the given key, or nil.
func (t *ConfigTree) Child(key string) *Node {
	return t.children.get(key)
}

// Keys returns the top-level keys in order.
func (t *ConfigTree) Keys() []string {
	return t.children.keys()
}

// Children returns the top-level nodes in order.
func (t *ConfigTree) Children() []*Node {
	return t.children.nodes()
}

// Len returns the number of top-level nodes.
func (t *ConfigTree) Len() int {
	return len(t.children.order)
}

// Lookup follows path from the root and returns the node it names,
// or nil if any segment is missing. An empty path returns nil.
func (t *ConfigTree) Lookup(path []string) *Node {
	if t == nil || len(path) == 0 {
		return nil
	}
	n := t.Child(path[0])
	for _, key := range path[1:] {
		if n == nil {
			return nil
		}
		n = n.Child(key)
	}
	return n
}

// Depth returns the number of levels in the tree (0 for an empty tree).
func (t *ConfigTree) Depth() int {
	depth := 0
	t.Walk(func(path []string, _ *Node) bool {
		if len(path) > depth {
			depth = len(path)
		}
		return true
	})
	return depth
}

// Walk visits every node depth-first in order. path includes the node's
// own key. Returning false from fn skips the node's children.
func (t *ConfigTree) Walk(fn func(path []string, n *Node) bool) {
	if t == nil {
		return
	}
	walkNodes(t.Children(), nil, fn)
}

func walkNodes(nodes []*Node, prefix []string, fn func([]string, *Node) bool) {
	for _, n := range nodes {
		path := append(append([]string(nil), prefix...), n.Key)
		if fn(path, n) {
			walkNodes(n.Children(), path, fn)
		}
	}
}

// Paths returns the path of every node joined with sep.
func (t *ConfigTree) Paths(sep string) []string {
	var out []string
	t.Walk(func(path []string, _ *Node) bool {
		out = append(out, strings.Join(path, sep))
		return true
	})
	return out
}

// Clone creates a deep copy of the config tree.
func (t *ConfigTree) Clone() *ConfigTree {
	if t == nil {
		return nil
	}
	return &ConfigTree{children: t.children.clone()}
}

// Format renders the tree as indented text, indent columns per level.
// Parsing the output with the same indent yields an equal tree.
func (t *ConfigTree) Format(indent int) string {
	if indent < 1 {
		indent = 1
	}
	var b strings.Builder
	formatNodes(&b, t.Children(), 0, indent)
	return b.String()
}

// Format renders the node and its descendants as indented text.
func (n *Node) Format(indent int) string {
	if indent < 1 {
		indent = 1
	}
	var b strings.Builder
	formatNodes(&b, []*Node{n}, 0, indent)
	return b.String()
}

func formatNodes(b *strings.Builder, nodes []*Node, depth, indent int) {
	prefix := strings.Repeat(" ", depth*indent)
	for _, n := range nodes {
		b.WriteString(prefix)
		b.WriteString(n.Key)
		b.WriteByte('\n')
		formatNodes(b, n.Children(), depth+1, indent)
	}
}

// insert places a new empty node under parent (nil = root).
func (t *ConfigTree) insert(parent *Node, key string, line int) *Node {
	n := &Node{Key: key, Line: line}
	if parent == nil {
		t.children.set(n)
	} else {
		parent.children.set(n)
	}
	return n
}
