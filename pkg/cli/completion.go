package cli

import (
	"sort"
	"strings"

	"github.com/psaab/cfgblock/pkg/cmdtree"
	"github.com/psaab/cfgblock/pkg/config"
	"github.com/psaab/cfgblock/pkg/filters"
)

// completionCandidate holds a completion and what to append after it
// when it is the only match.
type completionCandidate struct {
	name string
	desc string
	tail string
}

// complete returns the candidates for the text before the cursor and the
// partial word they replace.
func (c *CLI) complete(text string) ([]completionCandidate, string) {
	if cands, partial, handled := completePipeFilter(text); handled {
		return cands, partial
	}

	words := strings.Fields(text)
	trailingSpace := strings.HasSuffix(text, " ")
	var partial string
	if !trailingSpace && len(words) > 0 {
		partial = words[len(words)-1]
		words = words[:len(words)-1]
	}

	// show block|configuration <device> <path...>
	if len(words) >= 3 && words[0] == "show" && (words[1] == "block" || words[1] == "configuration") {
		return c.completePath(words[2], strings.TrimLeft(fieldsRest(text, 3), " \t"))
	}

	var cands []completionCandidate
	for _, cand := range cmdtree.CompleteFromTreeWithDesc(cmdtree.OperationalTree, words, partial, c.store) {
		cands = append(cands, completionCandidate{name: cand.Name, desc: cand.Desc, tail: " "})
	}
	return cands, partial
}

// blockContainer is satisfied by both the tree root and its nodes.
type blockContainer interface {
	Keys() []string
	Child(key string) *config.Node
}

// completePath completes the last segment of a dotted block path. Keys
// may contain the separator, so every split point is tried from the right
// until the prefix resolves and the remainder matches a child.
func (c *CLI) completePath(device, path string) ([]completionCandidate, string) {
	snap, err := c.store.Get(device)
	if err != nil {
		return nil, ""
	}
	sep := c.opts.Separator
	tree := snap.Result.Tree

	for idx := strings.LastIndex(path, sep); idx >= 0; idx = strings.LastIndex(path[:idx], sep) {
		resolved, ok := config.ResolvePath(tree, path[:idx], sep)
		if !ok {
			continue
		}
		partial := path[idx+len(sep):]
		if cands := childCandidates(tree.Lookup(resolved), partial, sep); len(cands) > 0 {
			return cands, partial
		}
	}
	return childCandidates(tree, path, sep), path
}

func childCandidates(parent blockContainer, partial, sep string) []completionCandidate {
	var cands []completionCandidate
	for _, k := range cmdtree.FilterPrefix(parent.Keys(), partial) {
		tail := ""
		if parent.Child(k).Len() > 0 {
			tail = sep
		}
		cands = append(cands, completionCandidate{name: k, tail: tail})
	}
	return cands
}

// completePipeFilter returns pipe filter candidates matching the partial
// text after the last "|". handled is false if the line has no pipe.
func completePipeFilter(text string) (cands []completionCandidate, partial string, handled bool) {
	idx := strings.LastIndex(text, "|")
	if idx < 0 {
		return nil, "", false
	}
	after := strings.TrimLeft(text[idx+1:], " ")
	if strings.Contains(after, " ") {
		// Filter name complete; the argument is freeform.
		return nil, "", true
	}
	for name, desc := range filters.PipeDescs {
		if strings.HasPrefix(name, after) {
			cands = append(cands, completionCandidate{name: name, desc: desc, tail: " "})
		}
	}
	return cands, after, true
}

// completer adapts CLI completion to readline.AutoCompleter.
type completer struct {
	cli *CLI
}

func (cp *completer) Do(line []rune, pos int) ([][]rune, int) {
	cands, partial := cp.cli.complete(string(line[:pos]))
	if len(cands) == 0 {
		return nil, 0
	}
	plen := len([]rune(partial))

	if len(cands) == 1 {
		suffix := []rune(cands[0].name)[plen:]
		return [][]rune{append(suffix, []rune(cands[0].tail)...)}, plen
	}

	names := make([]string, len(cands))
	help := make([]cmdtree.Candidate, len(cands))
	for i, cand := range cands {
		names[i] = cand.name
		help[i] = cmdtree.Candidate{Name: cand.name, Desc: cand.desc}
	}
	sort.Strings(names)
	if cp.cli.rl != nil {
		cmdtree.WriteHelp(cp.cli.rl.Stdout(), help)
	}

	cpfx := []rune(cmdtree.CommonPrefix(names))
	if len(cpfx) <= plen {
		return nil, 0
	}
	return [][]rune{cpfx[plen:]}, plen
}

// fieldsRest returns s with its first n fields removed. Whitespace after
// the removed fields is kept.
func fieldsRest(s string, n int) string {
	s = strings.TrimLeft(s, " \t")
	for i := 0; i < n; i++ {
		idx := strings.IndexAny(s, " \t")
		if idx < 0 {
			return ""
		}
		s = s[idx:]
		if i < n-1 {
			s = strings.TrimLeft(s, " \t")
		}
	}
	return s
}
