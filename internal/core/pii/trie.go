package pii

// A fixed 256-way Aho-Corasick trie over folded field-name bytes. The term
// corpus is small and static per pack, so build cost is irrelevant and the
// flat transition table keeps scans allocation free

type trieNode struct {
	// next[b] = state or -1 if absent
	next [256]int
	fail int
	out  []int // term ids ending at this node
}

type trie struct {
	nodes []trieNode
}

func newTrie() *trie {
	t := &trie{nodes: make([]trieNode, 1)}
	for i := range t.nodes[0].next {
		t.nodes[0].next[i] = -1
	}
	return t
}

// add inserts a term keyed by an integer id
func (t *trie) add(term string, id int) {
	if term == "" {
		return
	}
	state := 0
	for i := 0; i < len(term); i++ {
		b := term[i]
		nxt := t.nodes[state].next[b]
		if nxt == -1 {
			nxt = len(t.nodes)
			t.nodes[state].next[b] = nxt
			var n trieNode
			for j := range n.next {
				n.next[j] = -1
			}
			t.nodes = append(t.nodes, n)
		}
		state = nxt
	}
	t.nodes[state].out = append(t.nodes[state].out, id)
}

// compile wires failure links breadth first; call once after the last add
func (t *trie) compile() {
	q := make([]int, 0, len(t.nodes))
	for b := 0; b < 256; b++ {
		if s := t.nodes[0].next[b]; s != -1 {
			q = append(q, s)
		}
	}

	for qi := 0; qi < len(q); qi++ {
		r := q[qi]
		for b := 0; b < 256; b++ {
			s := t.nodes[r].next[b]
			if s == -1 {
				continue
			}
			q = append(q, s)

			f := t.nodes[r].fail
			for f != 0 && t.nodes[f].next[b] == -1 {
				f = t.nodes[f].fail
			}
			if nxt := t.nodes[f].next[b]; nxt != -1 {
				t.nodes[s].fail = nxt
			}
			t.nodes[s].out = append(t.nodes[s].out, t.nodes[t.nodes[s].fail].out...)
		}
	}
}

// scan calls fn(end, id) for every term occurrence; end is the byte offset
// one past the match. Return false from fn to stop early
func (t *trie) scan(text string, fn func(end, id int) bool) {
	state := 0
	for i := 0; i < len(text); i++ {
		b := text[i]
		for state != 0 && t.nodes[state].next[b] == -1 {
			state = t.nodes[state].fail
		}
		if nxt := t.nodes[state].next[b]; nxt != -1 {
			state = nxt
		}
		for _, id := range t.nodes[state].out {
			if !fn(i+1, id) {
				return
			}
		}
	}
}
