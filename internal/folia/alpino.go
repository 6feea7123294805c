package folia

import (
	"encoding/xml"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// alpinoDS is the per-sentence treebank document Alpino writes with
// end_hook=xml.
type alpinoDS struct {
	XMLName  xml.Name       `xml:"alpino_ds"`
	Version  string         `xml:"version,attr"`
	Node     *alpinoNode    `xml:"node"`
	Sentence alpinoSentence `xml:"sentence"`
}

type alpinoSentence struct {
	Text   string `xml:",chardata"`
	SentID string `xml:"sentid,attr"`
}

type alpinoNode struct {
	ID     string        `xml:"id,attr"`
	Begin  int           `xml:"begin,attr"`
	End    int           `xml:"end,attr"`
	Cat    string        `xml:"cat,attr"`
	Rel    string        `xml:"rel,attr"`
	Pos    string        `xml:"pos,attr"`
	Pt     string        `xml:"pt,attr"`
	Postag string        `xml:"postag,attr"`
	Lemma  string        `xml:"lemma,attr"`
	Root   string        `xml:"root,attr"`
	Word   string        `xml:"word,attr"`
	Index  string        `xml:"index,attr"`
	Nodes  []*alpinoNode `xml:"node"`
}

var errMissingTree = errors.New("alpino document has no parse tree")

// headRels lists the relations that mark the head daughter of a phrase, in
// order of preference.
var headRels = []string{"hd", "cmp", "crd", "rhd", "whd", "dlink", "nucl"}

func (n *alpinoNode) isLeaf() bool { return len(n.Nodes) == 0 }

// isEmpty reports whether n is a co-indexed trace without own content.
func (n *alpinoNode) isEmpty() bool { return n.isLeaf() && n.Word == "" }

// converter turns one parsed alpino_ds document into a FoLiA sentence.
type converter struct {
	sid     string
	words   []Word
	byBegin map[int]int
	indexed map[string]*alpinoNode
}

// convertAlpino parses data and builds the sentence with the given id.
func convertAlpino(data []byte, sid string) (Sentence, error) {
	var ds alpinoDS
	if err := xml.Unmarshal(data, &ds); err != nil {
		return Sentence{}, fmt.Errorf("parse alpino xml: %w", err)
	}
	if ds.Node == nil {
		return Sentence{}, errMissingTree
	}

	c := &converter{
		sid:     sid,
		byBegin: map[int]int{},
		indexed: map[string]*alpinoNode{},
	}
	c.collect(ds.Node)

	var leaves []*alpinoNode
	walk(ds.Node, func(n *alpinoNode) {
		if n.isLeaf() && !n.isEmpty() {
			leaves = append(leaves, n)
		}
	})
	if len(leaves) == 0 {
		return Sentence{}, fmt.Errorf("alpino document has no words")
	}
	sort.SliceStable(leaves, func(i, j int) bool { return leaves[i].Begin < leaves[j].Begin })

	for i, leaf := range leaves {
		if _, dup := c.byBegin[leaf.Begin]; dup {
			return Sentence{}, fmt.Errorf("two words at position %d", leaf.Begin)
		}
		c.byBegin[leaf.Begin] = i
		w := Word{
			ID:   sid + ".w." + strconv.Itoa(i+1),
			Text: leaf.Word,
		}
		if tag := firstNonEmpty(leaf.Postag, leaf.Pt, leaf.Pos); tag != "" {
			w.POS = &Class{Class: tag, Set: PosSet}
		}
		if lemma := firstNonEmpty(leaf.Lemma, leaf.Root); lemma != "" {
			w.Lemma = &Class{Class: lemma}
		}
		c.words = append(c.words, w)
	}

	s := Sentence{
		ID:    sid,
		Text:  strings.TrimSpace(ds.Sentence.Text),
		Words: c.words,
	}
	if s.Text == "" {
		parts := make([]string, len(c.words))
		for i, w := range c.words {
			parts[i] = w.Text
		}
		s.Text = strings.Join(parts, " ")
	}

	if su, ok := c.syntacticUnit(ds.Node); ok {
		s.Syntax = &Syntax{Set: SyntaxSet, Units: []SyntacticUnit{su}}
	}
	if deps := c.dependencies(ds.Node); len(deps) > 0 {
		s.Dependencies = &Dependencies{Set: DependencySet, Deps: deps}
	}
	return s, nil
}

// collect records the node carrying the content of every co-index.
func (c *converter) collect(root *alpinoNode) {
	walk(root, func(n *alpinoNode) {
		if n.Index != "" && !n.isEmpty() {
			c.indexed[n.Index] = n
		}
	})
}

// resolve follows a trace to the node it is co-indexed with.
func (c *converter) resolve(n *alpinoNode) *alpinoNode {
	if n.isEmpty() && n.Index != "" {
		if target, ok := c.indexed[n.Index]; ok {
			return target
		}
	}
	return n
}

func (c *converter) wref(begin int) (WRef, bool) {
	i, ok := c.byBegin[begin]
	if !ok {
		return WRef{}, false
	}
	return WRef{ID: c.words[i].ID, Text: c.words[i].Text}, true
}

func (c *converter) syntacticUnit(n *alpinoNode) (SyntacticUnit, bool) {
	if n.isEmpty() {
		return SyntacticUnit{}, false
	}
	su := SyntacticUnit{
		ID:    c.sid + ".su." + n.ID,
		Class: firstNonEmpty(n.Cat, n.Pt, n.Pos, n.Rel),
	}
	if n.isLeaf() {
		ref, ok := c.wref(n.Begin)
		if !ok {
			return SyntacticUnit{}, false
		}
		su.WRefs = []WRef{ref}
		return su, true
	}
	for _, child := range n.Nodes {
		if sub, ok := c.syntacticUnit(child); ok {
			su.Units = append(su.Units, sub)
		}
	}
	return su, len(su.Units) > 0
}

// headWord returns the begin position of the lexical head of n.
func (c *converter) headWord(n *alpinoNode, depth int) (int, bool) {
	if depth > 64 {
		return 0, false
	}
	n = c.resolve(n)
	if n.isLeaf() {
		if n.isEmpty() {
			return 0, false
		}
		return n.Begin, true
	}
	if hd := headDaughter(n); hd != nil {
		if b, ok := c.headWord(hd, depth+1); ok {
			return b, true
		}
	}
	for _, child := range n.Nodes {
		if b, ok := c.headWord(child, depth+1); ok {
			return b, true
		}
	}
	return 0, false
}

func (c *converter) dependencies(root *alpinoNode) []Dependency {
	var deps []Dependency
	walk(root, func(n *alpinoNode) {
		if n.isLeaf() {
			return
		}
		hd := headDaughter(n)
		if hd == nil {
			return
		}
		head, ok := c.headWord(hd, 0)
		if !ok {
			return
		}
		headRef, _ := c.wref(head)
		for _, child := range n.Nodes {
			if child == hd || child.Rel == "" || child.Rel == "--" {
				continue
			}
			dep, ok := c.headWord(child, 0)
			if !ok || dep == head {
				continue
			}
			depRef, _ := c.wref(dep)
			deps = append(deps, Dependency{
				ID:    c.sid + ".dependency." + strconv.Itoa(len(deps)+1),
				Class: child.Rel,
				Head:  DepPart{WRefs: []WRef{headRef}},
				Dep:   DepPart{WRefs: []WRef{depRef}},
			})
		}
	})
	return deps
}

func headDaughter(n *alpinoNode) *alpinoNode {
	for _, rel := range headRels {
		for _, child := range n.Nodes {
			if child.Rel == rel {
				return child
			}
		}
	}
	return nil
}

func walk(n *alpinoNode, fn func(*alpinoNode)) {
	if n == nil {
		return
	}
	fn(n)
	for _, child := range n.Nodes {
		walk(child, fn)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
