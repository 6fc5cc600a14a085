// Package thread holds the reply tree of a rant.
//
// Replies live in a flat arena keyed by node id; parents reference children
// by id so lookups and appends never recurse. Roots and child lists are kept
// newest first.
package thread

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ventwave/ventboard/vent/author"
)

const (
	MaxTopLevel = 200
	MaxChildren = 50
	MaxTextLen  = 500
)

var ErrNodeNotFound = errors.New("Parent reply not found")

// Node is one reply.
type Node struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	author.Author
	Children  []string  `json:"children"`
	CreatedAt time.Time `json:"createdAt"`
}

// Tree is the reply arena of a single rant.
type Tree struct {
	Roots []string         `json:"roots"`
	Nodes map[string]*Node `json:"nodes"`
}

// New returns an empty tree.
func New() Tree {
	return Tree{Roots: []string{}, Nodes: map[string]*Node{}}
}

// NewNode builds a reply node with a fresh id.
func NewNode(text string, a author.Author, now time.Time) *Node {
	return &Node{
		ID:        uuid.NewString(),
		Text:      text,
		Author:    a,
		Children:  []string{},
		CreatedAt: now,
	}
}

func (t *Tree) init() {
	if t.Nodes == nil {
		t.Nodes = map[string]*Node{}
	}
	if t.Roots == nil {
		t.Roots = []string{}
	}
}

// Len is the number of stored replies at any depth.
func (t *Tree) Len() int { return len(t.Nodes) }

// AppendTopLevel prepends n to the root list. When the list exceeds
// MaxTopLevel the oldest entries are dropped together with their subtrees.
func (t *Tree) AppendTopLevel(n *Node) {
	t.init()
	t.Nodes[n.ID] = n
	t.Roots = prepend(t.Roots, n.ID)
	if len(t.Roots) > MaxTopLevel {
		t.prune(t.Roots[MaxTopLevel:])
		t.Roots = t.Roots[:MaxTopLevel]
	}
}

// AppendChild prepends n to the children of parentID. Overflow beyond
// MaxChildren drops the oldest children and their subtrees.
func (t *Tree) AppendChild(parentID string, n *Node) error {
	t.init()
	parent, ok := t.Find(parentID)
	if !ok {
		return ErrNodeNotFound
	}
	t.Nodes[n.ID] = n
	parent.Children = prepend(parent.Children, n.ID)
	if len(parent.Children) > MaxChildren {
		t.prune(parent.Children[MaxChildren:])
		parent.Children = parent.Children[:MaxChildren]
	}
	return nil
}

// Find locates a node reachable from the roots with an explicit-stack DFS.
// Nodes orphaned by a prune are never returned.
func (t *Tree) Find(id string) (*Node, bool) {
	if id == "" || t.Nodes == nil {
		return nil, false
	}
	stack := append([]string(nil), t.Roots...)
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n, ok := t.Nodes[cur]
		if !ok {
			continue
		}
		if cur == id {
			return n, true
		}
		stack = append(stack, n.Children...)
	}
	return nil, false
}

// prune deletes the given ids and everything below them.
func (t *Tree) prune(ids []string) {
	stack := append([]string(nil), ids...)
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n, ok := t.Nodes[cur]
		if !ok {
			continue
		}
		delete(t.Nodes, cur)
		stack = append(stack, n.Children...)
	}
}

func prepend(ids []string, id string) []string {
	out := make([]string, 0, len(ids)+1)
	out = append(out, id)
	return append(out, ids...)
}
