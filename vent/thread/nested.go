package thread

import (
	"time"

	"github.com/ventwave/ventboard/vent/author"
)

// Reply is the nested JSON shape clients render.
type Reply struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	author.Author
	CreatedAt time.Time `json:"createdAt"`
	Replies   []Reply   `json:"replies"`
}

// Nested projects the arena into nested replies, newest first at every level.
// Children are materialised before their parents by walking a breadth-first
// order in reverse, so depth never grows the call stack.
func (t *Tree) Nested() []Reply {
	if len(t.Roots) == 0 {
		return []Reply{}
	}
	order := make([]string, 0, len(t.Nodes))
	queue := append([]string(nil), t.Roots...)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		n, ok := t.Nodes[cur]
		if !ok {
			continue
		}
		order = append(order, cur)
		queue = append(queue, n.Children...)
	}

	built := make(map[string]Reply, len(order))
	for i := len(order) - 1; i >= 0; i-- {
		n := t.Nodes[order[i]]
		r := Reply{
			ID:        n.ID,
			Text:      n.Text,
			Author:    n.Author,
			CreatedAt: n.CreatedAt,
			Replies:   make([]Reply, 0, len(n.Children)),
		}
		for _, c := range n.Children {
			if child, ok := built[c]; ok {
				r.Replies = append(r.Replies, child)
			}
		}
		built[n.ID] = r
	}

	out := make([]Reply, 0, len(t.Roots))
	for _, id := range t.Roots {
		if r, ok := built[id]; ok {
			out = append(out, r)
		}
	}
	return out
}
