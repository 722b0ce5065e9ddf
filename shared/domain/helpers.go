package domain

import (
	"fmt"
	"strings"
	"time"
)

// for debug
func (t *Thread) String() string {
	parent := "nil"
	if t.ParentId != nil {
		parent = *t.ParentId
	}
	return fmt.Sprintf("[id:%s, author:%s, parent:%s, created:%s, children:[%s], text:%q]",
		t.Id, t.Author, parent, t.CreatedAt.Format(time.StampMilli), strings.Join(t.Children, ", "), t.Text)
}

// Depth returns how many levels below n (n included) have been expanded
func (n *ThreadNode) Depth() int {
	if n == nil {
		return 0
	}
	deepest := 0
	for _, r := range n.Replies {
		deepest = max(deepest, r.Depth())
	}
	return deepest + 1
}
