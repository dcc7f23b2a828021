// Cursor traverses a single bucket's B+tree, sorted by key. It holds a
// stack of (node, index) frames from root to leaf; moving to an
// adjacent key pops frames until an ancestor has room to advance, then
// re-descends the new subtree's near edge. A cursor issued through a Tx
// carries that Tx's live flag and returns ErrTxClosed on every move once
// the Tx is closed, rather than reading through a stale reference.
package boltkv

// cursorFrame is one level of the descent from bucket root to the
// currently positioned leaf entry.
type cursorFrame struct {
	page  NodePage
	index int
}

// Cursor iterates one bucket's key/value pairs in sorted order.
type Cursor struct {
	reader     *Reader
	root       NodePageId
	staticRoot *NodePage // set for inline buckets; bypasses reader entirely
	stack      []cursorFrame
	live       *int32 // non-nil when issued by a Tx; checked before every move
}

// NewCursor builds a cursor over the bucket rooted at root, using
// reader to fetch pages as the cursor descends.
func NewCursor(reader *Reader, root NodePageId) *Cursor {
	return &Cursor{reader: reader, root: root}
}

// newInlineCursor builds a cursor over an inline bucket's embedded leaf,
// requiring no I/O: the entire bucket already lives in the parent
// leaf's value bytes.
func newInlineCursor(leaf LeafPage) *Cursor {
	root := NodePage{bytes: leaf.bytes}
	return &Cursor{staticRoot: &root}
}

func (c *Cursor) fetchRoot() (NodePage, error) {
	if c.staticRoot != nil {
		return *c.staticRoot, nil
	}
	return c.reader.ReadNode(c.root)
}

func (c *Cursor) resetStack() {
	for _, f := range c.stack {
		f.page.Release()
	}
	c.stack = c.stack[:0]
}

// Close releases every page this cursor currently holds open. Callers
// that abandon a cursor before reaching the end of the bucket must call
// this to avoid leaking buffer-pool or cache references.
func (c *Cursor) Close() { c.resetStack() }

func (c *Cursor) keyValueAt(leaf LeafPage, idx int) ([]byte, []byte, error) {
	k, err := leaf.Key(idx)
	if err != nil {
		return nil, nil, err
	}
	v, err := leaf.Value(idx)
	if err != nil {
		return nil, nil, err
	}
	return k, v, nil
}

// First repositions the cursor at the bucket's lowest key.
func (c *Cursor) First() ([]byte, []byte, error) {
	if err := checkLive(c.live); err != nil {
		return nil, nil, err
	}
	c.resetStack()
	node, err := c.fetchRoot()
	if err != nil {
		return nil, nil, err
	}
	c.stack = append(c.stack, cursorFrame{page: node})
	return c.descendFirst()
}

func (c *Cursor) descendFirst() ([]byte, []byte, error) {
	for {
		idx := len(c.stack) - 1
		top := c.stack[idx]
		if top.page.IsLeaf() {
			leaf, _ := top.page.AsLeaf()
			if leaf.Count() == 0 {
				return nil, nil, nil
			}
			c.stack[idx].index = 0
			return c.keyValueAt(leaf, 0)
		}
		branch, _ := top.page.AsBranch()
		if branch.Count() == 0 {
			return nil, nil, nil
		}
		c.stack[idx].index = 0
		childID, err := branch.Child(0)
		if err != nil {
			return nil, nil, err
		}
		child, err := c.reader.ReadNode(childID)
		if err != nil {
			return nil, nil, err
		}
		c.stack = append(c.stack, cursorFrame{page: child})
	}
}

func (c *Cursor) descendFirstFrom(branch BranchPage, idx int) ([]byte, []byte, error) {
	childID, err := branch.Child(idx)
	if err != nil {
		return nil, nil, err
	}
	child, err := c.reader.ReadNode(childID)
	if err != nil {
		return nil, nil, err
	}
	c.stack = append(c.stack, cursorFrame{page: child})
	return c.descendFirst()
}

// Last repositions the cursor at the bucket's highest key.
//
// If the bucket's root is an empty leaf, this does not return nil
// directly: it falls through to retreat(), the same internal step Prev
// uses, rather than reseating to First. That asymmetry (Prev past the
// start reseats; Last on an empty bucket does not) is preserved exactly
// as this is grounded, not smoothed over.
func (c *Cursor) Last() ([]byte, []byte, error) {
	if err := checkLive(c.live); err != nil {
		return nil, nil, err
	}
	c.resetStack()
	node, err := c.fetchRoot()
	if err != nil {
		return nil, nil, err
	}
	c.stack = append(c.stack, cursorFrame{page: node})
	k, v, err := c.descendLast()
	if err != nil {
		return nil, nil, err
	}
	if k == nil {
		k, v, _, err = c.retreat()
		return k, v, err
	}
	return k, v, nil
}

func (c *Cursor) descendLast() ([]byte, []byte, error) {
	for {
		idx := len(c.stack) - 1
		top := c.stack[idx]
		if top.page.IsLeaf() {
			leaf, _ := top.page.AsLeaf()
			if leaf.Count() == 0 {
				return nil, nil, nil
			}
			c.stack[idx].index = leaf.Count() - 1
			return c.keyValueAt(leaf, c.stack[idx].index)
		}
		branch, _ := top.page.AsBranch()
		if branch.Count() == 0 {
			return nil, nil, nil
		}
		last := branch.Count() - 1
		c.stack[idx].index = last
		childID, err := branch.Child(last)
		if err != nil {
			return nil, nil, err
		}
		child, err := c.reader.ReadNode(childID)
		if err != nil {
			return nil, nil, err
		}
		c.stack = append(c.stack, cursorFrame{page: child})
	}
}

func (c *Cursor) descendLastFrom(branch BranchPage, idx int) ([]byte, []byte, error) {
	childID, err := branch.Child(idx)
	if err != nil {
		return nil, nil, err
	}
	child, err := c.reader.ReadNode(childID)
	if err != nil {
		return nil, nil, err
	}
	c.stack = append(c.stack, cursorFrame{page: child})
	return c.descendLast()
}

// advance moves the cursor one entry forward within the existing stack,
// without reseating if the stack runs out. ok is false at end of bucket.
func (c *Cursor) advance() (key, value []byte, ok bool, err error) {
	for len(c.stack) > 0 {
		idx := len(c.stack) - 1
		top := c.stack[idx]
		if top.page.IsLeaf() {
			leaf, _ := top.page.AsLeaf()
			if top.index+1 < leaf.Count() {
				c.stack[idx].index++
				k, v, e := c.keyValueAt(leaf, c.stack[idx].index)
				return k, v, true, e
			}
		} else {
			branch, _ := top.page.AsBranch()
			if top.index+1 < branch.Count() {
				c.stack[idx].index++
				k, v, e := c.descendFirstFrom(branch, c.stack[idx].index)
				return k, v, true, e
			}
		}
		top.page.Release()
		c.stack = c.stack[:idx]
	}
	return nil, nil, false, nil
}

// retreat moves the cursor one entry backward within the existing
// stack: it finds the deepest frame with room to decrement (the root
// frame included), decrements it, and re-descends that subtree's far
// edge. ok is false only when no frame, not even the root, has an
// earlier entry left; the stack is then cleared.
func (c *Cursor) retreat() (key, value []byte, ok bool, err error) {
	depth := -1
	for d := len(c.stack) - 1; d >= 0; d-- {
		if c.stack[d].index > 0 {
			depth = d
			break
		}
	}
	if depth < 0 {
		c.resetStack()
		return nil, nil, false, nil
	}

	for i := len(c.stack) - 1; i > depth; i-- {
		c.stack[i].page.Release()
	}
	c.stack = c.stack[:depth+1]
	c.stack[depth].index--

	top := c.stack[depth]
	if top.page.IsLeaf() {
		leaf, _ := top.page.AsLeaf()
		k, v, e := c.keyValueAt(leaf, top.index)
		return k, v, true, e
	}
	branch, _ := top.page.AsBranch()
	k, v, e := c.descendLastFrom(branch, top.index)
	return k, v, true, e
}

// Next moves the cursor to the next key. At the end of the bucket it
// returns a nil key without reseating; every frame has been popped by
// then, so the cursor is unpositioned and a further Next starts again
// from First.
func (c *Cursor) Next() ([]byte, []byte, error) {
	if err := checkLive(c.live); err != nil {
		return nil, nil, err
	}
	if len(c.stack) == 0 {
		return c.First()
	}
	k, v, ok, err := c.advance()
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, nil
	}
	return k, v, nil
}

// Prev moves the cursor to the previous key. Stepping back past the
// first key (no frame, root included, has an earlier entry) reseats the
// cursor at First but reports no result, so a following Next continues
// from the first key. This is the second half of the asymmetry
// documented on Last: Prev reseats on running off the start, Last does
// not.
func (c *Cursor) Prev() ([]byte, []byte, error) {
	if err := checkLive(c.live); err != nil {
		return nil, nil, err
	}
	if len(c.stack) == 0 {
		return c.First()
	}
	k, v, ok, err := c.retreat()
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		if _, _, err := c.First(); err != nil {
			return nil, nil, err
		}
		return nil, nil, nil
	}
	return k, v, nil
}

// Seek repositions the cursor at the first key >= target, or past the
// end of the bucket if none qualifies.
func (c *Cursor) Seek(target []byte) ([]byte, []byte, error) {
	if err := checkLive(c.live); err != nil {
		return nil, nil, err
	}
	c.resetStack()
	node, err := c.fetchRoot()
	if err != nil {
		return nil, nil, err
	}
	c.stack = append(c.stack, cursorFrame{page: node})
	return c.seekDescend(target)
}

func (c *Cursor) seekDescend(target []byte) ([]byte, []byte, error) {
	for {
		idx := len(c.stack) - 1
		top := c.stack[idx]
		if top.page.IsLeaf() {
			leaf, _ := top.page.AsLeaf()
			if leaf.Count() == 0 {
				return nil, nil, nil
			}
			pos, _, err := leaf.Search(target)
			if err != nil {
				return nil, nil, err
			}
			if pos >= leaf.Count() {
				c.stack[idx].index = leaf.Count() - 1
				k, v, ok, err := c.advance()
				if err != nil {
					return nil, nil, err
				}
				if !ok {
					return nil, nil, nil
				}
				return k, v, nil
			}
			c.stack[idx].index = pos
			return c.keyValueAt(leaf, pos)
		}
		branch, _ := top.page.AsBranch()
		pos, err := branch.Search(target)
		if err != nil {
			return nil, nil, err
		}
		c.stack[idx].index = pos
		childID, err := branch.Child(pos)
		if err != nil {
			return nil, nil, err
		}
		child, err := c.reader.ReadNode(childID)
		if err != nil {
			return nil, nil, err
		}
		c.stack = append(c.stack, cursorFrame{page: child})
	}
}

// currentLeafElement returns the leaf page and element index the
// cursor is positioned at, or ok=false if unpositioned or past either
// end.
func (c *Cursor) currentLeafElement() (leaf LeafPage, idx int, ok bool) {
	if len(c.stack) == 0 {
		return LeafPage{}, 0, false
	}
	top := c.stack[len(c.stack)-1]
	if !top.page.IsLeaf() {
		return LeafPage{}, 0, false
	}
	leaf, _ = top.page.AsLeaf()
	if top.index < 0 || top.index >= leaf.Count() {
		return LeafPage{}, 0, false
	}
	return leaf, top.index, true
}

// IsBucketValue reports whether the cursor's current entry holds a
// BucketHeader rather than a plain value.
func (c *Cursor) IsBucketValue() (bool, error) {
	leaf, idx, ok := c.currentLeafElement()
	if !ok {
		return false, nil
	}
	return leaf.IsBucket(idx)
}

// KeyValue returns the cursor's current position without moving it. It
// returns a nil key if the cursor has never been positioned (First,
// Last, Next, Prev, or Seek not yet called) or has run past either end.
func (c *Cursor) KeyValue() ([]byte, []byte, error) {
	if len(c.stack) == 0 {
		return nil, nil, nil
	}
	idx := len(c.stack) - 1
	top := c.stack[idx]
	if !top.page.IsLeaf() {
		return nil, nil, &PageError{Kind: PageErrInvalidPageFlag, PageId: top.page.Header().Id, Detail: "cursor not positioned on a leaf"}
	}
	leaf, _ := top.page.AsLeaf()
	if top.index < 0 || top.index >= leaf.Count() {
		return nil, nil, nil
	}
	return c.keyValueAt(leaf, top.index)
}
