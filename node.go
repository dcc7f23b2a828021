// Typed views over a raw NodePage record: BranchPage and LeafPage add
// element-array search on top of the generic PageBytes surface. These
// are read-only views directly over the page bytes: there is no
// write/commit path here, so there is nothing to deserialize into and
// flush back out.
package boltkv

import "bytes"

// NodePage is a branch or leaf record, not yet known which; ReadNode
// returns this and callers narrow it with AsBranch/AsLeaf.
type NodePage struct {
	bytes PageBytes
}

func (n NodePage) Header() PageHeader { return n.bytes.PageHeader() }
func (n NodePage) Count() int         { return int(n.Header().Count) }
func (n NodePage) IsLeaf() bool       { return n.Header().Flags&leafPageFlag != 0 }
func (n NodePage) IsBranch() bool     { return n.Header().Flags&branchPageFlag != 0 }
func (n NodePage) Release()           { n.bytes.Release() }

func (n NodePage) AsBranch() (BranchPage, error) {
	if !n.IsBranch() {
		return BranchPage{}, &PageError{Kind: PageErrInvalidPageFlag, PageId: n.Header().Id, Detail: "not a branch page"}
	}
	return BranchPage{bytes: n.bytes}, nil
}

func (n NodePage) AsLeaf() (LeafPage, error) {
	if !n.IsLeaf() {
		return LeafPage{}, &PageError{Kind: PageErrInvalidPageFlag, PageId: n.Header().Id, Detail: "not a leaf page"}
	}
	return LeafPage{bytes: n.bytes}, nil
}

// BranchPage is an interior B+tree page: an ordered array of
// (key, child page id) entries, the first entry's key acting as the
// implicit "less than everything else" sentinel.
type BranchPage struct {
	bytes PageBytes
}

func (b BranchPage) Count() int { return int(b.bytes.PageHeader().Count) }
func (b BranchPage) Release()   { b.bytes.Release() }

func (b BranchPage) elementOffset(i int) int { return pageHeaderSize + i*branchElementSize }

func (b BranchPage) Element(i int) (BranchElement, error) {
	if i < 0 || i >= b.Count() {
		return BranchElement{}, &PageError{Kind: PageErrOutOfRange, PageId: b.bytes.PageHeader().Id, Detail: "branch element index out of range"}
	}
	off := b.elementOffset(i)
	raw, err := b.bytes.GetRefSlice(off, off+branchElementSize)
	if err != nil {
		return BranchElement{}, err
	}
	return decodeBranchElement(raw), nil
}

func (b BranchPage) Key(i int) ([]byte, error) {
	e, err := b.Element(i)
	if err != nil {
		return nil, err
	}
	start := b.elementOffset(i) + int(e.KeyDist)
	return b.bytes.GetRefSlice(start, start+int(e.KeyLen))
}

func (b BranchPage) Child(i int) (NodePageId, error) {
	e, err := b.Element(i)
	if err != nil {
		return 0, err
	}
	return e.PageId, nil
}

// Search returns the index of the rightmost entry whose key is <=
// target, ties resolved toward the lower index. A target smaller than
// every key still returns 0: the first branch entry routes "everything
// less than the second entry's key".
func (b BranchPage) Search(target []byte) (int, error) {
	lo, hi := 0, b.Count()
	for lo < hi {
		mid := (lo + hi) / 2
		k, err := b.Key(mid)
		if err != nil {
			return 0, err
		}
		if bytes.Compare(k, target) <= 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo == 0 {
		return 0, nil
	}
	return lo - 1, nil
}

// LeafPage is a B+tree leaf: an ordered array of (key, value) entries,
// where a value may itself be a BucketHeader when LeafElement.isBucket.
type LeafPage struct {
	bytes PageBytes
}

func (l LeafPage) Count() int { return int(l.bytes.PageHeader().Count) }
func (l LeafPage) Release()   { l.bytes.Release() }

func (l LeafPage) elementOffset(i int) int { return pageHeaderSize + i*leafElementSize }

func (l LeafPage) Element(i int) (LeafElement, error) {
	if i < 0 || i >= l.Count() {
		return LeafElement{}, &PageError{Kind: PageErrOutOfRange, PageId: l.bytes.PageHeader().Id, Detail: "leaf element index out of range"}
	}
	off := l.elementOffset(i)
	raw, err := l.bytes.GetRefSlice(off, off+leafElementSize)
	if err != nil {
		return LeafElement{}, err
	}
	return decodeLeafElement(raw), nil
}

func (l LeafPage) Key(i int) ([]byte, error) {
	e, err := l.Element(i)
	if err != nil {
		return nil, err
	}
	start := l.elementOffset(i) + int(e.KeyDist)
	return l.bytes.GetRefSlice(start, start+int(e.KeyLen))
}

func (l LeafPage) Value(i int) ([]byte, error) {
	e, err := l.Element(i)
	if err != nil {
		return nil, err
	}
	start := l.elementOffset(i) + int(e.KeyDist) + int(e.KeyLen)
	return l.bytes.GetRefSlice(start, start+int(e.ValueLen))
}

func (l LeafPage) IsBucket(i int) (bool, error) {
	e, err := l.Element(i)
	if err != nil {
		return false, err
	}
	return e.isBucket(), nil
}

// BucketValue decodes element i's value as a BucketHeader. Callers must
// have already confirmed IsBucket(i).
func (l LeafPage) BucketValue(i int) (BucketHeader, error) {
	v, err := l.Value(i)
	if err != nil {
		return BucketHeader{}, err
	}
	if len(v) < bucketHeaderSize {
		return BucketHeader{}, &PageError{Kind: PageErrOutOfRange, PageId: l.bytes.PageHeader().Id, Detail: "bucket value shorter than BucketHeader"}
	}
	return decodeBucketHeader(v), nil
}

// Search returns (index, true) when target is present, or (index,
// false) where index is the position target would occupy if inserted.
func (l LeafPage) Search(target []byte) (int, bool, error) {
	lo, hi := 0, l.Count()
	for lo < hi {
		mid := (lo + hi) / 2
		k, err := l.Key(mid)
		if err != nil {
			return 0, false, err
		}
		switch bytes.Compare(k, target) {
		case 0:
			return mid, true, nil
		case -1:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return lo, false, nil
}
