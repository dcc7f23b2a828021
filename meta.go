// Meta selection: a database keeps two meta pages (0 and 1) and trusts
// whichever validates and carries the larger TxId, the two-meta
// crash-recovery scheme. The on-disk layout itself lives in page.go.
package boltkv

// selectMeta picks the meta to trust given both slots' read results.
// Either read may have failed (err != nil) independently, e.g. the file
// was truncated mid-write to slot 1; a failure on one slot does not
// invalidate the other.
func selectMeta(m0 Meta, err0 error, m1 Meta, err1 error) (Meta, error) {
	ok0 := err0 == nil && m0.validate() == nil
	ok1 := err1 == nil && m1.validate() == nil
	switch {
	case ok0 && ok1:
		if m1.TxIdField > m0.TxIdField {
			return m1, nil
		}
		return m0, nil
	case ok0:
		return m0, nil
	case ok1:
		return m1, nil
	default:
		return Meta{}, ErrNoValidMeta
	}
}
