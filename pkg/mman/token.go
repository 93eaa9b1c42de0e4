package mman

import "github.com/google/uuid"

// token is an opaque identity for a FileInfo, Region or cursor, used as the
// key of the Relation index and of a manager's open-cursor registry. A
// Region holds no reference to its manager or its cursors. Cursors do not
// go through a token to reach their region: they hold a direct *Region
// pointer, and no check is made that the region is still indexed when a
// cursor reads through it.
type token uuid.UUID

func newToken() token {
	return token(uuid.New())
}

func (t token) String() string {
	return uuid.UUID(t).String()
}
