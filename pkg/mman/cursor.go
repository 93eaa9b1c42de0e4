package mman

// Cursor is the client-facing handle spec.md §3 describes: a logical
// [Ofs, Ofs+Size) byte range over one file, backed by one (FixedCursor) or
// lazily-switched (SlidingCursor) Region.
type Cursor interface {
	Ofs() int64
	Size() int64
	OfsEnd() int64
	FileSize() int64
	Path() string
	FInfo() *FileInfo
	Closed() bool
	IncludesOfs(x int64) bool
	Close() error
}

// cursorCommon holds the fields every cursor flavor shares.
type cursorCommon struct {
	tok    token
	finfo  *FileInfo
	ofs    int64
	size   int64
	closed bool
}

func (c *cursorCommon) cursorToken() token { return c.tok }
func (c *cursorCommon) Ofs() int64         { return c.ofs }
func (c *cursorCommon) Size() int64        { return c.size }
func (c *cursorCommon) OfsEnd() int64      { return c.ofs + c.size }
func (c *cursorCommon) FileSize() int64    { return c.finfo.size }
func (c *cursorCommon) Path() string       { return c.finfo.path }
func (c *cursorCommon) FInfo() *FileInfo   { return c.finfo }
func (c *cursorCommon) Closed() bool       { return c.closed }

func (c *cursorCommon) IncludesOfs(x int64) bool {
	return c.ofs <= x && x < c.ofs+c.size
}

// resolveIndex turns a possibly-negative logical index (Python-slice
// style, relative to file_size when negative) into an absolute file
// offset, per spec.md §8's round-trip law for SlidingCursor: `c[i] ==
// file_bytes[i if i>=0 else file_size+i]`.
func resolveIndex(fileSize, i int64) int64 {
	if i < 0 {
		return fileSize + i
	}
	return i
}
