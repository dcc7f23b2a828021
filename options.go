package boltkv

// Options configures Open. The zero value is not valid on its own;
// callers normally start from DefaultOptions and override fields.
type Options struct {
	// ReadOnly opens the file O_RDONLY and refuses to create it if
	// missing.
	ReadOnly bool
	// Mode selects the Reader's fetch strategy (ModeMapped, ModeEagerFile,
	// ModeLazyFile).
	Mode ReaderMode
	// PageCacheSize is the number of records the page cache holds before
	// evicting by LRU. Zero disables the cache entirely.
	PageCacheSize int
	// BufferPoolInit/Min/Max bound the Reader's buffer pool in bytes; see
	// bufferpool.go.
	BufferPoolInit int64
	BufferPoolMin  int64
	BufferPoolMax  int64
}

// DefaultOptions returns the configuration Open uses when no explicit
// Options value is supplied: memory-mapped reads, a 1024-entry page
// cache, and a buffer pool pre-warmed to 1MB with an 8MB ceiling.
func DefaultOptions() Options {
	return Options{
		Mode:           ModeMapped,
		PageCacheSize:  1024,
		BufferPoolInit: 1 << 20,
		BufferPoolMin:  1 << 20,
		BufferPoolMax:  8 << 20,
	}
}

func (o Options) withDefaults() Options {
	if o.PageCacheSize == 0 && o.BufferPoolInit == 0 && o.BufferPoolMax == 0 {
		d := DefaultOptions()
		d.ReadOnly = o.ReadOnly
		d.Mode = o.Mode
		return d
	}
	if o.BufferPoolMax == 0 {
		o.BufferPoolMax = 8 << 20
	}
	return o
}
