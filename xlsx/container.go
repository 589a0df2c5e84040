package xlsx

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/flate"
)

// ContainerEntry describes one file inside the archive.
type ContainerEntry struct {
	Name             string
	CompressedSize   uint64
	UncompressedSize uint64
	Dir              bool
}

// Container provides entry-level access to an OOXML ZIP archive. It owns
// the underlying file handle for its whole lifetime and releases it on
// Close. Each entry read decompresses independently; nothing buffers the
// whole archive.
type Container struct {
	path   string
	zr     *zip.Reader
	closer io.Closer

	// Entry index, built lazily on first use and kept for the
	// container's lifetime.
	entries []ContainerEntry
	byName  map[string]*zip.File
	folded  map[string]*zip.File
}

// OpenContainer opens a ZIP container from a file path.
func OpenContainer(path string) (*Container, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, NewOpenError(path, ErrNotFound, "no such file")
		}
		return nil, NewOpenError(path, err, "cannot open file")
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, NewOpenError(path, err, "cannot stat file")
	}
	zr, err := zip.NewReader(f, info.Size())
	if err != nil {
		f.Close()
		return nil, NewOpenError(path, ErrInvalidArchive, "cannot read central directory: %v", err)
	}
	c := &Container{path: path, zr: zr, closer: f}
	c.registerInflate()
	return c, nil
}

// OpenContainerBytes opens a ZIP container held in memory.
func OpenContainerBytes(data []byte) (*Container, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, NewOpenError("", ErrInvalidArchive, "cannot read central directory: %v", err)
	}
	c := &Container{zr: zr}
	c.registerInflate()
	return c, nil
}

func (c *Container) registerInflate() {
	c.zr.RegisterDecompressor(zip.Deflate, func(r io.Reader) io.ReadCloser {
		return flate.NewReader(r)
	})
}

// Close releases the archive handle. The container must not be used after.
func (c *Container) Close() error {
	if c.closer != nil {
		err := c.closer.Close()
		c.closer = nil
		return err
	}
	return nil
}

// normalizeEntryName maps archive member names onto the forward-slash,
// no-leading-separator form used for lookups. Some producers emit
// backslashes or absolute-looking names.
func normalizeEntryName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	return strings.TrimPrefix(name, "/")
}

func (c *Container) ensureIndex() {
	if c.byName != nil {
		return
	}
	c.byName = make(map[string]*zip.File, len(c.zr.File))
	c.folded = make(map[string]*zip.File, len(c.zr.File))
	c.entries = make([]ContainerEntry, 0, len(c.zr.File))
	for _, zf := range c.zr.File {
		name := normalizeEntryName(zf.Name)
		c.byName[name] = zf
		c.folded[strings.ToLower(name)] = zf
		c.entries = append(c.entries, ContainerEntry{
			Name:             name,
			CompressedSize:   zf.CompressedSize64,
			UncompressedSize: zf.UncompressedSize64,
			Dir:              zf.FileInfo().IsDir(),
		})
	}
}

// ListEntries returns every entry in the archive. The listing is computed
// on first call and cached.
func (c *Container) ListEntries() []ContainerEntry {
	c.ensureIndex()
	return c.entries
}

// lookup finds an entry by normalized name, falling back to a
// case-insensitive match for third-party files with nonstandard casing.
func (c *Container) lookup(name string) (*zip.File, bool) {
	c.ensureIndex()
	key := normalizeEntryName(name)
	if zf, ok := c.byName[key]; ok {
		return zf, true
	}
	if zf, ok := c.folded[strings.ToLower(key)]; ok {
		return zf, true
	}
	return nil, false
}

// HasEntry reports whether the named entry exists in the archive.
func (c *Container) HasEntry(name string) bool {
	_, ok := c.lookup(name)
	return ok
}

// FindEntries returns the names of all entries matching pattern. A pattern
// ending in "*" matches by prefix (e.g. "xl/worksheets/*"); any other
// pattern matches exactly.
func (c *Container) FindEntries(pattern string) []string {
	c.ensureIndex()
	var out []string
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		for _, e := range c.entries {
			if strings.HasPrefix(e.Name, prefix) {
				out = append(out, e.Name)
			}
		}
		return out
	}
	if _, ok := c.lookup(pattern); ok {
		out = append(out, normalizeEntryName(pattern))
	}
	return out
}

// ReadEntryBytes extracts one entry. An absent entry yields an empty
// result, not an error: several OOXML parts are optional. A corrupt entry
// fails only this read, not the container.
func (c *Container) ReadEntryBytes(name string) ([]byte, error) {
	zf, ok := c.lookup(name)
	if !ok {
		return nil, nil
	}
	rc, err := zf.Open()
	if err != nil {
		return nil, NewOpenError(c.path, err, "corrupt entry %q", name)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, NewOpenError(c.path, err, "corrupt entry %q", name)
	}
	return data, nil
}

// ReadEntryText extracts one entry as a string. Semantics match
// ReadEntryBytes.
func (c *Container) ReadEntryText(name string) (string, error) {
	data, err := c.ReadEntryBytes(name)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
