// Package archive accumulates a run's output files and writes them as one zip archive.
package archive

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"
)

// DefaultName is the archive file name offered for download.
const DefaultName = "generated_files.zip"

// ModTime is stamped on every entry so identical bundles produce identical archives.
var ModTime = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

// Entry is one file of the bundle.
type Entry struct {
	Name string
	Data []byte
}

// Bundle is an ordered set of uniquely named files. Not safe for concurrent use.
type Bundle struct {
	entries []Entry
	index   map[string]int
}

// NewBundle creates an empty Bundle.
func NewBundle() *Bundle {
	return &Bundle{index: make(map[string]int)}
}

// Add appends a file. Names must be unique; a duplicate is rejected, never overwritten.
func (b *Bundle) Add(name string, data []byte) error {
	if name == "" || strings.Contains(name, "..") || strings.HasPrefix(name, "/") {
		return fmt.Errorf("invalid entry name %q", name)
	}
	if _, ok := b.index[name]; ok {
		return fmt.Errorf("duplicate entry %q", name)
	}
	b.index[name] = len(b.entries)
	b.entries = append(b.entries, Entry{Name: name, Data: data})
	return nil
}

// Has reports whether name was added.
func (b *Bundle) Has(name string) bool {
	_, ok := b.index[name]
	return ok
}

// Len returns the number of entries.
func (b *Bundle) Len() int { return len(b.entries) }

// Count returns the number of entries whose name ends with suffix.
func (b *Bundle) Count(suffix string) int {
	n := 0
	for _, e := range b.entries {
		if strings.HasSuffix(e.Name, suffix) {
			n++
		}
	}
	return n
}

// Names returns entry names in insertion order.
func (b *Bundle) Names() []string {
	names := make([]string, len(b.entries))
	for i, e := range b.entries {
		names[i] = e.Name
	}
	return names
}

// WriteTo writes the bundle as a deflated zip, entries in insertion order, all stamped ModTime.
func (b *Bundle) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	zw := zip.NewWriter(cw)
	for _, e := range b.entries {
		fw, err := zw.CreateHeader(&zip.FileHeader{
			Name:     e.Name,
			Method:   zip.Deflate,
			Modified: ModTime,
		})
		if err != nil {
			return cw.n, fmt.Errorf("create entry %s: %w", e.Name, err)
		}
		if _, err := fw.Write(e.Data); err != nil {
			return cw.n, fmt.Errorf("write entry %s: %w", e.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return cw.n, fmt.Errorf("close archive: %w", err)
	}
	return cw.n, nil
}

// Zip returns the archive bytes.
func (b *Bundle) Zip() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := b.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
