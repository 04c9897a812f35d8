package zip

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"time"
)

type Entry struct {
	Name     string
	Modified time.Time
	Data     []byte
}

// Write streams entries into a zip archive on w. Entry names must be unique.
func Write(w io.Writer, entries []Entry) error {
	zw := zip.NewWriter(w)
	seen := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		if _, dup := seen[entry.Name]; dup {
			_ = zw.Close()
			return fmt.Errorf("zip: duplicate entry %q", entry.Name)
		}
		seen[entry.Name] = struct{}{}
		hdr := &zip.FileHeader{Name: entry.Name, Method: zip.Deflate, Modified: entry.Modified}
		fw, err := zw.CreateHeader(hdr)
		if err != nil {
			_ = zw.Close()
			return fmt.Errorf("zip: create %s: %w", entry.Name, err)
		}
		if _, err := fw.Write(entry.Data); err != nil {
			_ = zw.Close()
			return fmt.Errorf("zip: write %s: %w", entry.Name, err)
		}
	}
	return zw.Close()
}

// Archive returns the entries as an in-memory zip archive.
func Archive(entries []Entry) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := Write(buf, entries); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
