package zip

import (
	"archive/zip"
	"bytes"
	"io"
	"testing"
	"time"
)

func TestWriteArchive(t *testing.T) {
	var buf bytes.Buffer
	assets := []Asset{
		{Filename: "a.png", MIME: "image/png", Data: []byte("png-bytes"), Modified: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)},
		{Filename: "b.jpg", MIME: "image/jpeg", Data: []byte("jpeg-bytes")},
	}
	if err := WriteArchive(&buf, assets); err != nil {
		t.Fatalf("WriteArchive: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	if len(zr.File) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(zr.File))
	}
	for i, f := range zr.File {
		if f.Name != assets[i].Filename || f.Method != zip.Store {
			t.Fatalf("entry %d: name %q method %d", i, f.Name, f.Method)
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		data, _ := io.ReadAll(rc)
		rc.Close()
		if !bytes.Equal(data, assets[i].Data) {
			t.Fatalf("entry %s: got %q", f.Name, data)
		}
	}
}

func TestWriteArchiveEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteArchive(&buf, nil); err != nil {
		t.Fatalf("WriteArchive: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatalf("expected an empty archive footer")
	}
}
