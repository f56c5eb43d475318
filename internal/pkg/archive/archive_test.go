package archive

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func buildTar(t *testing.T, files map[string]string, modes map[string]int64) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for name, content := range files {
		mode := int64(0o644)
		if m, ok := modes[name]; ok {
			mode = m
		}
		hdr := &tar.Header{Name: name, Mode: mode, Size: int64(len(content)), Typeflag: tar.TypeReg}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("WriteHeader: %v", err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return buf.Bytes()
}

func TestOpenBytesTarMembersAndExtract(t *testing.T) {
	raw := buildTar(t, map[string]string{
		"mytool":      "binary-data",
		"README.md":   "docs",
		"lib/libx.so": "sharedobj",
	}, map[string]int64{"mytool": 0o755})

	a, err := OpenBytes(raw)
	if err != nil {
		t.Fatalf("OpenBytes: %v", err)
	}

	members := a.Members()
	if len(members) != 3 {
		t.Fatalf("got %d members, want 3", len(members))
	}

	if names := a.NamesBySuffix(".so"); len(names) != 1 || names[0] != "lib/libx.so" {
		t.Fatalf("NamesBySuffix(.so) = %v", names)
	}

	if names := a.NamesByFilename("mytool"); len(names) != 1 {
		t.Fatalf("NamesByFilename(mytool) = %v", names)
	}

	mode, err := a.Permissions("mytool")
	if err != nil {
		t.Fatalf("Permissions: %v", err)
	}
	if mode.Perm()&0o111 == 0 {
		t.Fatalf("expected mytool to be executable, got mode %v", mode)
	}

	dir := t.TempDir()
	target, err := a.Extract("mytool", dir)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "binary-data" {
		t.Fatalf("extracted content = %q", data)
	}
}

func TestExtractAllPreservesLayout(t *testing.T) {
	raw := buildTar(t, map[string]string{"a/b/c.txt": "hello"}, nil)
	a, err := OpenBytes(raw)
	if err != nil {
		t.Fatalf("OpenBytes: %v", err)
	}
	dir := t.TempDir()
	if err := a.ExtractAll(dir); err != nil {
		t.Fatalf("ExtractAll: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "a", "b", "c.txt"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("content = %q", data)
	}
}

func TestExtractAllRejectsPathTraversal(t *testing.T) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	hdr := &tar.Header{Name: "../../etc/passwd", Mode: 0o644, Size: 4, Typeflag: tar.TypeReg}
	if err := tw.WriteHeader(hdr); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	tw.Write([]byte("evil"))
	tw.Close()

	a, err := OpenBytes(buf.Bytes())
	if err != nil {
		t.Fatalf("OpenBytes: %v", err)
	}
	dir := t.TempDir()
	if err := a.ExtractAll(dir); err != nil {
		t.Fatalf("ExtractAll: %v", err)
	}

	var escaped bool
	filepath.Walk(filepath.Dir(dir), func(p string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() && filepath.Base(p) == "passwd" {
			rel, relErr := filepath.Rel(dir, p)
			if relErr != nil || len(rel) >= 2 && rel[:2] == ".." {
				escaped = true
			}
		}
		return nil
	})
	if escaped {
		t.Fatalf("path traversal escaped the extraction root")
	}
}

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return buf.Bytes()
}

func TestOpenBytesZip(t *testing.T) {
	raw := buildZip(t, map[string]string{"tool.exe": "data"})
	a, err := OpenBytes(raw)
	if err != nil {
		t.Fatalf("OpenBytes: %v", err)
	}
	if len(a.Members()) != 1 {
		t.Fatalf("got %d members, want 1", len(a.Members()))
	}
}

func TestIsCompressedSingleFile(t *testing.T) {
	isCompressed, isTar := IsCompressedSingleFile([]byte("not compressed"))
	if isCompressed || isTar {
		t.Fatalf("plain bytes misclassified as compressed=%v tar=%v", isCompressed, isTar)
	}
}
