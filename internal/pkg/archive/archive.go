// Package archive gives the gh-release and OCI feature installers a single
// polymorphic view over the handful of archive formats GitHub release assets
// and OCI feature layers actually show up in: tar (optionally gzip/bzip2/xz
// compressed) and zip. Callers dispatch on content, not file extension,
// mirroring AbstractArchive/TarArchive/ZipArchive from the Python original.
package archive

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/ulikunitz/xz"

	"github.com/devcontainers-contrib/nanolayer/internal/pkg/nerrors"
)

// Member describes one entry of an opened archive.
type Member struct {
	Name string
	Mode os.FileMode
	Size int64
}

// Archive is a read-only, already-indexed view of an archive's members. All
// lookup methods operate on the member list captured at Open time.
type Archive interface {
	// Members returns every entry in the archive, in archive order.
	Members() []Member
	// NamesByPrefix returns member names with the given path prefix.
	NamesByPrefix(prefix string) []string
	// NamesBySuffix returns member names with the given suffix (e.g. ".sh").
	NamesBySuffix(suffix string) []string
	// NamesByFilename returns member names whose final path element equals
	// filename exactly, regardless of directory.
	NamesByFilename(filename string) []string
	// Permissions returns the Unix permission bits recorded for name.
	Permissions(name string) (os.FileMode, error)
	// Extract writes the single member name into destDir, preserving its
	// base filename, and returns the path written.
	Extract(name, destDir string) (string, error)
	// ExtractAll writes every member into destDir, preserving internal
	// directory structure.
	ExtractAll(destDir string) error
}

type memberData struct {
	Member
	data     []byte
	linkname string
	isDir    bool
}

type memArchive struct {
	members []memberData
}

// Open reads path fully into memory and returns a polymorphic Archive,
// dispatching on the file's magic bytes rather than its extension: gh-release
// assets are not reliably named, and a mis-detected .tar.gz served as .bin is
// a real occurrence upstream.
func Open(path string) (Archive, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &nerrors.IOError{Msg: err.Error()}
	}
	return OpenBytes(raw)
}

// OpenBytes is Open over an in-memory buffer, exposed for testing and for
// callers that already hold archive bytes (e.g. a downloaded OCI layer).
func OpenBytes(raw []byte) (Archive, error) {
	switch {
	case len(raw) >= 4 && bytes.Equal(raw[:4], []byte{0x50, 0x4b, 0x03, 0x04}):
		return openZip(raw)
	case len(raw) >= 2 && raw[0] == 0x1f && raw[1] == 0x8b:
		r, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, &nerrors.IOError{Msg: "malformed gzip archive: " + err.Error()}
		}
		defer r.Close()
		return openTar(r)
	case len(raw) >= 3 && bytes.Equal(raw[:3], []byte("BZh")):
		return openTar(bzip2.NewReader(bytes.NewReader(raw)))
	case len(raw) >= 6 && bytes.Equal(raw[:6], []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}):
		r, err := xz.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, &nerrors.IOError{Msg: "malformed xz archive: " + err.Error()}
		}
		return openTar(r)
	default:
		return openTar(bytes.NewReader(raw))
	}
}

func openTar(r io.Reader) (Archive, error) {
	tr := tar.NewReader(r)
	a := &memArchive{}
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &nerrors.IOError{Msg: "malformed tar archive: " + err.Error()}
		}
		name := path.Clean(hdr.Name)
		mode := os.FileMode(hdr.Mode).Perm()
		if hdr.Typeflag == tar.TypeDir {
			mode |= os.ModeDir
		}
		md := memberData{
			Member:   Member{Name: name, Mode: mode, Size: hdr.Size},
			isDir:    hdr.Typeflag == tar.TypeDir,
			linkname: hdr.Linkname,
		}
		if hdr.Typeflag == tar.TypeReg {
			data := make([]byte, hdr.Size)
			if _, err := io.ReadFull(tr, data); err != nil {
				return nil, &nerrors.IOError{Msg: "truncated tar member " + name + ": " + err.Error()}
			}
			md.data = data
		}
		a.members = append(a.members, md)
	}
	return a, nil
}

func openZip(raw []byte) (Archive, error) {
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, &nerrors.IOError{Msg: "malformed zip archive: " + err.Error()}
	}
	a := &memArchive{}
	for _, f := range zr.File {
		name := path.Clean(f.Name)
		md := memberData{
			Member: Member{Name: name, Mode: f.Mode(), Size: int64(f.UncompressedSize64)},
			isDir:  f.FileInfo().IsDir(),
		}
		if !md.isDir {
			rc, err := f.Open()
			if err != nil {
				return nil, &nerrors.IOError{Msg: "unreadable zip member " + name + ": " + err.Error()}
			}
			data, err := io.ReadAll(rc)
			rc.Close()
			if err != nil {
				return nil, &nerrors.IOError{Msg: "truncated zip member " + name + ": " + err.Error()}
			}
			md.data = data
		}
		a.members = append(a.members, md)
	}
	return a, nil
}

func (a *memArchive) Members() []Member {
	out := make([]Member, 0, len(a.members))
	for _, m := range a.members {
		out = append(out, m.Member)
	}
	return out
}

func (a *memArchive) NamesByPrefix(prefix string) []string {
	var out []string
	for _, m := range a.members {
		if strings.HasPrefix(m.Name, prefix) {
			out = append(out, m.Name)
		}
	}
	return out
}

func (a *memArchive) NamesBySuffix(suffix string) []string {
	var out []string
	for _, m := range a.members {
		if strings.HasSuffix(m.Name, suffix) {
			out = append(out, m.Name)
		}
	}
	return out
}

func (a *memArchive) NamesByFilename(filename string) []string {
	var out []string
	for _, m := range a.members {
		if path.Base(m.Name) == filename {
			out = append(out, m.Name)
		}
	}
	return out
}

func (a *memArchive) Permissions(name string) (os.FileMode, error) {
	for _, m := range a.members {
		if m.Name == name {
			return m.Mode, nil
		}
	}
	return 0, &nerrors.IOError{Msg: "no such archive member: " + name}
}

// Extract writes the single named member to destDir under its own base
// filename and returns the written path. destDir is joined with securejoin
// so a member whose recorded name escapes via ".." cannot write outside it.
func (a *memArchive) Extract(name, destDir string) (string, error) {
	for _, m := range a.members {
		if m.Name == name {
			target, err := securejoin.SecureJoin(destDir, path.Base(name))
			if err != nil {
				return "", &nerrors.IOError{Msg: err.Error()}
			}
			if err := os.MkdirAll(destDir, 0o755); err != nil {
				return "", &nerrors.IOError{Msg: err.Error()}
			}
			mode := m.Mode
			if mode == 0 {
				mode = 0o644
			}
			if err := os.WriteFile(target, m.data, mode.Perm()); err != nil {
				return "", &nerrors.IOError{Msg: err.Error()}
			}
			return target, nil
		}
	}
	return "", &nerrors.IOError{Msg: "no such archive member: " + name}
}

// ExtractAll writes every member to destDir, preserving the archive's
// internal directory layout. Every write is securejoin'd against destDir, so
// a maliciously crafted archive (zip-slip via "../../etc/..." entries) cannot
// place files outside the extraction root.
func (a *memArchive) ExtractAll(destDir string) error {
	for _, m := range a.members {
		target, err := securejoin.SecureJoin(destDir, m.Name)
		if err != nil {
			return &nerrors.IOError{Msg: err.Error()}
		}
		if m.isDir {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return &nerrors.IOError{Msg: err.Error()}
			}
			continue
		}
		if m.linkname != "" {
			linkTarget, err := securejoin.SecureJoin(destDir, m.linkname)
			if err != nil {
				return &nerrors.IOError{Msg: err.Error()}
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return &nerrors.IOError{Msg: err.Error()}
			}
			if err := os.Symlink(linkTarget, target); err != nil {
				return &nerrors.IOError{Msg: err.Error()}
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return &nerrors.IOError{Msg: err.Error()}
		}
		mode := m.Mode
		if mode == 0 {
			mode = 0o644
		}
		if err := os.WriteFile(target, m.data, mode.Perm()); err != nil {
			return &nerrors.IOError{Msg: err.Error()}
		}
	}
	return nil
}

// IsCompressedSingleFile reports whether raw is a gzip- or bzip2-compressed
// stream (isCompressed) and, if so, whether the decompressed content is a tar
// archive (isTar). isCompressed && !isTar marks a release asset shipped as a
// single compressed binary (foo.gz) rather than an archive of one; the gh
// release installer treats these as "decompress in place", not "extract".
func IsCompressedSingleFile(raw []byte) (isCompressed bool, isTar bool) {
	switch {
	case len(raw) >= 2 && raw[0] == 0x1f && raw[1] == 0x8b:
		r, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return true, false
		}
		defer r.Close()
		return true, looksLikeTar(r)
	case len(raw) >= 3 && bytes.Equal(raw[:3], []byte("BZh")):
		return true, looksLikeTar(bzip2.NewReader(bytes.NewReader(raw)))
	default:
		return false, false
	}
}

func looksLikeTar(r io.Reader) bool {
	_, err := tar.NewReader(r).Next()
	return err == nil
}

// DecompressSingleFile fully decompresses a gzip or bzip2 stream that is not
// a tar archive (see IsCompressedSingleFile) and returns its contents.
func DecompressSingleFile(raw []byte) ([]byte, error) {
	switch {
	case len(raw) >= 2 && raw[0] == 0x1f && raw[1] == 0x8b:
		r, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, &nerrors.IOError{Msg: err.Error()}
		}
		defer r.Close()
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, &nerrors.IOError{Msg: err.Error()}
		}
		return out, nil
	case len(raw) >= 3 && bytes.Equal(raw[:3], []byte("BZh")):
		out, err := io.ReadAll(bzip2.NewReader(bytes.NewReader(raw)))
		if err != nil {
			return nil, &nerrors.IOError{Msg: err.Error()}
		}
		return out, nil
	default:
		return nil, &nerrors.IOError{Msg: "not a recognized single-file compressed stream"}
	}
}
