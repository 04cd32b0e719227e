package imagesource

import (
	"fmt"
	"net/url"
	"path/filepath"
)

// Source identifies where an image originated. Fetchers operate on files,
// fs.FS entries, URLs, or in-memory payloads without leaking implementation
// details to callers.
type Source interface {
	Kind() SourceKind
	Location() string
}

// SourceKind enumerates the fetcher modalities.
type SourceKind string

const (
	SourceKindFile  SourceKind = "file"
	SourceKindFS    SourceKind = "fs"
	SourceKindURL   SourceKind = "url"
	SourceKindBytes SourceKind = "bytes"
)

// DataSource is a Source that already carries its payload. Raw bytes skip the
// network entirely but still pass through normalization.
type DataSource interface {
	Source
	Data() []byte
	DeclaredMIME() string
}

// fileSource identifies on-disk images.
type fileSource struct {
	path string
}

func (s fileSource) Location() string {
	return s.path
}

func (s fileSource) Kind() SourceKind {
	return SourceKindFile
}

// SourceFromFile returns a Source pointing to a file path.
func SourceFromFile(path string) Source {
	return fileSource{path: filepath.Clean(path)}
}

// fsSource references a path within an fs.FS.
type fsSource struct {
	name string
}

func (s fsSource) Location() string {
	return s.name
}

func (s fsSource) Kind() SourceKind {
	return SourceKindFS
}

// SourceFromFS returns a Source identifying a resource inside an fs.FS.
func SourceFromFS(name string) Source {
	return fsSource{name: name}
}

// urlSource references an HTTP/HTTPS endpoint.
type urlSource struct {
	raw string
}

func (s urlSource) Location() string {
	return s.raw
}

func (s urlSource) Kind() SourceKind {
	return SourceKindURL
}

// SourceFromURL parses the supplied URL string and returns a Source. It panics
// if the URL is invalid to surface configuration mistakes early.
func SourceFromURL(raw string) Source {
	if raw == "" {
		panic("imagesource: empty URL source")
	}
	if _, err := url.ParseRequestURI(raw); err != nil {
		panic(fmt.Sprintf("imagesource: invalid URL %q: %v", raw, err))
	}
	return urlSource{raw: raw}
}

// bytesSource wraps an in-memory payload with its declared MIME type.
type bytesSource struct {
	data []byte
	mime string
}

func (s bytesSource) Location() string {
	return "inline:" + s.mime
}

func (s bytesSource) Kind() SourceKind {
	return SourceKindBytes
}

func (s bytesSource) Data() []byte {
	return s.data
}

func (s bytesSource) DeclaredMIME() string {
	return s.mime
}

// SourceFromBytes wraps raw image bytes and their declared MIME type so they
// can flow through the same fetch/normalize pipeline as remote images.
func SourceFromBytes(data []byte, declaredMIME string) Source {
	clone := append([]byte(nil), data...)
	return bytesSource{data: clone, mime: declaredMIME}
}
