package adapter

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"
	"syscall"
)

type ServeKind int

const (
	Served ServeKind = iota + 1
	NotFound
	IOError
)

// ServeResult reports what a Static call did. Nothing has been written to
// the response unless Kind is Served.
type ServeResult struct {
	Kind ServeKind
	Err  error
}

// Static serves the built single-page app from Root.
type Static struct {
	Root  string
	Index string
	fsys  fs.FS
}

func NewStatic(root string) Static {
	return Static{Root: root, Index: "index.html", fsys: os.DirFS(root)}
}

func (s Static) filesystem() fs.FS {
	if s.fsys != nil {
		return s.fsys
	}
	return os.DirFS(s.Root)
}

// ServeAsset serves the file named by the request path. Directories and
// anything outside Root are NotFound.
func (s Static) ServeAsset(w http.ResponseWriter, r *http.Request) ServeResult {
	name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
	if name == "" {
		return ServeResult{Kind: NotFound}
	}
	return s.serveFile(w, r, name, false)
}

// ServeIndex serves the SPA document for client-side routes.
func (s Static) ServeIndex(w http.ResponseWriter, r *http.Request) ServeResult {
	index := s.Index
	if index == "" {
		index = "index.html"
	}
	return s.serveFile(w, r, index, true)
}

func (s Static) serveFile(w http.ResponseWriter, r *http.Request, name string, document bool) ServeResult {
	if !fs.ValidPath(name) {
		return ServeResult{Kind: NotFound}
	}
	f, err := s.filesystem().Open(name)
	if err != nil {
		return openFailure(err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return ServeResult{Kind: IOError, Err: fmt.Errorf("stat %s: %w", name, err)}
	}
	if st.IsDir() {
		return ServeResult{Kind: NotFound}
	}
	rs, ok := f.(io.ReadSeeker)
	if !ok {
		return ServeResult{Kind: IOError, Err: fmt.Errorf("%s is not seekable", name)}
	}
	if document {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
	}
	http.ServeContent(w, r, st.Name(), st.ModTime(), rs)
	return ServeResult{Kind: Served}
}

func openFailure(err error) ServeResult {
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrInvalid) || errors.Is(err, syscall.ENOTDIR) {
		return ServeResult{Kind: NotFound}
	}
	return ServeResult{Kind: IOError, Err: err}
}
