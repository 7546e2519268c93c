// Package web serves the browser front end: a redirect to the dev server
// while developing, the bundled single-page app otherwise.
package web

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"
)

type Mode string

const (
	Development Mode = "development"
	Production  Mode = "production"
)

// ParseMode maps APP_ENV onto a Mode. Anything but "development" is
// production.
func ParseMode(s string) Mode {
	if strings.EqualFold(strings.TrimSpace(s), string(Development)) {
		return Development
	}
	return Production
}

const indexFile = "index.html"

type Options struct {
	Mode Mode

	// DevURL is the dev-server base URL used in development mode.
	DevURL string

	// StaticDir holds the bundled front end in production mode. Files is used
	// instead when set.
	StaticDir string
	Files     fs.FS
}

// Handler returns the front-end handler for opts.Mode. It never serves /api/
// paths; those belong to the API mux.
func Handler(opts Options) (http.Handler, error) {
	if opts.Mode == Development {
		if opts.DevURL == "" {
			return nil, errors.New("web: DevURL is required in development mode")
		}
		return redirect(strings.TrimRight(opts.DevURL, "/")), nil
	}

	fsys := opts.Files
	if fsys == nil {
		if opts.StaticDir == "" {
			return nil, errors.New("web: StaticDir is required in production mode")
		}
		fsys = os.DirFS(opts.StaticDir)
	}
	return spa(fsys), nil
}

func redirect(base string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, base+r.URL.Path, http.StatusFound)
	})
}

// spa serves existing files as-is and index.html for every other path so the
// client-side router can resolve it.
func spa(fsys fs.FS) http.Handler {
	files := http.FileServerFS(fsys)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}

		name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
		if name != "" && name != indexFile {
			if st, err := fs.Stat(fsys, name); err == nil && !st.IsDir() {
				files.ServeHTTP(w, r)
				return
			}
		}
		if _, err := fs.Stat(fsys, indexFile); err != nil {
			http.NotFound(w, r)
			return
		}
		r2 := new(http.Request)
		*r2 = *r
		u := *r.URL
		u.Path, u.RawPath = "/", ""
		r2.URL = &u
		http.ServeFileFS(w, r2, fsys, indexFile)
	})
}
