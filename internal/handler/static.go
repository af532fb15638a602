package handler

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"

	"media-fallback-proxy/internal/config"
)

// StaticHandler serves the local public asset tree. It is the normal serving
// path that intercepted requests fall through to.
type StaticHandler struct {
	fsys fs.FS
}

// NewStaticHandler creates a StaticHandler rooted at <work_dir>/<public_dir>.
func NewStaticHandler(cfg *config.Config) *StaticHandler {
	return NewStaticHandlerFS(os.DirFS(filepath.Join(cfg.Assets.WorkDir, cfg.Assets.PublicDir)))
}

// NewStaticHandlerFS creates a StaticHandler over an arbitrary filesystem.
func NewStaticHandlerFS(fsys fs.FS) *StaticHandler {
	return &StaticHandler{fsys: fsys}
}

// Serve writes the file for the request path, or index.html for a directory.
// Missing files yield 404.
func (h *StaticHandler) Serve(c echo.Context) error {
	name := strings.TrimPrefix(path.Clean("/"+c.Request().URL.Path), "/")
	if name == "" {
		name = "."
	}
	return c.FileFS(name, h.fsys)
}
