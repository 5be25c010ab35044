// Package assets stores background images on disk and serves them.
package assets

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// DefaultMaxBytes bounds one upload.
const DefaultMaxBytes = 10 << 20

// maxPixels bounds the decoded size of an image.
const maxPixels = 8192 * 8192

var (
	ErrTooLarge    = errors.New("image too large")
	ErrUnsupported = errors.New("unsupported image format")
)

var extensions = map[string]string{
	"png":  ".png",
	"jpeg": ".jpg",
	"gif":  ".gif",
	"webp": ".webp",
	"bmp":  ".bmp",
}

// Store writes validated images under Dir and names them BaseURL/<file>.
type Store struct {
	Dir      string
	BaseURL  string
	MaxBytes int64
}

// New returns a store. A non-positive maxBytes uses DefaultMaxBytes.
func New(dir, baseURL string, maxBytes int64) *Store {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Store{Dir: dir, BaseURL: strings.TrimRight(baseURL, "/"), MaxBytes: maxBytes}
}

// Upload validates and stores an image, returning its url. Stored files get
// random names; the client's name is not kept.
func (s *Store) Upload(ctx context.Context, _ string, r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.MaxBytes+1))
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	if int64(len(data)) > s.MaxBytes {
		return "", ErrTooLarge
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	format, err := Sniff(data)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create asset dir: %w", err)
	}
	file := uuid.NewString() + extensions[format]
	if err := os.WriteFile(filepath.Join(s.Dir, file), data, 0o644); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}
	return s.BaseURL + "/" + file, nil
}

// Sniff returns the image format of data after checking its header
// decodes and its dimensions are sane.
func Sniff(data []byte) (string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	if _, ok := extensions[format]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupported, format)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width*cfg.Height > maxPixels {
		return "", fmt.Errorf("%w: %dx%d", ErrTooLarge, cfg.Width, cfg.Height)
	}
	return format, nil
}

// Handler serves uploads at POST uploadPath and the stored files below the
// store's BaseURL.
type Handler struct {
	store      *Store
	secret     string
	uploadPath string
	logger     *slog.Logger
	files      http.Handler
}

// NewHandler builds the HTTP surface. An empty secret accepts every upload.
func NewHandler(store *Store, uploadPath, secret string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	prefix := store.BaseURL + "/"
	return &Handler{
		store:      store,
		secret:     secret,
		uploadPath: uploadPath,
		logger:     logger,
		files:      http.StripPrefix(prefix, http.FileServer(http.Dir(store.Dir))),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/healthcheck":
		w.WriteHeader(http.StatusOK)
	case r.URL.Path == h.uploadPath && r.Method == http.MethodPost:
		h.upload(w, r)
	case strings.HasPrefix(r.URL.Path, h.store.BaseURL+"/") && r.Method == http.MethodGet:
		h.files.ServeHTTP(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.store.MaxBytes+1<<20)
	if err := r.ParseMultipartForm(h.store.MaxBytes); err != nil {
		http.Error(w, "malformed upload", http.StatusBadRequest)
		return
	}
	if h.secret != "" && r.FormValue("secret") != h.secret {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	url, err := h.store.Upload(r.Context(), header.Filename, file)
	switch {
	case errors.Is(err, ErrTooLarge):
		http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
		return
	case errors.Is(err, ErrUnsupported):
		http.Error(w, err.Error(), http.StatusUnsupportedMediaType)
		return
	case err != nil:
		h.logger.Error("Storing upload failed", "error", err)
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}
	h.logger.Info("Stored background", "name", header.Filename, "url", url)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]string{"url": url})
}
