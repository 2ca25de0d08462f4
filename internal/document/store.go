package document

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/sunmax/ledger/internal/observability"
)

const (
	// DefaultMinBytes is the size below which a stored file is treated as broken.
	DefaultMinBytes = 1000
	// DefaultWriteTimeout bounds the file write of one render.
	DefaultWriteTimeout = 10 * time.Second

	renderAttempts = 3
)

// ErrInvalidNumber is returned for document numbers that cannot name a file.
var ErrInvalidNumber = errors.New("document: invalid number")

// Loader reads the committed state of a document. It must wrap ErrNotFound
// when the source record does not exist.
type Loader func(ctx context.Context, number string) (Document, error)

// StoreConfig wires a Store.
type StoreConfig struct {
	Dir          string
	MinBytes     int64
	WriteTimeout time.Duration
	Renderer     *Renderer
	Logger       *slog.Logger
	Metrics      *observability.Metrics
}

// File describes a stored document.
type File struct {
	Path        string
	Size        int64
	ModTime     time.Time
	Regenerated bool
	Fallback    bool
}

// Store keeps rendered documents under {Dir}/{folder}/{number}.pdf and
// regenerates them lazily when they are missing or undersized.
type Store struct {
	dir          string
	minBytes     int64
	writeTimeout time.Duration
	renderer     *Renderer
	logger       *slog.Logger
	metrics      *observability.Metrics

	group       singleflight.Group
	mu          sync.Mutex
	generations map[string]uint64
}

// NewStore constructs a Store.
func NewStore(cfg StoreConfig) *Store {
	dir := strings.TrimSpace(cfg.Dir)
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "ledger-documents")
	}
	minBytes := cfg.MinBytes
	if minBytes <= 0 {
		minBytes = DefaultMinBytes
	}
	timeout := cfg.WriteTimeout
	if timeout <= 0 {
		timeout = DefaultWriteTimeout
	}
	renderer := cfg.Renderer
	if renderer == nil {
		renderer = NewRenderer(RendererConfig{})
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		dir:          dir,
		minBytes:     minBytes,
		writeTimeout: timeout,
		renderer:     renderer,
		logger:       logger,
		metrics:      cfg.Metrics,
		generations:  make(map[string]uint64),
	}
}

// Path returns the file location for a document.
func (s *Store) Path(kind Kind, number string) (string, error) {
	if !kind.Valid() {
		return "", fmt.Errorf("%w: unknown kind %q", ErrInvalidNumber, kind)
	}
	number = strings.TrimSpace(number)
	if number == "" || strings.ContainsAny(number, `/\`) || number == "." || number == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidNumber, number)
	}
	return filepath.Join(s.dir, kind.Folder(), number+".pdf"), nil
}

// Ensure returns the stored file, rendering it first when it is missing or
// smaller than the configured threshold.
func (s *Store) Ensure(ctx context.Context, kind Kind, number string, load Loader) (File, error) {
	path, err := s.Path(kind, number)
	if err != nil {
		return File{}, err
	}
	if info, err := os.Stat(path); err == nil && info.Size() >= s.minBytes {
		s.metrics.ObserveDocument(observability.DocumentCached)
		return File{Path: path, Size: info.Size(), ModTime: info.ModTime()}, nil
	}
	return s.regenerate(ctx, kind, number, path, load)
}

// Regenerate renders the document unconditionally.
func (s *Store) Regenerate(ctx context.Context, kind Kind, number string, load Loader) (File, error) {
	path, err := s.Path(kind, number)
	if err != nil {
		return File{}, err
	}
	return s.regenerate(ctx, kind, number, path, load)
}

// Read ensures the document and returns its bytes.
func (s *Store) Read(ctx context.Context, kind Kind, number string, load Loader) ([]byte, File, error) {
	file, err := s.Ensure(ctx, kind, number, load)
	if err != nil {
		return nil, File{}, err
	}
	data, err := os.ReadFile(file.Path)
	if err != nil {
		return nil, File{}, fmt.Errorf("document: read %s: %w", file.Path, err)
	}
	file.Size = int64(len(data))
	return data, file, nil
}

// Invalidate marks the stored file stale and removes it. Renders already in
// flight for the same document notice the change and start over.
func (s *Store) Invalidate(kind Kind, number string) error {
	path, err := s.Path(kind, number)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generations[path]++
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("document: remove %s: %w", path, err)
	}
	return nil
}

// Remove deletes the stored file for a document that no longer exists.
// The bumped generation is kept so a render that started before the delete
// cannot write the file back.
func (s *Store) Remove(kind Kind, number string) error {
	return s.Invalidate(kind, number)
}

func (s *Store) regenerate(ctx context.Context, kind Kind, number, path string, load Loader) (File, error) {
	if load == nil {
		return File{}, fmt.Errorf("document: no loader for %s", kind)
	}
	// Concurrent requests for one path share a single render. The render
	// itself is detached from the first caller's cancellation.
	build := context.WithoutCancel(ctx)
	resultChan := s.group.DoChan(path, func() (interface{}, error) {
		return s.build(build, kind, number, path, load)
	})
	select {
	case <-ctx.Done():
		return File{}, ctx.Err()
	case res := <-resultChan:
		if res.Err != nil {
			return File{}, res.Err
		}
		return res.Val.(File), nil
	}
}

func (s *Store) build(ctx context.Context, kind Kind, number, path string, load Loader) (File, error) {
	for attempt := 1; attempt <= renderAttempts; attempt++ {
		gen := s.generation(path)
		doc, err := load(ctx, number)
		if err != nil {
			return File{}, err
		}
		doc.Kind = kind
		data, fallback, err := s.renderer.RenderOrFallback(doc)
		if err != nil {
			return File{}, err
		}
		if fallback {
			s.logger.Warn("document rendered as error page", slog.String("kind", string(kind)), slog.String("number", number))
		}
		tmp, err := s.writeTemp(ctx, path, data)
		if err != nil {
			return File{}, err
		}
		committed, err := s.commit(path, tmp, gen)
		if err != nil {
			return File{}, err
		}
		if !committed {
			s.logger.Debug("document changed during render", slog.String("path", path), slog.Int("attempt", attempt))
			continue
		}
		if fallback {
			s.metrics.ObserveDocument(observability.DocumentFallback)
		} else {
			s.metrics.ObserveDocument(observability.DocumentRendered)
		}
		return File{Path: path, Size: int64(len(data)), ModTime: time.Now(), Regenerated: true, Fallback: fallback}, nil
	}
	return File{}, fmt.Errorf("document: %s changed during %d renders", path, renderAttempts)
}

func (s *Store) generation(path string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generations[path]
}

// commit moves tmp into place unless the document was invalidated after gen
// was read.
func (s *Store) commit(path, tmp string, gen uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generations[path] != gen {
		_ = os.Remove(tmp)
		return false, nil
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return false, fmt.Errorf("document: commit %s: %w", path, err)
	}
	return true, nil
}

type writeResult struct {
	tmp string
	err error
}

// writeTemp writes data next to path, bounded by the write timeout.
func (s *Store) writeTemp(ctx context.Context, path string, data []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.writeTimeout)
	defer cancel()

	done := make(chan writeResult, 1)
	go func() {
		tmp, err := writeFile(filepath.Dir(path), filepath.Base(path), data)
		done <- writeResult{tmp: tmp, err: err}
	}()

	select {
	case <-ctx.Done():
		go func() {
			if res := <-done; res.tmp != "" {
				_ = os.Remove(res.tmp)
			}
		}()
		return "", fmt.Errorf("document: write %s: %w", path, ctx.Err())
	case res := <-done:
		return res.tmp, res.err
	}
}

func writeFile(dir, name string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("document: mkdir %s: %w", dir, err)
	}
	f, err := os.CreateTemp(dir, "."+name+".*")
	if err != nil {
		return "", fmt.Errorf("document: create temp: %w", err)
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return "", fmt.Errorf("document: write temp: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("document: close temp: %w", err)
	}
	if err := os.Chmod(tmp, 0o644); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("document: chmod temp: %w", err)
	}
	return tmp, nil
}
