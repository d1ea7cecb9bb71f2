// Package docsource loads documents for review from memory or a directory
// of text, markdown and PDF files.
package docsource

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"mercator-hq/docguard/pkg/model"
)

// Document formats.
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
	FormatPDF      = "pdf"
)

// DefaultMaxFileSize caps documents read from disk (10MB).
const DefaultMaxFileSize int64 = 10 * 1024 * 1024

var formatsByExt = map[string]string{
	".txt":      FormatText,
	".text":     FormatText,
	".md":       FormatMarkdown,
	".markdown": FormatMarkdown,
	".pdf":      FormatPDF,
}

// Provider resolves a document ID to its content.
type Provider interface {
	Load(ctx context.Context, id string) (*model.Document, error)
	List(ctx context.Context) ([]string, error)
}

// MemoryProvider serves documents registered with Put.
type MemoryProvider struct {
	mu   sync.RWMutex
	docs map[string]*model.Document
}

// NewMemoryProvider creates a provider holding docs.
func NewMemoryProvider(docs ...*model.Document) *MemoryProvider {
	p := &MemoryProvider{docs: make(map[string]*model.Document)}
	for _, d := range docs {
		p.Put(d)
	}
	return p
}

// Put registers or replaces a document.
func (p *MemoryProvider) Put(doc *model.Document) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c := *doc
	if c.Format == "" {
		c.Format = FormatText
	}
	if c.UploadedAt.IsZero() {
		c.UploadedAt = time.Now().UTC()
	}
	p.docs[doc.ID] = &c
}

// Load returns a copy of the document.
func (p *MemoryProvider) Load(ctx context.Context, id string) (*model.Document, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	d, ok := p.docs[id]
	if !ok {
		return nil, fmt.Errorf("document %q: %w", id, model.ErrNotFound)
	}
	c := *d
	return &c, nil
}

// List returns the registered IDs, sorted.
func (p *MemoryProvider) List(ctx context.Context) ([]string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ids := make([]string, 0, len(p.docs))
	for id := range p.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// DirProvider serves files under a root directory. A document ID is the
// slash-separated path relative to the root.
type DirProvider struct {
	root        string
	maxFileSize int64
	logger      *slog.Logger
}

// NewDirProvider creates a provider rooted at dir.
func NewDirProvider(dir string, maxFileSize int64, logger *slog.Logger) (*DirProvider, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("document directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("document directory %q is not a directory", dir)
	}
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DirProvider{
		root:        dir,
		maxFileSize: maxFileSize,
		logger:      logger.With("component", "docsource.dir"),
	}, nil
}

// Load reads and decodes the document. Unreadable, oversized, unsupported
// or non-UTF-8 files yield a *model.InputError.
func (p *DirProvider) Load(ctx context.Context, id string) (*model.Document, error) {
	if !filepath.IsLocal(filepath.FromSlash(id)) {
		return nil, model.NewInputError(id, "document id escapes the document directory", nil)
	}
	path := filepath.Join(p.root, filepath.FromSlash(id))

	format, ok := formatsByExt[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return nil, model.NewInputError(id, fmt.Sprintf("unsupported document format %q", filepath.Ext(path)), nil)
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("document %q: %w", id, model.ErrNotFound)
		}
		return nil, model.NewInputError(id, "failed to stat document", err)
	}
	if info.Size() > p.maxFileSize {
		return nil, model.NewInputError(id, fmt.Sprintf("document exceeds maximum size (%d > %d bytes)", info.Size(), p.maxFileSize), nil)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, model.NewInputError(id, "failed to read document", err)
	}

	content := string(data)
	if format == FormatPDF {
		content, err = PDFText(data)
		if err != nil {
			return nil, model.NewInputError(id, "failed to extract PDF text", err)
		}
	}
	if !utf8.ValidString(content) {
		return nil, model.NewInputError(id, "document is not valid UTF-8", nil)
	}

	p.logger.Debug("document loaded", "document_id", id, "format", format, "bytes", len(content))

	return &model.Document{
		ID:         id,
		RawContent: content,
		Format:     format,
		UploadedAt: info.ModTime().UTC(),
	}, nil
}

// List walks the root for supported files.
func (p *DirProvider) List(ctx context.Context) ([]string, error) {
	var ids []string
	err := filepath.WalkDir(p.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != p.root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if _, ok := formatsByExt[strings.ToLower(filepath.Ext(path))]; !ok {
			return nil
		}
		rel, err := filepath.Rel(p.root, path)
		if err != nil {
			return err
		}
		ids = append(ids, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}

// PDFText extracts the plain text of a PDF. Malformed input that makes the
// parser panic is reported as an error.
func PDFText(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed PDF: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}
