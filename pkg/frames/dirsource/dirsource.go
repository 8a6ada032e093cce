// Package dirsource provides a frames.Provider that replays still images from
// a directory in lexical order, looping at the end. It is meant for demos and
// for exercising a classifier against recorded captures.
package dirsource

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/inkvision/pkg/frames"
	"github.com/MrWong99/inkvision/pkg/types"
)

var _ frames.Provider = (*Provider)(nil)

// imageExts lists the file extensions picked up from the directory.
var imageExts = []string{".jpg", ".jpeg", ".png", ".webp"}

// Provider replays image files. It is safe for concurrent use.
type Provider struct {
	files []string

	mu   sync.Mutex
	next int
	seq  uint64
}

// New scans dir for image files. It fails if dir contains none.
func New(dir string) (*Provider, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("dirsource: read dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if slices.Contains(imageExts, strings.ToLower(filepath.Ext(e.Name()))) {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("dirsource: no images in %q", dir)
	}
	slices.Sort(files)
	return &Provider{files: files}, nil
}

// Len returns the number of images being replayed.
func (p *Provider) Len() int { return len(p.files) }

// Snapshot reads the next image.
func (p *Provider) Snapshot(ctx context.Context) (types.Frame, error) {
	if err := ctx.Err(); err != nil {
		return types.Frame{}, err
	}

	p.mu.Lock()
	path := p.files[p.next]
	p.next = (p.next + 1) % len(p.files)
	p.seq++
	seq := p.seq
	p.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return types.Frame{}, fmt.Errorf("dirsource: read %q: %w", path, err)
	}
	if len(data) == 0 {
		return types.Frame{}, errors.New("dirsource: empty image " + path)
	}
	return types.Frame{
		Data:        data,
		ContentType: mime.TypeByExtension(strings.ToLower(filepath.Ext(path))),
		Seq:         seq,
		CapturedAt:  time.Now(),
	}, nil
}
