package identity

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/zym9863/Dream-s-Exit/internal/localstate"
)

// FileProvider persists the identity as a single line in a file.
type FileProvider struct {
	mu   sync.Mutex
	path string
	log  zerolog.Logger
}

// NewFileProvider stores the identity at path. An empty path means no
// persistent storage is available.
func NewFileProvider(path string, log zerolog.Logger) *FileProvider {
	return &FileProvider{path: path, log: log}
}

// Default returns a FileProvider rooted in the local state directory, or an
// anonymous one when that directory cannot be resolved.
func Default(log zerolog.Logger) *FileProvider {
	p, err := localstate.IdentityPath()
	if err != nil {
		log.Warn().Err(err).Msg("local state unavailable; using anonymous identity")
		p = ""
	}
	return NewFileProvider(p, log)
}

// Path returns the backing file, empty when anonymous.
func (p *FileProvider) Path() string { return p.path }

func (p *FileProvider) GetOrCreate() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.path == "" {
		return ""
	}

	b, err := os.ReadFile(p.path)
	switch {
	case err == nil:
		if id := strings.TrimSpace(string(b)); id != "" {
			return id
		}
	case !errors.Is(err, fs.ErrNotExist):
		p.log.Warn().Err(err).Str("path", p.path).Msg("identity unreadable; using anonymous identity")
		return ""
	}
	return p.persist(newID())
}

func (p *FileProvider) Rotate() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.path == "" {
		return ""
	}
	return p.persist(newID())
}

// persist writes id and returns it, or "" when the write fails.
func (p *FileProvider) persist(id string) string {
	if err := os.MkdirAll(filepath.Dir(p.path), 0o700); err != nil {
		p.log.Warn().Err(err).Str("path", p.path).Msg("identity not persisted")
		return ""
	}
	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(id+"\n"), 0o600); err != nil {
		p.log.Warn().Err(err).Str("path", p.path).Msg("identity not persisted")
		return ""
	}
	if err := os.Rename(tmp, p.path); err != nil {
		_ = os.Remove(tmp)
		p.log.Warn().Err(err).Str("path", p.path).Msg("identity not persisted")
		return ""
	}
	return id
}
