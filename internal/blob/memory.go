package blob

import (
	"bytes"
	"io"
	"os"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/casdoor/oss"
	"github.com/pkg/errors"
)

type memObject struct {
	data     []byte
	modified time.Time
}

// Memory keeps blobs in process memory. Used by tests and ephemeral servers.
type Memory struct {
	mu      sync.RWMutex
	objects map[string]memObject
}

func NewMemory() *Memory {
	return &Memory{objects: make(map[string]memObject)}
}

func cleanKey(key string) string {
	return strings.TrimPrefix(path.Clean("/"+key), "/")
}

func (m *Memory) load(key string) (memObject, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[cleanKey(key)]
	if !ok {
		return memObject{}, errors.Wrap(os.ErrNotExist, key)
	}
	return obj, nil
}

// Get copies the blob into a temporary file; the caller removes it.
func (m *Memory) Get(key string) (*os.File, error) {
	obj, err := m.load(key)
	if err != nil {
		return nil, err
	}
	f, err := os.CreateTemp("", "blob-*")
	if err != nil {
		return nil, err
	}
	if _, err := f.Write(obj.data); err != nil {
		_ = f.Close()
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		_ = f.Close()
		return nil, err
	}
	return f, nil
}

func (m *Memory) GetStream(key string) (io.ReadCloser, error) {
	obj, err := m.load(key)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

func (m *Memory) Put(key string, r io.Reader) (*oss.Object, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read data")
	}
	now := time.Now()
	key = cleanKey(key)
	m.mu.Lock()
	m.objects[key] = memObject{data: data, modified: now}
	m.mu.Unlock()
	return &oss.Object{Path: key, Name: path.Base(key), LastModified: &now, StorageInterface: m}, nil
}

func (m *Memory) Delete(key string) error {
	key = cleanKey(key)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; !ok {
		return errors.Wrap(os.ErrNotExist, key)
	}
	delete(m.objects, key)
	return nil
}

func (m *Memory) List(prefix string) ([]*oss.Object, error) {
	prefix = cleanKey(prefix)
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*oss.Object
	for key, obj := range m.objects {
		if prefix != "" && key != prefix && !strings.HasPrefix(key, prefix+"/") {
			continue
		}
		mt := obj.modified
		out = append(out, &oss.Object{Path: key, Name: path.Base(key), LastModified: &mt, StorageInterface: m})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (m *Memory) GetEndpoint() string {
	return "memory://"
}

func (m *Memory) GetURL(key string) (string, error) {
	return "memory://" + cleanKey(key), nil
}

// Len reports the number of stored blobs.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
