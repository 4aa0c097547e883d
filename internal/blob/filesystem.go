package blob

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/casdoor/oss"
	"github.com/pkg/errors"
)

// FileSystem stores blobs under a local folder.
type FileSystem struct {
	Folder string
}

// NewFileSystem creates the folder if needed.
func NewFileSystem(folder string) (*FileSystem, error) {
	abs, err := filepath.Abs(folder)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get absolute path for storage folder")
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create storage folder")
	}
	return &FileSystem{Folder: abs}, nil
}

// fullPath resolves key inside Folder and rejects keys that escape it.
func (fs *FileSystem) fullPath(key string) (string, error) {
	fp := filepath.Join(fs.Folder, filepath.FromSlash(strings.TrimPrefix(key, "/")))
	if fp != fs.Folder && !strings.HasPrefix(fp, fs.Folder+string(filepath.Separator)) {
		return "", errors.Errorf("key %q escapes storage folder", key)
	}
	return fp, nil
}

func (fs *FileSystem) Get(key string) (*os.File, error) {
	fp, err := fs.fullPath(key)
	if err != nil {
		return nil, err
	}
	return os.Open(fp)
}

func (fs *FileSystem) GetStream(key string) (io.ReadCloser, error) {
	return fs.Get(key)
}

// Put writes r to a temp file and renames it into place.
func (fs *FileSystem) Put(key string, r io.Reader) (*oss.Object, error) {
	fp, err := fs.fullPath(key)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(fp), 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create directories for file path")
	}
	tmp, err := os.CreateTemp(filepath.Dir(fp), ".upload-*")
	if err != nil {
		return nil, errors.Wrap(err, "failed to create file")
	}
	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return nil, errors.Wrap(err, "failed to copy data to file")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return nil, errors.Wrap(err, "failed to close file")
	}
	if err := os.Rename(tmp.Name(), fp); err != nil {
		_ = os.Remove(tmp.Name())
		return nil, errors.Wrap(err, "failed to move file into place")
	}
	info, err := os.Stat(fp)
	if err != nil {
		return nil, err
	}
	mt := info.ModTime()
	return &oss.Object{Path: key, Name: filepath.Base(fp), LastModified: &mt, StorageInterface: fs}, nil
}

func (fs *FileSystem) Delete(key string) error {
	fp, err := fs.fullPath(key)
	if err != nil {
		return err
	}
	return os.Remove(fp)
}

func (fs *FileSystem) List(prefix string) ([]*oss.Object, error) {
	root, err := fs.fullPath(prefix)
	if err != nil {
		return nil, err
	}
	var objects []*oss.Object
	err = filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) && p == root {
				return filepath.SkipDir
			}
			return err
		}
		if info.IsDir() || strings.HasPrefix(info.Name(), ".upload-") {
			return nil
		}
		rel, err := filepath.Rel(fs.Folder, p)
		if err != nil {
			return err
		}
		mt := info.ModTime()
		objects = append(objects, &oss.Object{
			Path:             filepath.ToSlash(rel),
			Name:             info.Name(),
			LastModified:     &mt,
			StorageInterface: fs,
		})
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list files")
	}
	return objects, nil
}

// GetEndpoint is "/" for local storage.
func (fs *FileSystem) GetEndpoint() string {
	return "/"
}

// GetURL returns the key; files are served through the API.
func (fs *FileSystem) GetURL(key string) (string, error) {
	return key, nil
}
