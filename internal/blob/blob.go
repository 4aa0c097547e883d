// Package blob stores submission file contents. Backends implement
// oss.StorageInterface so local disk, memory and S3-compatible buckets are
// interchangeable.
package blob

import (
	"bytes"
	"io"
	"path"
	"strings"

	"github.com/casdoor/oss"
	"github.com/gabriel-vasile/mimetype"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Storage is the blob backend used by the workflow service.
type Storage = oss.StorageInterface

// ErrUnsupportedProvider is returned by NewStorage for unknown providers.
var ErrUnsupportedProvider = errors.New("unsupported storage provider")

// Config selects and configures a backend.
type Config struct {
	Provider string // filesystem | memory | s3
	Folder   string
	ID       string
	Secret   string
	Region   string
	Bucket   string
	Endpoint string
}

// NewStorage builds the backend named by c.Provider. An empty provider means
// filesystem.
func NewStorage(c *Config) (Storage, error) {
	switch c.Provider {
	case "", "filesystem":
		if c.Folder == "" {
			return nil, errors.New("storage folder is required for filesystem provider")
		}
		return NewFileSystem(c.Folder)
	case "memory":
		return NewMemory(), nil
	case "s3", "minio":
		return NewS3(c)
	default:
		return nil, errors.Wrap(ErrUnsupportedProvider, c.Provider)
	}
}

// GetConfig reads the storage.* keys.
func GetConfig(v *viper.Viper) *Config {
	return &Config{
		Provider: v.GetString("storage.provider"),
		Folder:   v.GetString("storage.folder"),
		ID:       v.GetString("storage.id"),
		Secret:   v.GetString("storage.secret"),
		Region:   v.GetString("storage.region"),
		Bucket:   v.GetString("storage.bucket"),
		Endpoint: v.GetString("storage.endpoint"),
	}
}

const keyAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

const maxNameLen = 100

// Key returns a fresh storage key for a file of submissionID. Keys never
// collide, so a rejected upload cannot overwrite an existing file.
func Key(submissionID, fileName string) string {
	return path.Join("submissions", submissionID, gonanoid.MustGenerate(keyAlphabet, 12)+"-"+SanitizeName(fileName))
}

// SanitizeName reduces a client supplied file name to a safe base name.
func SanitizeName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.TrimLeft(b.String(), ".")
	if len(out) > maxNameLen {
		out = out[len(out)-maxNameLen:]
	}
	if out == "" {
		return "file"
	}
	return out
}

// sniffLen is the number of bytes read for content detection.
const sniffLen = 3072

// Sniff detects the content type of r from its leading bytes and returns a
// reader that replays them.
func Sniff(r io.Reader) (string, io.Reader, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", nil, errors.Wrap(err, "failed to read file header")
	}
	head = head[:n]
	mt := mimetype.Detect(head)
	return mt.String(), io.MultiReader(bytes.NewReader(head), r), nil
}

// Consistent reports whether sniffed content plausibly matches the declared
// type. Generic detections (octet-stream, text/plain) never contradict.
func Consistent(declared, sniffed string) bool {
	if declared == "" || sniffed == "" {
		return true
	}
	mt := mimetype.Lookup(sniffed)
	if mt == nil {
		return true
	}
	for m := mt; m != nil; m = m.Parent() {
		if m.Is(declared) {
			return true
		}
		if m.Is("application/octet-stream") {
			break
		}
	}
	base, _, _ := strings.Cut(sniffed, ";")
	switch base {
	case "application/octet-stream", "text/plain":
		return true
	case "application/zip":
		// Office documents are zip containers.
		return strings.Contains(declared, "openxmlformats") || strings.Contains(declared, "zip")
	}
	return false
}
