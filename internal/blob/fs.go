package blob

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const metaSuffix = ".meta"

// Filesystem implements Store on a local directory. Keys map to relative
// file paths under the root; a sidecar file (key + metaSuffix) carries the
// content type and user metadata. Not safe for concurrent writers beyond
// per-file creation.
type Filesystem struct {
	root string
}

var _ Store = (*Filesystem)(nil)

// NewFilesystem returns a filesystem blob store rooted at path, creating
// the directory if needed.
func NewFilesystem(root string) (*Filesystem, error) {
	if root == "" {
		root = "./archivedata"
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return &Filesystem{root: root}, nil
}

func (f *Filesystem) Driver() Driver { return DriverFilesystem }

// cleanKey normalizes a key and rejects absolute paths and traversal.
func cleanKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("blob key must not be empty")
	}
	if strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("blob key %q must be relative", key)
	}
	clean := filepath.ToSlash(filepath.Clean(key))
	if clean == ".." || strings.HasPrefix(clean, "../") || strings.Contains(clean, "/../") {
		return "", fmt.Errorf("blob key %q escapes the store root", key)
	}
	return clean, nil
}

// resolve maps a key to its data file path under the root.
func (f *Filesystem) resolve(key string) (string, error) {
	clean, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(f.root, filepath.FromSlash(clean)), nil
}

// sidecar is the JSON document stored next to each data file.
type sidecar struct {
	ContentType string            `json:"content_type,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Checksum    string            `json:"checksum_sha256"`
	SizeBytes   int64             `json:"size_bytes"`
	StoredAt    time.Time         `json:"stored_at"`
}

func (f *Filesystem) Put(_ context.Context, key string, r io.Reader, opts PutOptions) (Info, error) {
	dataPath, err := f.resolve(key)
	if err != nil {
		return Info{}, err
	}
	if _, err := os.Stat(dataPath); err == nil {
		return Info{}, fmt.Errorf("blob %s already exists", key)
	}
	if err := os.MkdirAll(filepath.Dir(dataPath), 0o750); err != nil {
		return Info{}, err
	}
	side, err := writeBlobFile(dataPath, r, opts)
	if err != nil {
		return Info{}, err
	}
	return f.infoFromSidecar(key, side), nil
}

// writeBlobFile streams r into a temp file next to dataPath, computing the
// checksum and size in one pass, then moves data and sidecar into place.
func writeBlobFile(dataPath string, r io.Reader, opts PutOptions) (sidecar, error) {
	tmp, err := os.CreateTemp(filepath.Dir(dataPath), ".pending-*")
	if err != nil {
		return sidecar{}, err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	digest := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, digest), r)
	if err != nil {
		_ = tmp.Close()
		return sidecar{}, err
	}
	if err := tmp.Close(); err != nil {
		return sidecar{}, err
	}
	if err := os.Rename(tmp.Name(), dataPath); err != nil {
		return sidecar{}, err
	}
	side := sidecar{
		ContentType: opts.ContentType,
		Metadata:    cloneMetadata(opts.Metadata),
		Checksum:    hex.EncodeToString(digest.Sum(nil)),
		SizeBytes:   size,
		StoredAt:    time.Now().UTC(),
	}
	encoded, err := json.Marshal(side)
	if err != nil {
		return sidecar{}, err
	}
	if err := os.WriteFile(dataPath+metaSuffix, encoded, 0o600); err != nil {
		return sidecar{}, err
	}
	return side, nil
}

func (f *Filesystem) Get(_ context.Context, key string) (Info, io.ReadCloser, error) {
	dataPath, err := f.resolve(key)
	if err != nil {
		return Info{}, nil, err
	}
	file, err := os.Open(dataPath) // #nosec G304 -- path is sanitized against traversal above
	if err != nil {
		return Info{}, nil, err
	}
	side, err := readSidecar(dataPath + metaSuffix)
	if err != nil {
		_ = file.Close()
		return Info{}, nil, err
	}
	return f.infoFromSidecar(key, side), file, nil
}

func (f *Filesystem) Head(_ context.Context, key string) (Info, error) {
	dataPath, err := f.resolve(key)
	if err != nil {
		return Info{}, err
	}
	side, err := readSidecar(dataPath + metaSuffix)
	if err != nil {
		return Info{}, err
	}
	return f.infoFromSidecar(key, side), nil
}

func (f *Filesystem) Delete(_ context.Context, key string) (bool, error) {
	dataPath, err := f.resolve(key)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(dataPath); os.IsNotExist(err) {
		return false, nil
	}
	if err := os.Remove(dataPath); err != nil {
		return false, err
	}
	_ = os.Remove(dataPath + metaSuffix)
	return true, nil
}

func (f *Filesystem) List(_ context.Context, prefix string) ([]Info, error) {
	var infos []Info
	walk := func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !strings.HasSuffix(path, metaSuffix) {
			return nil
		}
		rel, err := filepath.Rel(f.root, strings.TrimSuffix(path, metaSuffix))
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if prefix != "" && !strings.HasPrefix(key, prefix) {
			return nil
		}
		side, err := readSidecar(path)
		if err != nil {
			return err
		}
		infos = append(infos, f.infoFromSidecar(key, side))
		return nil
	}
	if err := filepath.WalkDir(f.root, walk); err != nil {
		return nil, err
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

// PresignURL returns a pseudo URL for local development; there is no auth.
func (f *Filesystem) PresignURL(_ context.Context, key string, opts SignedURLOptions) (string, error) {
	if opts.Method != "" && !strings.EqualFold(opts.Method, "GET") {
		return "", ErrUnsupported
	}
	return f.pseudoURL(key), nil
}

func (f *Filesystem) pseudoURL(key string) string {
	u := url.URL{Scheme: "file", Path: "/" + key}
	return u.String()
}

func (f *Filesystem) infoFromSidecar(key string, side sidecar) Info {
	return Info{
		Key:          key,
		Size:         side.SizeBytes,
		ContentType:  side.ContentType,
		ETag:         side.Checksum,
		Metadata:     cloneMetadata(side.Metadata),
		LastModified: side.StoredAt,
		URL:          f.pseudoURL(key),
	}
}

func readSidecar(path string) (sidecar, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path derives from a sanitized key
	if err != nil {
		return sidecar{}, err
	}
	var side sidecar
	if err := json.Unmarshal(data, &side); err != nil {
		return sidecar{}, err
	}
	return side, nil
}
