// Package filerepo stores credentials in a single JSON file that survives process restarts.
package filerepo

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/jrsteele09/go-medassist-client/internal/errors"
	"github.com/jrsteele09/go-medassist-client/token"
)

var _ token.Repo = (*FileRepo)(nil)

type FileRepo struct {
	path string
	lock sync.Mutex
}

func New(path string) (*FileRepo, error) {
	if path == "" {
		return nil, errors.New("[filerepo.New] path is required")
	}
	return &FileRepo{path: path}, nil
}

func (r *FileRepo) Path() string {
	return r.path
}

func (r *FileRepo) Get(key string) (string, bool, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	items, err := r.load()
	if err != nil {
		return "", false, err
	}
	v, ok := items[key]
	return v, ok, nil
}

func (r *FileRepo) Set(key, value string) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	items, err := r.load()
	if err != nil {
		return err
	}
	items[key] = value
	return r.save(items)
}

func (r *FileRepo) Delete(keys ...string) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	items, err := r.load()
	if err != nil {
		return err
	}
	changed := false
	for _, k := range keys {
		if _, ok := items[k]; ok {
			delete(items, k)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return r.save(items)
}

func (r *FileRepo) load() (map[string]string, error) {
	data, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "[FileRepo.load] read %s", r.path)
	}
	if len(data) == 0 {
		return make(map[string]string), nil
	}
	items := make(map[string]string)
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, errors.Wrapf(errors.ErrCorruptRecord, "[FileRepo.load] %s: %v", r.path, err)
	}
	return items, nil
}

// save writes to a temp file in the same directory and renames it over the target.
func (r *FileRepo) save(items map[string]string) error {
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "[FileRepo.save] marshal")
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.Wrapf(err, "[FileRepo.save] create dir")
	}

	tmp, err := os.CreateTemp(dir, ".medassist-*.tmp")
	if err != nil {
		return errors.Wrapf(err, "[FileRepo.save] create temp file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "[FileRepo.save] chmod")
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "[FileRepo.save] write")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "[FileRepo.save] close")
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		return errors.Wrapf(err, "[FileRepo.save] rename")
	}
	return nil
}
