// Package prefs persists small boolean flags between runs.
//
// Flags live in a YAML document. Every read and write holds an advisory
// file lock on "<path>.lock", so concurrent processes never interleave a
// read-modify-write. Writes replace the document atomically.
package prefs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gofrs/flock"
	"gopkg.in/yaml.v3"
)

// KeyToDoListSaved records that the store holds the fetched list.
const KeyToDoListSaved = "hasToDoListSaved"

const lockRetryDelay = 20 * time.Millisecond

// File is a YAML-backed flag store.
type File struct {
	path string
	lock *flock.Flock
}

// Open returns a flag store at path. The file is created on first write.
func Open(path string) *File {
	return &File{path: path, lock: flock.New(path + ".lock")}
}

// Path returns the YAML file path.
func (f *File) Path() string {
	return f.path
}

// Bool returns the flag value; unset flags are false.
func (f *File) Bool(ctx context.Context, key string) (bool, error) {
	var value bool
	err := f.withLock(ctx, func() error {
		flags, err := f.read()
		if err != nil {
			return err
		}
		value = flags[key]
		return nil
	})
	return value, err
}

// SetBool stores the flag value.
func (f *File) SetBool(ctx context.Context, key string, value bool) error {
	return f.withLock(ctx, func() error {
		flags, err := f.read()
		if err != nil {
			return err
		}
		if current, ok := flags[key]; ok && current == value {
			return nil
		}
		flags[key] = value
		return f.write(flags)
	})
}

// Keys returns the stored flag names in sorted order.
func (f *File) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	err := f.withLock(ctx, func() error {
		flags, err := f.read()
		if err != nil {
			return err
		}
		for k := range flags {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return nil
	})
	return keys, err
}

func (f *File) withLock(ctx context.Context, fn func() error) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("create prefs directory: %w", err)
	}
	ok, err := f.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("lock prefs: %w", err)
	}
	if !ok {
		return fmt.Errorf("lock prefs: %s is busy", f.path)
	}
	defer f.lock.Unlock()
	return fn()
}

func (f *File) read() (map[string]bool, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]bool{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read prefs: %w", err)
	}

	flags := map[string]bool{}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	if err := decoder.Decode(&flags); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse prefs %s: %w", f.path, err)
	}
	if flags == nil {
		flags = map[string]bool{}
	}
	return flags, nil
}

func (f *File) write(flags map[string]bool) error {
	data, err := yaml.Marshal(flags)
	if err != nil {
		return fmt.Errorf("encode prefs: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write prefs: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace prefs: %w", err)
	}
	return nil
}
