// Package tokenauth supplies a file-backed credentials provider for
// apiclient. Tokens live in a JSON file guarded by a lock file so several
// processes sharing one session never interleave a refresh with a write.
package tokenauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/oauth2"
)

// lockRetryDelay is how often a blocked lock attempt is retried.
const lockRetryDelay = 10 * time.Millisecond

// ErrLocked is returned when the lock file could not be acquired before the
// context ended.
var ErrLocked = errors.New("tokenauth: token file is locked by another instance")

// FileStore persists an oauth2.Token as JSON.
type FileStore struct {
	path string
}

// NewFileStore returns a store writing to path. The directory is created on
// first use.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the token file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load returns the stored token, or (nil, nil) when none has been saved.
func (s *FileStore) Load(ctx context.Context) (*oauth2.Token, error) {
	unlock, err := s.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading token file '%s': %w", s.path, err)
	}

	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("unmarshalling token from '%s': %w", s.path, err)
	}
	return &tok, nil
}

// Save replaces the stored token.
func (s *FileStore) Save(ctx context.Context, tok *oauth2.Token) error {
	if tok == nil {
		return errors.New("tokenauth: cannot save a nil token")
	}

	unlock, err := s.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling token: %w", err)
	}

	// user read/write only
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("writing token file '%s': %w", s.path, err)
	}
	return nil
}

// Clear removes the stored token. Clearing an empty store is not an error.
func (s *FileStore) Clear(ctx context.Context) error {
	unlock, err := s.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting token file '%s': %w", s.path, err)
	}
	return nil
}

func (s *FileStore) lock(ctx context.Context) (func(), error) {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating token directory '%s': %w", dir, err)
	}

	fileLock := flock.New(s.path + ".lock")
	locked, err := fileLock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", ErrLocked, err)
		}
		return nil, fmt.Errorf("acquiring file lock for '%s': %w", s.path, err)
	}
	if !locked {
		return nil, ErrLocked
	}
	return func() { _ = fileLock.Unlock() }, nil
}
