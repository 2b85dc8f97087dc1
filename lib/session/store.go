// Copyright 2026 The Huddle Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"filippo.io/age"
)

// GenerateIdentity creates a new age X25519 identity at path. The
// file is written with mode 0600 and its directory with 0700. It
// fails if the file already exists.
func GenerateIdentity(path string) (*age.X25519Identity, error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("session: generating identity: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("session: creating identity directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return nil, fmt.Errorf("session: creating identity file: %w", err)
	}
	_, writeErr := fmt.Fprintf(file, "# public key: %s\n%s\n", identity.Recipient(), identity)
	closeErr := file.Close()
	if err := errors.Join(writeErr, closeErr); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("session: writing identity file: %w", err)
	}
	return identity, nil
}

// LoadIdentity reads an identity written by GenerateIdentity.
func LoadIdentity(path string) (*age.X25519Identity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("session: reading identity file: %w", err)
	}
	identities, err := age.ParseIdentities(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("session: parsing identity file %s: %w", path, err)
	}
	for _, identity := range identities {
		if x25519, ok := identity.(*age.X25519Identity); ok {
			return x25519, nil
		}
	}
	return nil, fmt.Errorf("session: identity file %s has no X25519 identity", path)
}

// EnsureIdentity loads the identity at path, generating one if the
// file does not exist. created reports whether a new identity was
// written.
func EnsureIdentity(path string) (identity *age.X25519Identity, created bool, err error) {
	identity, err = LoadIdentity(path)
	if err == nil {
		return identity, false, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, false, err
	}
	identity, err = GenerateIdentity(path)
	if err != nil {
		return nil, false, err
	}
	return identity, true, nil
}

// FileStore keeps one session on disk, encrypted to an age identity.
type FileStore struct {
	path     string
	identity *age.X25519Identity
}

// NewFileStore returns a store for the session file at path, sealed
// to identity.
func NewFileStore(path string, identity *age.X25519Identity) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("session: store path is required")
	}
	if identity == nil {
		return nil, errors.New("session: store identity is required")
	}
	return &FileStore{path: path, identity: identity}, nil
}

// Path returns the session file path.
func (s *FileStore) Path() string { return s.path }

// Load decrypts and returns the stored session. Returns ErrNoSession
// when the file does not exist.
func (s *FileStore) Load() (*Session, error) {
	file, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("session: opening %s: %w", s.path, err)
	}
	defer file.Close()

	reader, err := age.Decrypt(file, s.identity)
	if err != nil {
		return nil, fmt.Errorf("session: decrypting %s: %w", s.path, err)
	}
	plaintext, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("session: reading %s: %w", s.path, err)
	}

	var session Session
	if err := json.Unmarshal(plaintext, &session); err != nil {
		return nil, fmt.Errorf("session: parsing %s: %w", s.path, err)
	}
	if err := session.validate(); err != nil {
		return nil, fmt.Errorf("%w (in %s)", err, s.path)
	}
	return &session, nil
}

// Save encrypts and writes session. The file is replaced atomically
// so a concurrent Load or file watcher never sees a partial write.
func (s *FileStore) Save(session *Session) error {
	if err := session.validate(); err != nil {
		return err
	}
	plaintext, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("session: encoding: %w", err)
	}

	var ciphertext bytes.Buffer
	writer, err := age.Encrypt(&ciphertext, s.identity.Recipient())
	if err != nil {
		return fmt.Errorf("session: encrypting: %w", err)
	}
	if _, err := writer.Write(plaintext); err != nil {
		return fmt.Errorf("session: encrypting: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("session: finalizing encryption: %w", err)
	}

	directory := filepath.Dir(s.path)
	if err := os.MkdirAll(directory, 0700); err != nil {
		return fmt.Errorf("session: creating directory %s: %w", directory, err)
	}
	temporary, err := os.CreateTemp(directory, "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("session: creating temporary file: %w", err)
	}
	temporaryPath := temporary.Name()
	_, writeErr := temporary.Write(ciphertext.Bytes())
	chmodErr := temporary.Chmod(0600)
	closeErr := temporary.Close()
	if err := errors.Join(writeErr, chmodErr, closeErr); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("session: writing %s: %w", s.path, err)
	}
	if err := os.Rename(temporaryPath, s.path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("session: replacing %s: %w", s.path, err)
	}
	return nil
}
