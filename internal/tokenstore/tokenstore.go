// Package tokenstore keeps GitLab access tokens in a local file, encrypted
// with a key derived from a passphrase.
//
// The file holds one key=value line per entry. Two reserved lines carry the
// scrypt salt and a sealed check value that detects a wrong passphrase;
// every other line maps "baseURL|projectID" to a sealed token.
package tokenstore

import (
	"bufio"
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"
)

const (
	saltKey  = "@salt"
	checkKey = "@check"

	checkValue = "checksheet-token-store"

	saltSize  = 16
	nonceSize = 24
	keySize   = 32

	// scrypt cost parameters.
	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
)

var (
	// ErrNoPassphrase is returned when the store is opened with an empty
	// passphrase.
	ErrNoPassphrase = errors.New("token store passphrase is empty")
	// ErrWrongPassphrase is returned when the passphrase does not open the
	// store.
	ErrWrongPassphrase = errors.New("wrong token store passphrase")
	// ErrNotFound is returned by Get and Delete for unknown entries.
	ErrNotFound = errors.New("token not found")
)

var encoding = base64.RawStdEncoding

// Entry identifies one stored token.
type Entry struct {
	BaseURL   string
	ProjectID string
}

// Key returns the store key of a GitLab project.
func Key(baseURL, projectID string) string {
	return strings.TrimRight(baseURL, "/") + "|" + projectID
}

// Store is an opened token file. It is not safe for concurrent use.
type Store struct {
	path    string
	salt    []byte
	key     [keySize]byte
	entries map[string]string
	logger  *slog.Logger
}

// Open reads the store at path, creating an empty one in memory when the
// file does not exist. Entries that cannot be decoded or decrypted are
// dropped.
func Open(path, passphrase string, logger *slog.Logger) (*Store, error) {
	if passphrase == "" {
		return nil, ErrNoPassphrase
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	s := &Store{path: path, entries: make(map[string]string), logger: logger}

	lines, err := readLines(path)
	if err != nil {
		return nil, err
	}

	if raw, ok := lines[saltKey]; ok {
		salt, err := encoding.DecodeString(raw)
		if err != nil || len(salt) != saltSize {
			return nil, fmt.Errorf("token store %s: malformed salt", path)
		}
		s.salt = salt
	} else {
		s.salt = make([]byte, saltSize)
		if _, err := rand.Read(s.salt); err != nil {
			return nil, fmt.Errorf("failed to generate salt: %w", err)
		}
	}
	delete(lines, saltKey)

	if err := s.deriveKey(passphrase); err != nil {
		return nil, err
	}

	if raw, ok := lines[checkKey]; ok {
		plain, err := s.open(raw)
		if err != nil || plain != checkValue {
			return nil, ErrWrongPassphrase
		}
	}
	delete(lines, checkKey)

	for k, v := range lines {
		if _, err := s.open(v); err != nil {
			logger.Debug("dropping unreadable token entry", "key", k, "error", err)
			continue
		}
		s.entries[k] = v
	}
	return s, nil
}

func (s *Store) deriveKey(passphrase string) error {
	key, err := scrypt.Key([]byte(passphrase), s.salt, scryptN, scryptR, scryptP, keySize)
	if err != nil {
		return fmt.Errorf("failed to derive key: %w", err)
	}
	copy(s.key[:], key)
	return nil
}

// readLines parses key=value lines. Blank lines, comments and lines without
// a separator are skipped. A missing file yields no lines.
func readLines(path string) (map[string]string, error) {
	lines := make(map[string]string)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return lines, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token store: %w", err)
	}

	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		i := strings.LastIndex(line, "=")
		if i <= 0 {
			continue
		}
		lines[line[:i]] = line[i+1:]
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read token store: %w", err)
	}
	return lines, nil
}

func (s *Store) seal(plain string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	box := secretbox.Seal(nonce[:], []byte(plain), &nonce, &s.key)
	return encoding.EncodeToString(box), nil
}

func (s *Store) open(value string) (string, error) {
	box, err := encoding.DecodeString(value)
	if err != nil {
		return "", fmt.Errorf("malformed entry: %w", err)
	}
	if len(box) < nonceSize+secretbox.Overhead {
		return "", errors.New("entry too short")
	}
	var nonce [nonceSize]byte
	copy(nonce[:], box[:nonceSize])
	plain, ok := secretbox.Open(nil, box[nonceSize:], &nonce, &s.key)
	if !ok {
		return "", errors.New("entry does not decrypt")
	}
	return string(plain), nil
}

// Get returns the token of a project.
func (s *Store) Get(baseURL, projectID string) (string, error) {
	v, ok := s.entries[Key(baseURL, projectID)]
	if !ok {
		return "", ErrNotFound
	}
	return s.open(v)
}

// Set stores the token of a project and writes the file.
func (s *Store) Set(baseURL, projectID, token string) error {
	if baseURL == "" || projectID == "" {
		return errors.New("base URL and project id are required")
	}
	v, err := s.seal(token)
	if err != nil {
		return err
	}
	s.entries[Key(baseURL, projectID)] = v
	return s.save()
}

// Delete removes the token of a project and writes the file.
func (s *Store) Delete(baseURL, projectID string) error {
	k := Key(baseURL, projectID)
	if _, ok := s.entries[k]; !ok {
		return ErrNotFound
	}
	delete(s.entries, k)
	return s.save()
}

// List returns the stored entries sorted by key.
func (s *Store) List() []Entry {
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Entry, 0, len(keys))
	for _, k := range keys {
		i := strings.LastIndex(k, "|")
		out = append(out, Entry{BaseURL: k[:i], ProjectID: k[i+1:]})
	}
	return out
}

// save writes the store through a temporary file renamed over the target.
func (s *Store) save() error {
	check, err := s.seal(checkValue)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	buf.WriteString("# checksheet token store\n")
	fmt.Fprintf(&buf, "%s=%s\n", saltKey, encoding.EncodeToString(s.salt))
	fmt.Fprintf(&buf, "%s=%s\n", checkKey, check)
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&buf, "%s=%s\n", k, s.entries[k])
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create token store directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".tokens-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if err := tmp.Chmod(0600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to set token store permissions: %w", err)
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write token store: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync token store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close token store: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace token store: %w", err)
	}
	s.logger.Debug("token store written", "path", s.path, "entries", len(s.entries))
	return nil
}
