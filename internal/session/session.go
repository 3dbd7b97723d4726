// Package session persists the signed-in technician's tokens between runs.
// The session lives in <data_dir>/session.json and is readable only by the
// owner.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/five82/fieldtech/internal/apperr"
	"github.com/five82/fieldtech/internal/backend"
)

// DefaultFilename is the session file name inside the data directory.
const DefaultFilename = "session.json"

// Session is what gets written to disk after a successful sign-in.
type Session struct {
	Email        string    `json:"email"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	SignedInAt   time.Time `json:"signed_in_at"`
}

// FromAuth builds a Session from a sign-in response.
func FromAuth(email string, auth backend.AuthSession, now time.Time) Session {
	return Session{
		Email:        strings.TrimSpace(email),
		AccessToken:  auth.AccessToken,
		RefreshToken: auth.RefreshToken,
		TokenType:    auth.TokenType,
		SignedInAt:   now.UTC(),
	}
}

// Valid reports whether the session can authorize requests.
func (s Session) Valid() bool {
	return strings.TrimSpace(s.AccessToken) != ""
}

// Token returns the bearer token.
func (s Session) Token() string {
	return s.AccessToken
}

// Store reads and writes the session file.
type Store struct {
	path string
}

// NewStore returns a Store for path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the session file location.
func (s *Store) Path() string {
	return s.path
}

// Load returns the saved session. ok is false when there is none or it is
// unusable; a corrupt file is reported as a recoverable Persistence error and
// treated as signed out.
func (s *Store) Load() (Session, bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Session{}, false, nil
		}
		return Session{}, false, apperr.Wrap(apperr.Persistence, "read session", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return Session{}, false, apperr.Wrap(apperr.Persistence, "decode session", err)
	}
	if !sess.Valid() {
		return Session{}, false, nil
	}
	return sess, true, nil
}

// Save writes sess with owner-only permissions, creating directories as needed.
func (s *Store) Save(sess Session) error {
	if !sess.Valid() {
		return apperr.New(apperr.InvalidInput, "session has no access token")
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return apperr.Wrap(apperr.Persistence, "create session dir", err)
	}

	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return apperr.Wrap(apperr.Persistence, "encode session", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return apperr.Wrap(apperr.Persistence, "write session", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return apperr.Wrap(apperr.Persistence, "replace session", err)
	}
	return nil
}

// Clear removes the saved session. Clearing a missing session is not an error.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return apperr.Wrap(apperr.Persistence, fmt.Sprintf("remove %s", s.path), err)
	}
	return nil
}
