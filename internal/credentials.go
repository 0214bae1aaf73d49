package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrNoStoredSession is returned when the credential file does not exist.
var ErrNoStoredSession = errors.New("no saved session")

// storedSession is the on-disk form of a Session. Only the key pair is
// encrypted; the rest is needed to describe the session without the secret.
type storedSession struct {
	Principal   string    `json:"principal"`
	Region      string    `json:"region"`
	AccountID   string    `json:"account_id,omitempty"`
	Arn         string    `json:"arn,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	Salt        []byte    `json:"salt"`
	EncryptedAK []byte    `json:"encrypted_ak"`
	EncryptedSK []byte    `json:"encrypted_sk"`
}

// DefaultStorePath is ~/.capsulectl/session_credentials.json.
func DefaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv("HOME")
	}
	return filepath.Join(home, ".capsulectl", "session_credentials.json")
}

// FileStore keeps at most one session in an encrypted JSON file.
type FileStore struct {
	Path   string
	Secret string
}

// NewFileStore returns a store at path, or the default path when empty.
func NewFileStore(path, secret string) *FileStore {
	if path == "" {
		path = DefaultStorePath()
	}
	return &FileStore{Path: path, Secret: secret}
}

// CanSave reports whether a secret is available to encrypt with.
func (f *FileStore) CanSave() bool {
	return f.Secret != ""
}

// Exists reports whether a saved session is present.
func (f *FileStore) Exists() bool {
	_, err := os.Stat(f.Path)
	return err == nil
}

// Save encrypts and writes s, replacing any previous session.
func (f *FileStore) Save(s *Session) error {
	if !f.CanSave() {
		return errors.New("no encryption secret configured")
	}
	if err := os.MkdirAll(filepath.Dir(f.Path), 0700); err != nil {
		return fmt.Errorf("failed to create store dir: %w", err)
	}

	salt, err := NewSalt()
	if err != nil {
		return err
	}
	key := DeriveKey(f.Secret, salt)

	akEnc, err := Encrypt([]byte(s.AccessKey), key)
	if err != nil {
		return fmt.Errorf("failed to encrypt access key: %w", err)
	}
	skEnc, err := Encrypt([]byte(s.SecretKey), key)
	if err != nil {
		return fmt.Errorf("failed to encrypt secret key: %w", err)
	}

	created := s.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	rec := storedSession{
		Principal:   s.Principal,
		Region:      s.Region,
		AccountID:   s.AccountID,
		Arn:         s.Arn,
		CreatedAt:   created,
		Salt:        salt,
		EncryptedAK: akEnc,
		EncryptedSK: skEnc,
	}

	b, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(f.Path, b, 0600)
}

// Load decrypts the saved session.
func (f *FileStore) Load() (*Session, error) {
	rec, err := f.read()
	if err != nil {
		return nil, err
	}

	key := DeriveKey(f.Secret, rec.Salt)
	ak, err := Decrypt(rec.EncryptedAK, key)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt saved session (wrong secret?): %w", err)
	}
	sk, err := Decrypt(rec.EncryptedSK, key)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt saved session (wrong secret?): %w", err)
	}

	return &Session{
		Principal: rec.Principal,
		AccessKey: string(ak),
		SecretKey: string(sk),
		Region:    rec.Region,
		AccountID: rec.AccountID,
		Arn:       rec.Arn,
		CreatedAt: rec.CreatedAt,
	}, nil
}

// Describe returns the saved session's non-secret fields. The key pair is
// left empty so no secret is needed.
func (f *FileStore) Describe() (*Session, error) {
	rec, err := f.read()
	if err != nil {
		return nil, err
	}
	return &Session{
		Principal: rec.Principal,
		Region:    rec.Region,
		AccountID: rec.AccountID,
		Arn:       rec.Arn,
		CreatedAt: rec.CreatedAt,
	}, nil
}

// Remove deletes the credential file.
func (f *FileStore) Remove() error {
	err := os.Remove(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return ErrNoStoredSession
	}
	return err
}

func (f *FileStore) read() (*storedSession, error) {
	b, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoStoredSession
	}
	if err != nil {
		return nil, err
	}

	var rec storedSession
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse credentials file: %w", err)
	}
	return &rec, nil
}
