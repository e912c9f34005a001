package sqlite

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/ericfisherdev/clearsync/internal/domain/model"
	"github.com/ericfisherdev/clearsync/internal/domain/port/driven"
)

// encryptedPrefix marks secrets stored as AES-256-GCM ciphertext. Values
// without the prefix are plaintext, written when no encryption key was
// configured.
const encryptedPrefix = "v1:"

// Compile-time interface satisfaction check.
var _ driven.CredentialStore = (*CredentialRepo)(nil)

// CredentialRepo is the SQLite implementation of the CredentialStore port.
// When an encryption key is configured, secrets are encrypted with
// AES-256-GCM before write and decrypted after read; without a key they are
// stored in plaintext, matching a single-user local database.
type CredentialRepo struct {
	db  *DB
	key []byte // 32-byte AES-256 key; nil disables encryption.
}

// NewCredentialRepo creates a CredentialRepo. key must be 32 bytes for
// AES-256-GCM, or nil to store secrets unencrypted.
func NewCredentialRepo(db *DB, key []byte) (*CredentialRepo, error) {
	if key != nil && len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(key))
	}
	return &CredentialRepo{db: db, key: key}, nil
}

// List returns all stored credentials with decrypted secrets, oldest first.
func (r *CredentialRepo) List(ctx context.Context) ([]model.Credential, error) {
	const query = `SELECT id, secret, show_in_clears FROM credentials ORDER BY created_at, id`
	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	var creds []model.Credential
	for rows.Next() {
		var (
			rawID  string
			stored string
			show   bool
		)
		if err := rows.Scan(&rawID, &stored, &show); err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}

		id, err := uuid.Parse(rawID)
		if err != nil {
			return nil, fmt.Errorf("parse credential id %q: %w", rawID, err)
		}

		secret, err := r.reveal(stored)
		if err != nil {
			return nil, fmt.Errorf("credential %s: %w", id, err)
		}

		creds = append(creds, model.Credential{
			ID:           id,
			Secret:       secret,
			ShowInClears: show,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credentials: %w", err)
	}

	return creds, nil
}

// Upsert stores or replaces the credential identified by its id. Only the
// durable fields are written; fetched facts are ephemeral.
func (r *CredentialRepo) Upsert(ctx context.Context, cred model.Credential) error {
	stored, err := r.conceal(cred.Secret)
	if err != nil {
		return fmt.Errorf("credential %s: %w", cred.ID, err)
	}

	const query = `
		INSERT INTO credentials (id, secret, show_in_clears, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (id) DO UPDATE SET
			secret = excluded.secret,
			show_in_clears = excluded.show_in_clears,
			updated_at = CURRENT_TIMESTAMP`
	if _, err := r.db.Writer.ExecContext(ctx, query, cred.ID.String(), stored, cred.ShowInClears); err != nil {
		return fmt.Errorf("upsert credential %s: %w", cred.ID, err)
	}
	return nil
}

// Delete removes the credential with the given id. Deleting an unknown id is
// not an error.
func (r *CredentialRepo) Delete(ctx context.Context, id uuid.UUID) error {
	const query = `DELETE FROM credentials WHERE id = ?`
	if _, err := r.db.Writer.ExecContext(ctx, query, id.String()); err != nil {
		return fmt.Errorf("delete credential %s: %w", id, err)
	}
	return nil
}

// conceal encrypts the secret when a key is configured, otherwise returns it
// unchanged.
func (r *CredentialRepo) conceal(secret string) (string, error) {
	if r.key == nil {
		return secret, nil
	}

	gcm, err := r.gcm()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}

	// Seal appends the ciphertext to nonce, producing: nonce || ciphertext || tag.
	ciphertext := gcm.Seal(nonce, nonce, []byte(secret), nil)
	return encryptedPrefix + base64.StdEncoding.EncodeToString(ciphertext), nil
}

// reveal decrypts a stored secret. Reading an encrypted value without a
// configured key fails with the port sentinel.
func (r *CredentialRepo) reveal(stored string) (string, error) {
	if !strings.HasPrefix(stored, encryptedPrefix) {
		return stored, nil
	}
	if r.key == nil {
		return "", driven.ErrEncryptionKeyNotSet
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(stored, encryptedPrefix))
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}

	gcm, err := r.gcm()
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("gcm.Open: %w", err)
	}
	return string(plaintext), nil
}

func (r *CredentialRepo) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(r.key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return gcm, nil
}
