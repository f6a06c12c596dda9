package repository

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var ErrKeyNotFound = errors.New("webhook key not found")

// WebhookKey authenticates an external lead source posting to the intake
// webhook. Only the SHA-256 hash of the key is stored.
type WebhookKey struct {
	ID        uuid.UUID
	Name      string
	KeyHash   string
	KeyPrefix string
	Source    string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// GenerateKey creates a new random intake key and returns the plaintext key,
// its hash, and the display prefix. The plaintext is shown only once.
func GenerateKey() (plaintext string, hash string, prefix string, err error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", "", "", err
	}
	plaintext = "lmk_" + hex.EncodeToString(bytes)
	h := sha256.Sum256([]byte(plaintext))
	hash = hex.EncodeToString(h[:])
	prefix = plaintext[:12]
	return plaintext, hash, prefix, nil
}

// HashKey hashes a plaintext intake key for lookup.
func HashKey(plaintext string) string {
	h := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(h[:])
}

// CreateKey stores a new intake key record.
func (r *Repository) CreateKey(ctx context.Context, name, keyHash, keyPrefix, source string) (WebhookKey, error) {
	var key WebhookKey
	err := r.pool.QueryRow(ctx, `
		INSERT INTO lead_webhook_keys (name, key_hash, key_prefix, source)
		VALUES ($1, $2, $3, $4)
		RETURNING id, name, key_hash, key_prefix, source, is_active, created_at, updated_at`,
		name, keyHash, keyPrefix, source,
	).Scan(
		&key.ID, &key.Name, &key.KeyHash, &key.KeyPrefix, &key.Source,
		&key.IsActive, &key.CreatedAt, &key.UpdatedAt,
	)
	return key, err
}

// GetKeyByHash retrieves an active intake key by its hash.
func (r *Repository) GetKeyByHash(ctx context.Context, keyHash string) (WebhookKey, error) {
	var key WebhookKey
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, key_hash, key_prefix, source, is_active, created_at, updated_at
		FROM lead_webhook_keys
		WHERE key_hash = $1 AND is_active = true`, keyHash,
	).Scan(
		&key.ID, &key.Name, &key.KeyHash, &key.KeyPrefix, &key.Source,
		&key.IsActive, &key.CreatedAt, &key.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return WebhookKey{}, ErrKeyNotFound
	}
	return key, err
}

// ListKeys returns all intake keys, newest first.
func (r *Repository) ListKeys(ctx context.Context) ([]WebhookKey, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, key_hash, key_prefix, source, is_active, created_at, updated_at
		FROM lead_webhook_keys
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []WebhookKey
	for rows.Next() {
		var key WebhookKey
		if err := rows.Scan(
			&key.ID, &key.Name, &key.KeyHash, &key.KeyPrefix, &key.Source,
			&key.IsActive, &key.CreatedAt, &key.UpdatedAt,
		); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// RevokeKey deactivates an intake key.
func (r *Repository) RevokeKey(ctx context.Context, keyID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE lead_webhook_keys SET is_active = false, updated_at = now()
		WHERE id = $1`, keyID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrKeyNotFound
	}
	return nil
}
