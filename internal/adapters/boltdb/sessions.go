package boltdb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"github.com/Jxel117/GastanGO-sub000/internal/domain"
)

var (
	bucketSessions = []byte("sessions")
	// identity id + "/" + token hash, used by RevokeAllForIdentity
	bucketByIdentity = []byte("sessions_by_identity")
)

// SessionRepository keeps the revocation registry in a single bbolt file. Every
// method runs in one bbolt transaction, which bbolt serializes for writers.
type SessionRepository struct {
	db *bbolt.DB
}

type sessionRecord struct {
	ID         string     `json:"id"`
	IdentityID string     `json:"identity_id"`
	TokenHash  string     `json:"token_hash"`
	Active     bool       `json:"active"`
	ExpiresAt  time.Time  `json:"expires_at"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func Open(path string) (*SessionRepository, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open boltdb: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketSessions, bucketByIdentity} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SessionRepository{db: db}, nil
}

func (r *SessionRepository) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *SessionRepository) Create(_ context.Context, token *domain.SessionToken) error {
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}
	rec := toRecord(token)
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	return r.db.Update(func(tx *bbolt.Tx) error {
		sessions := tx.Bucket(bucketSessions)
		key := []byte(rec.TokenHash)
		if sessions.Get(key) != nil {
			return fmt.Errorf("session %s already recorded", rec.ID)
		}
		if err := sessions.Put(key, data); err != nil {
			return err
		}
		return tx.Bucket(bucketByIdentity).Put(identityKey(rec.IdentityID, rec.TokenHash), []byte{})
	})
}

func (r *SessionRepository) FindByHash(_ context.Context, hash string) (*domain.SessionToken, error) {
	var out *domain.SessionToken
	err := r.db.View(func(tx *bbolt.Tx) error {
		rec, err := get(tx, hash)
		if err != nil {
			return err
		}
		out = rec.toDomain()
		return nil
	})
	return out, err
}

func (r *SessionRepository) Revoke(_ context.Context, hash string, at time.Time) error {
	return r.db.Update(func(tx *bbolt.Tx) error {
		rec, err := get(tx, hash)
		if err != nil {
			return err
		}
		if !rec.Active {
			return nil
		}
		return revoke(tx, rec, at)
	})
}

func (r *SessionRepository) RevokeAllForIdentity(_ context.Context, identityID string, at time.Time) (int64, error) {
	var n int64
	err := r.db.Update(func(tx *bbolt.Tx) error {
		prefix := []byte(identityID + "/")
		c := tx.Bucket(bucketByIdentity).Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			rec, err := get(tx, string(k[len(prefix):]))
			if err != nil {
				return err
			}
			if !rec.Active {
				continue
			}
			if err := revoke(tx, rec, at); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	return n, err
}

func (r *SessionRepository) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	var n int64
	err := r.db.Update(func(tx *bbolt.Tx) error {
		sessions := tx.Bucket(bucketSessions)
		byIdentity := tx.Bucket(bucketByIdentity)
		var expired []sessionRecord
		err := sessions.ForEach(func(_, v []byte) error {
			var rec sessionRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("failed to unmarshal session: %w", err)
			}
			if !rec.ExpiresAt.After(before) {
				expired = append(expired, rec)
			}
			return nil
		})
		if err != nil {
			return err
		}
		// bbolt forbids mutating a bucket while iterating it
		for _, rec := range expired {
			if err := sessions.Delete([]byte(rec.TokenHash)); err != nil {
				return err
			}
			if err := byIdentity.Delete(identityKey(rec.IdentityID, rec.TokenHash)); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	return n, err
}

func get(tx *bbolt.Tx, hash string) (*sessionRecord, error) {
	data := tx.Bucket(bucketSessions).Get([]byte(hash))
	if data == nil {
		return nil, domain.ErrSessionNotFound
	}
	var rec sessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &rec, nil
}

func revoke(tx *bbolt.Tx, rec *sessionRecord, at time.Time) error {
	at = at.UTC()
	rec.Active = false
	rec.RevokedAt = &at
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	return tx.Bucket(bucketSessions).Put([]byte(rec.TokenHash), data)
}

func identityKey(identityID, hash string) []byte {
	return []byte(identityID + "/" + hash)
}

func toRecord(t *domain.SessionToken) sessionRecord {
	return sessionRecord{
		ID:         t.ID,
		IdentityID: t.IdentityID,
		TokenHash:  t.TokenHash,
		Active:     t.Active,
		ExpiresAt:  t.ExpiresAt.UTC(),
		RevokedAt:  t.RevokedAt,
		CreatedAt:  t.CreatedAt.UTC(),
	}
}

func (rec *sessionRecord) toDomain() *domain.SessionToken {
	return &domain.SessionToken{
		ID:         rec.ID,
		IdentityID: rec.IdentityID,
		TokenHash:  rec.TokenHash,
		Active:     rec.Active,
		ExpiresAt:  rec.ExpiresAt,
		RevokedAt:  rec.RevokedAt,
		CreatedAt:  rec.CreatedAt,
	}
}
