package session

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rentranks/rentranks-front/internal/crypto"
	"github.com/rentranks/rentranks-front/internal/log"
)

// FirestoreStore persists token records in Google Cloud Firestore.
// Bearer tokens are encrypted at rest; the rest of the record is stored
// in the clear so expired documents can be swept with a range query.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
	encryptor  crypto.Encryptor
}

var _ Store = (*FirestoreStore)(nil)
var _ ExpiredSweeper = (*FirestoreStore)(nil)

// recordDoc is the Firestore document shape for a token record.
type recordDoc struct {
	UserID      string    `firestore:"user_id"`
	Email       string    `firestore:"email"`
	BearerToken string    `firestore:"bearer_token"` // encrypted
	Exp         int64     `firestore:"exp"`
	Provider    string    `firestore:"provider"`
	Deadline    time.Time `firestore:"deadline"`
	UpdatedAt   time.Time `firestore:"updated_at"`
}

// NewFirestoreStore creates a Firestore-backed store.
func NewFirestoreStore(ctx context.Context, projectID, database, collection string, encryptor crypto.Encryptor) (*FirestoreStore, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required")
	}
	if collection == "" {
		return nil, fmt.Errorf("collection is required")
	}
	if encryptor == nil {
		return nil, fmt.Errorf("encryptor is required")
	}

	var client *firestore.Client
	var err error
	if database != "" {
		client, err = firestore.NewClientWithDatabase(ctx, projectID, database)
	} else {
		client, err = firestore.NewClient(ctx, projectID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}

	return &FirestoreStore{
		client:     client,
		collection: collection,
		encryptor:  encryptor,
	}, nil
}

func (s *FirestoreStore) Get(ctx context.Context, sessionID string) (*TokenRecord, error) {
	doc, err := s.client.Collection(s.collection).Doc(sessionID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get record from firestore: %w", err)
	}

	var rd recordDoc
	if err := doc.DataTo(&rd); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}

	if time.Now().After(rd.Deadline) {
		// Past the absolute session lifetime but not yet swept
		return nil, nil
	}

	bearer, err := s.encryptor.Decrypt(rd.BearerToken)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt bearer token: %w", err)
	}

	return &TokenRecord{
		UserID:      rd.UserID,
		Email:       rd.Email,
		BearerToken: bearer,
		ExpiresAt:   rd.Exp,
		Provider:    rd.Provider,
	}, nil
}

func (s *FirestoreStore) Put(ctx context.Context, sessionID string, rec TokenRecord, ttl time.Duration) error {
	encrypted, err := s.encryptor.Encrypt(rec.BearerToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt bearer token: %w", err)
	}

	rd := recordDoc{
		UserID:      rec.UserID,
		Email:       rec.Email,
		BearerToken: encrypted,
		Exp:         rec.ExpiresAt,
		Provider:    rec.Provider,
		Deadline:    time.Now().Add(ttl),
		UpdatedAt:   time.Now(),
	}

	if _, err := s.client.Collection(s.collection).Doc(sessionID).Set(ctx, rd); err != nil {
		return fmt.Errorf("failed to store record in firestore: %w", err)
	}
	return nil
}

func (s *FirestoreStore) Delete(ctx context.Context, sessionID string) error {
	if _, err := s.client.Collection(s.collection).Doc(sessionID).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete record from firestore: %w", err)
	}
	return nil
}

// DeleteExpired removes documents past their deadline and returns the count.
func (s *FirestoreStore) DeleteExpired(ctx context.Context) (int, error) {
	iter := s.client.Collection(s.collection).
		Where("deadline", "<", time.Now()).
		Documents(ctx)
	defer iter.Stop()

	count := 0
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return count, fmt.Errorf("failed to iterate expired records: %w", err)
		}

		if _, err := doc.Ref.Delete(ctx); err != nil {
			log.LogWarnWithFields("session", "Failed to delete expired record", map[string]any{
				"doc":   doc.Ref.ID,
				"error": err.Error(),
			})
			continue
		}
		count++
	}

	return count, nil
}

// Close releases the underlying Firestore client.
func (s *FirestoreStore) Close() error {
	return s.client.Close()
}
