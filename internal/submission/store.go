package submission

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrDuplicateApplicationID signals an application-id collision. The id
	// space is deliberately small, so callers regenerate and retry.
	ErrDuplicateApplicationID = errors.New("submission: application id already exists")
	// ErrNotFound signals a lookup by an unknown application id.
	ErrNotFound = errors.New("submission: not found")
)

// Record is a persisted submission row.
type Record struct {
	ID            uuid.UUID `json:"id"`
	ApplicationID string    `json:"applicationID"`
	Payload       Payload   `json:"payload"`
	CreatedAt     time.Time `json:"createdAt"`
}

// ProofRecord is a persisted payment-proof row.
type ProofRecord struct {
	ID            uuid.UUID  `json:"id"`
	ApplicationID string     `json:"applicationID"`
	Proof         Attachment `json:"proof"`
	SubmittedAt   time.Time  `json:"submittedAt"`
}

// Store defines the persistence operations the handlers and the worker need.
type Store interface {
	Insert(ctx context.Context, p Payload) (Record, error)
	GetByApplicationID(ctx context.Context, applicationID string) (Record, error)
	AttachPaymentProof(ctx context.Context, applicationID string, proof Attachment) (ProofRecord, error)
	LatestProof(ctx context.Context, applicationID string) (ProofRecord, error)
	List(ctx context.Context, limit, offset int32) ([]Record, error)
	ListProofs(ctx context.Context, limit, offset int32) ([]ProofRecord, error)
}

// PGStore is the pgx-backed Store.
type PGStore struct {
	Pool *pgxpool.Pool
}

// NewPGStore wraps a pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{Pool: pool}
}

func (s *PGStore) Insert(ctx context.Context, p Payload) (Record, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return Record{}, fmt.Errorf("marshal payload: %w", err)
	}
	rec := Record{ID: uuid.New(), ApplicationID: p.ApplicationID, Payload: p}
	row := s.Pool.QueryRow(ctx,
		`INSERT INTO submissions (id, application_id, payload)
		 VALUES ($1, $2, $3)
		 RETURNING created_at`,
		rec.ID, rec.ApplicationID, payload)
	if err := row.Scan(&rec.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Record{}, ErrDuplicateApplicationID
		}
		return Record{}, fmt.Errorf("insert submission: %w", err)
	}
	return rec, nil
}

func (s *PGStore) GetByApplicationID(ctx context.Context, applicationID string) (Record, error) {
	var (
		rec     Record
		payload []byte
	)
	row := s.Pool.QueryRow(ctx,
		`SELECT id, application_id, payload, created_at
		 FROM submissions WHERE application_id = $1`,
		applicationID)
	if err := row.Scan(&rec.ID, &rec.ApplicationID, &payload, &rec.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("get submission: %w", err)
	}
	if err := json.Unmarshal(payload, &rec.Payload); err != nil {
		return Record{}, fmt.Errorf("decode submission payload: %w", err)
	}
	return rec, nil
}

func (s *PGStore) AttachPaymentProof(ctx context.Context, applicationID string, proof Attachment) (ProofRecord, error) {
	if _, err := s.GetByApplicationID(ctx, applicationID); err != nil {
		return ProofRecord{}, err
	}
	blob, err := json.Marshal(proof)
	if err != nil {
		return ProofRecord{}, fmt.Errorf("marshal proof: %w", err)
	}
	rec := ProofRecord{ID: uuid.New(), ApplicationID: applicationID, Proof: proof}
	row := s.Pool.QueryRow(ctx,
		`INSERT INTO payment_proofs (id, application_id, proof)
		 VALUES ($1, $2, $3)
		 RETURNING submitted_at`,
		rec.ID, rec.ApplicationID, blob)
	if err := row.Scan(&rec.SubmittedAt); err != nil {
		return ProofRecord{}, fmt.Errorf("insert payment proof: %w", err)
	}
	return rec, nil
}

func (s *PGStore) LatestProof(ctx context.Context, applicationID string) (ProofRecord, error) {
	var (
		rec  ProofRecord
		blob []byte
	)
	row := s.Pool.QueryRow(ctx,
		`SELECT id, application_id, proof, submitted_at
		 FROM payment_proofs WHERE application_id = $1
		 ORDER BY submitted_at DESC LIMIT 1`,
		applicationID)
	if err := row.Scan(&rec.ID, &rec.ApplicationID, &blob, &rec.SubmittedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProofRecord{}, ErrNotFound
		}
		return ProofRecord{}, fmt.Errorf("get payment proof: %w", err)
	}
	if err := json.Unmarshal(blob, &rec.Proof); err != nil {
		return ProofRecord{}, fmt.Errorf("decode proof: %w", err)
	}
	return rec, nil
}

func (s *PGStore) List(ctx context.Context, limit, offset int32) ([]Record, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.Pool.Query(ctx,
		`SELECT id, application_id, payload, created_at
		 FROM submissions ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			rec     Record
			payload []byte
		)
		if err := rows.Scan(&rec.ID, &rec.ApplicationID, &payload, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		if err := json.Unmarshal(payload, &rec.Payload); err != nil {
			return nil, fmt.Errorf("decode submission payload: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *PGStore) ListProofs(ctx context.Context, limit, offset int32) ([]ProofRecord, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.Pool.Query(ctx,
		`SELECT id, application_id, proof, submitted_at
		 FROM payment_proofs ORDER BY submitted_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list payment proofs: %w", err)
	}
	defer rows.Close()

	var records []ProofRecord
	for rows.Next() {
		var (
			rec  ProofRecord
			blob []byte
		)
		if err := rows.Scan(&rec.ID, &rec.ApplicationID, &blob, &rec.SubmittedAt); err != nil {
			return nil, fmt.Errorf("scan payment proof: %w", err)
		}
		if err := json.Unmarshal(blob, &rec.Proof); err != nil {
			return nil, fmt.Errorf("decode proof: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
