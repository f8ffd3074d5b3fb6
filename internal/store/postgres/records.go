package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/facefind/facefind/internal/store"
)

// RecordRepository is the PostgreSQL-backed store.RecordStore. All
// mutations are write-through: a photo's records are replaced in one
// transaction, so the table never holds a partial upsert.
type RecordRepository struct {
	pool *Pool
	dim  int
}

// NewRecordRepository creates a repository validating vectors against
// the deployment's embedding dimension.
func NewRecordRepository(pool *Pool, dim int) *RecordRepository {
	return &RecordRepository{pool: pool, dim: dim}
}

// unavailable tags an infrastructure failure as retry-safe.
func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, store.ErrUnavailable, err)
}

// UpsertPhoto replaces all face records for a photo within an event.
func (r *RecordRepository) UpsertPhoto(ctx context.Context, eventID, photoID string, faces []store.FaceRecord) error {
	for i := range faces {
		if len(faces[i].Embedding) != r.dim {
			return fmt.Errorf("photo %s slot %d: vector length %d, want %d: %w",
				photoID, i, len(faces[i].Embedding), r.dim, store.ErrBadDimension)
		}
	}

	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("upsert photo", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM face_records WHERE event_id = $1 AND photo_id = $2", eventID, photoID); err != nil {
		return unavailable("delete existing records", err)
	}

	for i := range faces {
		face := &faces[i]
		_, err := tx.ExecContext(ctx, `
			INSERT INTO face_records (event_id, photo_id, face_slot, embedding, det_score, bbox, source_ref)
			VALUES ($1, $2, $3, $4::vector, $5, $6, $7)
		`,
			eventID, photoID, i,
			pgvector.NewVector(face.Embedding),
			face.DetScore,
			pq.Array(face.BBox),
			face.SourceRef,
		)
		if err != nil {
			return unavailable("insert record", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return unavailable("commit upsert", err)
	}
	return nil
}

// DeletePhoto removes all records for a photo. No-op if absent.
func (r *RecordRepository) DeletePhoto(ctx context.Context, eventID, photoID string) error {
	_, err := r.pool.Exec(ctx,
		"DELETE FROM face_records WHERE event_id = $1 AND photo_id = $2", eventID, photoID)
	if err != nil {
		return unavailable("delete photo", err)
	}
	return nil
}

// DeleteEvent removes all records for an event.
func (r *RecordRepository) DeleteEvent(ctx context.Context, eventID string) error {
	_, err := r.pool.Exec(ctx, "DELETE FROM face_records WHERE event_id = $1", eventID)
	if err != nil {
		return unavailable("delete event", err)
	}
	return nil
}

// ListVectors returns all records for an event in a stable order.
func (r *RecordRepository) ListVectors(ctx context.Context, eventID string) ([]store.FaceRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT event_id, photo_id, face_slot, embedding, det_score, bbox, source_ref, created_at
		FROM face_records
		WHERE event_id = $1
		ORDER BY photo_id, face_slot
	`, eventID)
	if err != nil {
		return nil, unavailable("list vectors", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// scanRecords reads face records from a result set.
func scanRecords(rows *sql.Rows) ([]store.FaceRecord, error) {
	var records []store.FaceRecord
	for rows.Next() {
		var rec store.FaceRecord
		var vec pgvector.Vector
		var bbox pq.Float64Array
		if err := rows.Scan(
			&rec.EventID, &rec.PhotoID, &rec.FaceSlot, &vec,
			&rec.DetScore, &bbox, &rec.SourceRef, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec.Embedding = vec.Slice()
		rec.BBox = bbox
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate records", err)
	}
	return records, nil
}

// CountFaces returns the number of face records for an event.
func (r *RecordRepository) CountFaces(ctx context.Context, eventID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM face_records WHERE event_id = $1", eventID).Scan(&count)
	if err != nil {
		return 0, unavailable("count faces", err)
	}
	return count, nil
}

// CountPhotos returns the number of distinct photos with records.
func (r *RecordRepository) CountPhotos(ctx context.Context, eventID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		"SELECT COUNT(DISTINCT photo_id) FROM face_records WHERE event_id = $1", eventID).Scan(&count)
	if err != nil {
		return 0, unavailable("count photos", err)
	}
	return count, nil
}

// ListEvents returns all event IDs with stored records.
func (r *RecordRepository) ListEvents(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT DISTINCT event_id FROM face_records ORDER BY event_id")
	if err != nil {
		return nil, unavailable("list events", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan event ID: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate events", err)
	}
	return ids, nil
}

// Ping verifies the database is reachable.
func (r *RecordRepository) Ping(ctx context.Context) error {
	if err := r.pool.db.PingContext(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}
