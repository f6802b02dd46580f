package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/seeker014/SilentRoom/internal/domain"
)

type sqliteConversationRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteConversationRepository expects a handle opened with db.OpenSQLite.
func NewSQLiteConversationRepository(conn *sql.DB) domain.ConversationRepository {
	return &sqliteConversationRepository{
		db:  conn,
		now: time.Now,
	}
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *sqliteConversationRepository) FindOrCreate(ctx context.Context, a, b string) (*domain.Conversation, error) {
	if err := domain.ValidatePair(a, b); err != nil {
		return nil, err
	}
	pair := domain.SortedPair(a, b)
	key := domain.PairKey(a, b)
	now := r.now().UnixNano()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO conversations (id, participant_key, participant_a, participant_b, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(participant_key) DO NOTHING`,
		uuid.NewString(), key, pair[0], pair[1], now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: create conversation: %w", domain.ErrPersistence, err)
	}

	conv, err := r.loadByKey(ctx, r.db, key)
	if err != nil {
		return nil, err
	}
	return conv, nil
}

func (r *sqliteConversationRepository) Append(ctx context.Context, conversationID string, message *domain.Message) (*domain.Conversation, error) {
	if err := message.Validate(); err != nil {
		return nil, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: begin append: %w", domain.ErrPersistence, err)
	}
	defer tx.Rollback()

	header, err := r.loadHeader(ctx, tx, `WHERE id = ?`, conversationID)
	if err != nil {
		return nil, err
	}
	if err := header.ValidateAppend(message); err != nil {
		return nil, err
	}

	if message.ClientMsgID != "" {
		existing, err := r.findByClientMsgID(ctx, tx, conversationID, message.ClientMsgID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			*message = *existing
			if err := tx.Commit(); err != nil {
				return nil, fmt.Errorf("%w: commit append: %w", domain.ErrPersistence, err)
			}
			return r.loadByID(ctx, r.db, conversationID)
		}
	}

	now := r.now()
	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = now
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, seq, client_msg_id, sender_id, body, created_at)
		VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM messages WHERE conversation_id = ?), ?, ?, ?, ?)`,
		message.ID, conversationID, conversationID, nullString(message.ClientMsgID),
		message.SenderID, message.Body, message.CreatedAt.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: insert message: %w", domain.ErrPersistence, err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE conversations SET updated_at = ? WHERE id = ?`, now.UnixNano(), conversationID); err != nil {
		return nil, fmt.Errorf("%w: touch conversation: %w", domain.ErrPersistence, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit append: %w", domain.ErrPersistence, err)
	}

	return r.loadByID(ctx, r.db, conversationID)
}

func (r *sqliteConversationRepository) ListMessages(ctx context.Context, a, b string) ([]domain.Message, error) {
	conv, err := r.loadByKey(ctx, r.db, domain.PairKey(a, b))
	if errors.Is(err, domain.ErrNotFound) {
		return []domain.Message{}, nil
	}
	if err != nil {
		return nil, err
	}
	return conv.Messages, nil
}

func (r *sqliteConversationRepository) ListByParticipant(ctx context.Context, participantID string) ([]domain.Conversation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, participant_a, participant_b, created_at, updated_at
		FROM conversations
		WHERE participant_a = ? OR participant_b = ?
		ORDER BY updated_at DESC`,
		participantID, participantID,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: list conversations: %w", domain.ErrPersistence, err)
	}

	out := make([]domain.Conversation, 0)
	for rows.Next() {
		conv, err := scanHeader(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, *conv)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("%w: list conversations: %w", domain.ErrPersistence, err)
	}
	// The pool holds a single connection; release it before loading messages.
	rows.Close()

	for i := range out {
		msgs, err := r.loadMessages(ctx, r.db, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Messages = msgs
	}

	return out, nil
}

func (r *sqliteConversationRepository) loadByKey(ctx context.Context, q querier, key string) (*domain.Conversation, error) {
	conv, err := r.loadHeader(ctx, q, `WHERE participant_key = ?`, key)
	if err != nil {
		return nil, err
	}
	if conv.Messages, err = r.loadMessages(ctx, q, conv.ID); err != nil {
		return nil, err
	}
	return conv, nil
}

func (r *sqliteConversationRepository) loadByID(ctx context.Context, q querier, id string) (*domain.Conversation, error) {
	conv, err := r.loadHeader(ctx, q, `WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if conv.Messages, err = r.loadMessages(ctx, q, conv.ID); err != nil {
		return nil, err
	}
	return conv, nil
}

func (r *sqliteConversationRepository) loadHeader(ctx context.Context, q querier, where string, arg any) (*domain.Conversation, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, participant_a, participant_b, created_at, updated_at
		FROM conversations `+where, arg)

	conv, err := scanHeader(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrConversationMissing
	}
	if err != nil {
		return nil, err
	}
	return conv, nil
}

func (r *sqliteConversationRepository) loadMessages(ctx context.Context, q querier, conversationID string) ([]domain.Message, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, client_msg_id, sender_id, body, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY seq ASC`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: load messages: %w", domain.ErrPersistence, err)
	}
	defer rows.Close()

	msgs := make([]domain.Message, 0)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: load messages: %w", domain.ErrPersistence, err)
	}

	return msgs, nil
}

func (r *sqliteConversationRepository) findByClientMsgID(ctx context.Context, q querier, conversationID, clientMsgID string) (*domain.Message, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, client_msg_id, sender_id, body, created_at
		FROM messages
		WHERE conversation_id = ? AND client_msg_id = ?`,
		conversationID, clientMsgID,
	)

	msg, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return msg, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanHeader(s scanner) (*domain.Conversation, error) {
	var (
		conv               domain.Conversation
		createdAt, updated int64
	)
	err := s.Scan(&conv.ID, &conv.Participants[0], &conv.Participants[1], &createdAt, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: scan conversation: %w", domain.ErrPersistence, err)
	}
	conv.CreatedAt = time.Unix(0, createdAt)
	conv.UpdatedAt = time.Unix(0, updated)
	conv.Messages = make([]domain.Message, 0)
	return &conv, nil
}

func scanMessage(s scanner) (*domain.Message, error) {
	var (
		msg         domain.Message
		clientMsgID sql.NullString
		createdAt   int64
	)
	err := s.Scan(&msg.ID, &clientMsgID, &msg.SenderID, &msg.Body, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: scan message: %w", domain.ErrPersistence, err)
	}
	msg.ClientMsgID = clientMsgID.String
	msg.CreatedAt = time.Unix(0, createdAt)
	return &msg, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
