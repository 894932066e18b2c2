package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"chatrelay-backend/internal/domain"
)

// messageSelect joins the author and channel snapshots the realtime events
// and REST responses carry.
const messageSelect = `
	SELECT m.id, m.channel_id, m.author_id, m.content, m.created_at, m.updated_at,
	       u.id, u.email, u.username, u.display_name, u.is_active, u.created_at, u.updated_at,
	       c.id, c.name, c.description, c.is_public, c.is_dm, c.created_by, c.created_at, c.updated_at
	FROM messages m
	JOIN users u ON u.id = m.author_id
	JOIN channels c ON c.id = m.channel_id`

type MessageRepo struct {
	pool *pgxpool.Pool
}

func NewMessageRepo(pool *pgxpool.Pool) *MessageRepo {
	return &MessageRepo{pool: pool}
}

func (r *MessageRepo) Create(ctx context.Context, msg *domain.Message) error {
	query := `
		INSERT INTO messages (id, channel_id, author_id, content, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.pool.Exec(ctx, query,
		msg.ID, msg.ChannelID, msg.AuthorID, msg.Content, msg.CreatedAt, msg.UpdatedAt,
	)
	return err
}

func (r *MessageRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	row := r.pool.QueryRow(ctx, messageSelect+" WHERE m.id = $1", id)
	msg, err := scanMessage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func (r *MessageRepo) List(ctx context.Context) ([]domain.Message, error) {
	rows, err := r.pool.Query(ctx, messageSelect+" ORDER BY m.created_at DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMessages(rows)
}

func (r *MessageRepo) ListByChannel(ctx context.Context, channelID uuid.UUID) ([]domain.Message, error) {
	rows, err := r.pool.Query(ctx, messageSelect+" WHERE m.channel_id = $1 ORDER BY m.created_at", channelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMessages(rows)
}

func (r *MessageRepo) Update(ctx context.Context, msg *domain.Message) error {
	query := `UPDATE messages SET content = $1, updated_at = $2 WHERE id = $3`
	_, err := r.pool.Exec(ctx, query, msg.Content, msg.UpdatedAt, msg.ID)
	return err
}

func (r *MessageRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM messages WHERE id = $1`, id)
	return err
}

func scanMessage(row pgx.Row) (*domain.Message, error) {
	var m domain.Message
	var author domain.PublicUser
	var ch domain.Channel
	err := row.Scan(
		&m.ID, &m.ChannelID, &m.AuthorID, &m.Content, &m.CreatedAt, &m.UpdatedAt,
		&author.ID, &author.Email, &author.Username, &author.DisplayName,
		&author.IsActive, &author.CreatedAt, &author.UpdatedAt,
		&ch.ID, &ch.Name, &ch.Description, &ch.IsPublic, &ch.IsDM,
		&ch.CreatedBy, &ch.CreatedAt, &ch.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	m.Author = &author
	m.Channel = &ch
	return &m, nil
}

func collectMessages(rows pgx.Rows) ([]domain.Message, error) {
	var messages []domain.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *msg)
	}
	return messages, rows.Err()
}
