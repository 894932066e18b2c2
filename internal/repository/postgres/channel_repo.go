package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"chatrelay-backend/internal/domain"
)

const channelColumns = "id, name, description, is_public, is_dm, password_hash, created_by, created_at, updated_at"

type ChannelRepo struct {
	pool *pgxpool.Pool
}

func NewChannelRepo(pool *pgxpool.Pool) *ChannelRepo {
	return &ChannelRepo{pool: pool}
}

func (r *ChannelRepo) Create(ctx context.Context, ch *domain.Channel) error {
	query := `
		INSERT INTO channels (` + channelColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.pool.Exec(ctx, query,
		ch.ID, ch.Name, ch.Description, ch.IsPublic, ch.IsDM,
		ch.PasswordHash, ch.CreatedBy, ch.CreatedAt, ch.UpdatedAt,
	)
	return err
}

func (r *ChannelRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Channel, error) {
	return r.scanChannel(ctx, "SELECT "+channelColumns+" FROM channels WHERE id = $1", id)
}

// GetByName looks up a non-DM channel; DM names are not unique and never
// participate in name lookups.
func (r *ChannelRepo) GetByName(ctx context.Context, name string) (*domain.Channel, error) {
	return r.scanChannel(ctx, "SELECT "+channelColumns+" FROM channels WHERE name = $1 AND NOT is_dm", name)
}

// List returns the public channel listing; DM channels are excluded.
func (r *ChannelRepo) List(ctx context.Context) ([]domain.Channel, error) {
	query := "SELECT " + channelColumns + " FROM channels WHERE NOT is_dm ORDER BY created_at DESC"
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collectChannels(rows)
}

func (r *ChannelRepo) ListByMember(ctx context.Context, userID uuid.UUID) ([]domain.Channel, error) {
	query := `SELECT c.id, c.name, c.description, c.is_public, c.is_dm, c.password_hash, c.created_by, c.created_at, c.updated_at
		FROM channels c
		JOIN user_channels uc ON uc.channel_id = c.id
		WHERE uc.user_id = $1
		ORDER BY c.created_at DESC`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collectChannels(rows)
}

func (r *ChannelRepo) Update(ctx context.Context, ch *domain.Channel) error {
	query := `UPDATE channels
		SET name = $1, description = $2, is_public = $3, updated_at = $4
		WHERE id = $5`
	_, err := r.pool.Exec(ctx, query, ch.Name, ch.Description, ch.IsPublic, ch.UpdatedAt, ch.ID)
	return err
}

// Delete removes the channel; messages and membership rows cascade.
func (r *ChannelRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM channels WHERE id = $1`, id)
	return err
}

func (r *ChannelRepo) AddMember(ctx context.Context, m *domain.Member) error {
	query := `INSERT INTO user_channels (channel_id, user_id, joined_at) VALUES ($1, $2, $3)`
	_, err := r.pool.Exec(ctx, query, m.ChannelID, m.UserID, m.JoinedAt)
	return err
}

func (r *ChannelRepo) RemoveMember(ctx context.Context, channelID, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM user_channels WHERE channel_id = $1 AND user_id = $2`, channelID, userID)
	return err
}

func (r *ChannelRepo) GetMember(ctx context.Context, channelID, userID uuid.UUID) (*domain.Member, error) {
	query := `SELECT channel_id, user_id, joined_at
		FROM user_channels WHERE channel_id = $1 AND user_id = $2`
	var m domain.Member
	err := r.pool.QueryRow(ctx, query, channelID, userID).Scan(&m.ChannelID, &m.UserID, &m.JoinedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *ChannelRepo) ListMembers(ctx context.Context, channelID uuid.UUID) ([]domain.PublicUser, error) {
	query := `SELECT u.id, u.email, u.username, u.display_name, u.is_active, u.created_at, u.updated_at
		FROM users u
		JOIN user_channels uc ON uc.user_id = u.id
		WHERE uc.channel_id = $1
		ORDER BY uc.joined_at`
	rows, err := r.pool.Query(ctx, query, channelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []domain.PublicUser
	for rows.Next() {
		var u domain.PublicUser
		if err := rows.Scan(&u.ID, &u.Email, &u.Username, &u.DisplayName,
			&u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		members = append(members, u)
	}
	return members, rows.Err()
}

func (r *ChannelRepo) scanChannel(ctx context.Context, query string, arg any) (*domain.Channel, error) {
	var ch domain.Channel
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&ch.ID, &ch.Name, &ch.Description, &ch.IsPublic, &ch.IsDM,
		&ch.PasswordHash, &ch.CreatedBy, &ch.CreatedAt, &ch.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

func (r *ChannelRepo) collectChannels(rows pgx.Rows) ([]domain.Channel, error) {
	var channels []domain.Channel
	for rows.Next() {
		var ch domain.Channel
		if err := rows.Scan(&ch.ID, &ch.Name, &ch.Description, &ch.IsPublic, &ch.IsDM,
			&ch.PasswordHash, &ch.CreatedBy, &ch.CreatedAt, &ch.UpdatedAt); err != nil {
			return nil, err
		}
		channels = append(channels, ch)
	}
	return channels, rows.Err()
}
