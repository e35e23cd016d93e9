package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/louisbranch/shopkeeper/internal/services/auth/client"
	"github.com/louisbranch/shopkeeper/internal/services/auth/storage"
)

// GetClientByPhone fetches a client by normalized phone.
func (s *Store) GetClientByPhone(ctx context.Context, phone string) (client.Identity, error) {
	if err := s.ready(ctx); err != nil {
		return client.Identity{}, err
	}
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return client.Identity{}, invalid("phone is required")
	}

	var (
		identity  client.Identity
		verified  int64
		createdAt int64
	)
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, phone, verified, created_at FROM clients WHERE phone = ?`,
		phone,
	).Scan(&identity.ID, &identity.Phone, &verified, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return client.Identity{}, storage.ErrNotFound
		}
		return client.Identity{}, unavailable("get client", err)
	}
	identity.Verified = verified == 1
	identity.CreatedAt = fromMillis(createdAt)
	return identity, nil
}

// CreateClient inserts identity unless its phone is already registered, and
// returns whichever row is stored.
func (s *Store) CreateClient(ctx context.Context, identity client.Identity) (client.Identity, error) {
	if err := s.ready(ctx); err != nil {
		return client.Identity{}, err
	}
	if strings.TrimSpace(identity.ID) == "" {
		return client.Identity{}, invalid("client id is required")
	}
	if strings.TrimSpace(identity.Phone) == "" {
		return client.Identity{}, invalid("phone is required")
	}

	if _, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO clients (id, phone, verified, created_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(phone) DO NOTHING
`,
		identity.ID,
		identity.Phone,
		boolToInt(identity.Verified),
		toMillis(identity.CreatedAt),
	); err != nil {
		return client.Identity{}, unavailable("create client", err)
	}
	return s.GetClientByPhone(ctx, identity.Phone)
}
