package engine

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"inductionlog/internal/domain"
	"inductionlog/internal/events"
	"inductionlog/internal/repo"
)

// ErrUnknownRole is returned when a key is requested for a role outside
// admin, mentor and mentee.
var ErrUnknownRole = errors.New("unknown role")

var ErrActorRequired = errors.New("actor_id required")

const apiKeyPrefix = "til_"

// CreateAPIKey mints a key for actorID acting as role. The plain key is
// returned once; only its hash is kept.
func (e Engine) CreateAPIKey(ctx context.Context, actorID string, role domain.Role, name, createdBy string) (string, domain.APIKey, error) {
	if strings.TrimSpace(actorID) == "" {
		return "", domain.APIKey{}, ErrActorRequired
	}
	if !role.Known() {
		return "", domain.APIKey{}, fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", domain.APIKey{}, err
	}
	plain := apiKeyPrefix + hex.EncodeToString(buf)
	key := domain.APIKey{
		ID:        uuid.NewString(),
		ActorID:   actorID,
		Role:      role,
		Name:      name,
		KeyHash:   repo.HashAPIKey(plain),
		CreatedAt: e.stamp(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return "", domain.APIKey{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertAPIKey(ctx, tx, key); err != nil {
		return "", domain.APIKey{}, err
	}
	payload := events.EventPayload{"actor_id": actorID, "role": string(role)}
	if err := e.Events.Append(ctx, tx, events.APIKeyCreated, "", "api_key", key.ID, createdBy, payload); err != nil {
		return "", domain.APIKey{}, err
	}
	if err := tx.Commit(); err != nil {
		return "", domain.APIKey{}, err
	}
	return plain, key, nil
}

func (e Engine) ListAPIKeys(ctx context.Context, actorID string) ([]domain.APIKey, error) {
	return e.Repo.ListAPIKeys(ctx, actorID)
}

func (e Engine) RevokeAPIKey(ctx context.Context, id, actorID string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteAPIKey(ctx, tx, id); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, events.APIKeyRevoked, "", "api_key", id, actorID, nil); err != nil {
		return err
	}
	return tx.Commit()
}

// AuthenticateAPIKey resolves a plain key to the key record it was minted as.
func (e Engine) AuthenticateAPIKey(ctx context.Context, plain string) (domain.APIKey, error) {
	if strings.TrimSpace(plain) == "" {
		return domain.APIKey{}, errors.New("api key required")
	}
	return e.Repo.GetAPIKeyByHash(ctx, repo.HashAPIKey(plain))
}
