package users

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/gridops/gridops/internal/rbac"
)

// Resolver turns a session user ID into a full rbac.Actor. Lookups are served
// from a short-TTL Redis cache and collapsed through singleflight so a burst
// of requests for one user hits the database once.
type Resolver struct {
	repo   RepositoryPort
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
	logger *slog.Logger
}

// NewResolver constructs a Resolver. A nil client disables caching.
func NewResolver(repo RepositoryPort, client *redis.Client, ttl time.Duration, logger *slog.Logger) *Resolver {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{repo: repo, client: client, ttl: ttl, logger: logger}
}

type cachedActor struct {
	ID     int64    `json:"id"`
	Name   string   `json:"name"`
	Role   string   `json:"role"`
	Grants []string `json:"grants"`
}

// ResolveActor implements rbac.ActorResolver.
func (r *Resolver) ResolveActor(ctx context.Context, userID int64) (rbac.Actor, error) {
	key := r.cacheKey(userID)

	if r.client != nil {
		if payload, err := r.client.Get(ctx, key).Bytes(); err == nil {
			var cached cachedActor
			if err := json.Unmarshal(payload, &cached); err == nil {
				return toActor(cached), nil
			}
		} else if !errors.Is(err, redis.Nil) {
			r.logger.Warn("actor cache read", slog.Any("error", err))
		}
	}

	value, err, _ := r.group.Do(key, func() (any, error) {
		user, err := r.repo.Get(ctx, userID)
		if err != nil {
			return nil, err
		}
		if !user.IsActive {
			return nil, ErrNotFound
		}
		cached := cachedActor{ID: user.ID, Name: user.Name, Role: user.Role, Grants: user.Grants}
		if r.client != nil {
			if payload, err := json.Marshal(cached); err == nil {
				if err := r.client.Set(ctx, key, payload, r.ttl).Err(); err != nil {
					r.logger.Warn("actor cache write", slog.Any("error", err))
				}
			}
		}
		return cached, nil
	})
	if err != nil {
		return rbac.Actor{}, err
	}
	return toActor(value.(cachedActor)), nil
}

// Invalidate drops the cached actor so the next request reloads role and
// grants from the database.
func (r *Resolver) Invalidate(ctx context.Context, userID int64) {
	if r.client == nil {
		return
	}
	if err := r.client.Del(ctx, r.cacheKey(userID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		r.logger.Warn("actor cache invalidate", slog.Any("error", err))
	}
}

func (r *Resolver) cacheKey(userID int64) string {
	return fmt.Sprintf("actor:%d", userID)
}

func toActor(cached cachedActor) rbac.Actor {
	role, err := rbac.ParseRole(cached.Role)
	if err != nil {
		// Corrupted role data degrades to viewer rather than failing closed
		// on every request.
		role = rbac.RoleViewer
	}
	grants := make([]rbac.Permission, 0, len(cached.Grants))
	for _, raw := range cached.Grants {
		if perm, err := rbac.ParsePermission(raw); err == nil {
			grants = append(grants, perm)
		}
	}
	return rbac.Actor{ID: cached.ID, Name: cached.Name, Role: role, Grants: grants}
}
