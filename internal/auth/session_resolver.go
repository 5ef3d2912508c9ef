package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

type SessionResolver struct {
	ttl         time.Duration
	redisClient *redis.Client
	now         func() time.Time
}

func NewSessionResolver(ttl time.Duration, redisClient *redis.Client) *SessionResolver {
	return &SessionResolver{
		ttl:         ttl,
		redisClient: redisClient,
		now:         time.Now,
	}
}

func (r *SessionResolver) Resolve(ctx context.Context, token string) (uuid.UUID, error) {
	if token == "" {
		return uuid.Nil, ErrSessionNotFound
	}

	cmd := r.redisClient.Get(ctx, sessionKeyPrefix+token)
	if err := cmd.Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			return uuid.Nil, ErrSessionNotFound
		}
		return uuid.Nil, err
	}

	userID, createdAt, err := parseSessionValue(cmd.Val())
	if err != nil {
		return uuid.Nil, err
	}
	if r.now().Sub(createdAt) > r.ttl {
		return uuid.Nil, ErrSessionExpired
	}
	return userID, nil
}

// session values are stored as "<user id>|<created at unix>"
func sessionValue(userID uuid.UUID, createdAt time.Time) string {
	return userID.String() + "|" + strconv.FormatInt(createdAt.Unix(), 10)
}

func parseSessionValue(val string) (uuid.UUID, time.Time, error) {
	userIDStr, createdAtStr, found := strings.Cut(val, "|")
	if !found {
		return uuid.Nil, time.Time{}, errors.New("malformed session value")
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return uuid.Nil, time.Time{}, fmt.Errorf("session user id: %w", err)
	}
	createdAtUnix, err := strconv.ParseInt(createdAtStr, 10, 64)
	if err != nil {
		return uuid.Nil, time.Time{}, fmt.Errorf("session created at: %w", err)
	}
	return userID, time.Unix(createdAtUnix, 0), nil
}
