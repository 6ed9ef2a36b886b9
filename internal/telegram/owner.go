package telegram

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

const ownerCacheTTL = time.Hour

// OwnerResolver maps a chat to the user id of its owner, caching results
// in Redis. The credit pipeline calls this for every incoming payment;
// without the cache every tip costs a Bot API round trip.
type OwnerResolver struct {
	client *Client
	cache  *redis.Client
}

func NewOwnerResolver(client *Client, cache *redis.Client) *OwnerResolver {
	return &OwnerResolver{client: client, cache: cache}
}

// ChatOwner returns the owning user's id for a chat.
func (r *OwnerResolver) ChatOwner(ctx context.Context, chatID int64) (int64, error) {
	key := fmt.Sprintf("chat_owner:%d", chatID)

	if r.cache != nil {
		if cached, err := r.cache.Get(ctx, key).Result(); err == nil {
			if ownerID, err := strconv.ParseInt(cached, 10, 64); err == nil {
				return ownerID, nil
			}
		}
	}

	admins, err := r.client.GetChatAdministrators(ctx, chatID)
	if err != nil {
		return 0, fmt.Errorf("chat %d administrators: %w", chatID, err)
	}

	for _, member := range admins {
		if member.Status == "creator" {
			if r.cache != nil {
				if err := r.cache.Set(ctx, key, strconv.FormatInt(member.User.ID, 10), ownerCacheTTL).Err(); err != nil {
					log.Printf("[BOT] Owner cache write failed for chat %d: %v", chatID, err)
				}
			}
			return member.User.ID, nil
		}
	}
	return 0, errors.New("chat has no owner")
}
