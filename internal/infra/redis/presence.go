package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RoomPresence mirrors live room codes into Redis as best-effort liveness
// markers (room:live:{code}). Other instances or dashboards can observe
// which codes are in play; the in-process registry stays authoritative.
type RoomPresence struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRoomPresence(client *redis.Client, ttl time.Duration) *RoomPresence {
	return &RoomPresence{client: client, ttl: ttl}
}

func (p *RoomPresence) Mark(code string) {
	_ = p.client.Set(context.Background(), p.key(code), "1", p.ttl).Err()
}

func (p *RoomPresence) Clear(code string) {
	_ = p.client.Del(context.Background(), p.key(code)).Err()
}

func (p *RoomPresence) key(code string) string {
	return "room:live:" + code
}
