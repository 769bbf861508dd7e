package scheduler

import (
	"strconv"
	"time"

	"github.com/whatsmanager/campaign-gateway/pkg/logger"
	"github.com/whatsmanager/campaign-gateway/pkg/redis"
)

const (
	sendGuardKeyPrefix = "campaign-gateway:sent:"
	sendGuardTTL       = 24 * time.Hour
)

// SendGuard records successful primary sends in redis so a message can
// never reach the provider twice, whichever retry path picked it up. The
// guard fails open: on redis trouble dispatch proceeds and relies on the
// database status alone.
type SendGuard struct {
	redis redis.RedisAdapter
}

func NewSendGuard(adapter redis.RedisAdapter) *SendGuard {
	return &SendGuard{redis: adapter}
}

// AlreadySent reports whether a successful send was already recorded for
// the message.
func (g *SendGuard) AlreadySent(messageID int64) bool {
	if g == nil || g.redis == nil {
		return false
	}
	n, err := g.redis.Exist(sendGuardKeyPrefix + strconv.FormatInt(messageID, 10))
	if err != nil {
		logger.Warn("send guard lookup failed, proceeding without it", "message_id", messageID, "error", err)
		return false
	}
	return n > 0
}

// MarkSent records the send. Returns false when another writer got there
// first, which means a concurrent duplicate slipped through dispatch.
func (g *SendGuard) MarkSent(messageID int64) bool {
	if g == nil || g.redis == nil {
		return true
	}
	ok, err := g.redis.SetNX(sendGuardKeyPrefix+strconv.FormatInt(messageID, 10), []byte("1"), sendGuardTTL)
	if err != nil {
		logger.Warn("send guard mark failed", "message_id", messageID, "error", err)
		return true
	}
	return ok
}

// Clear drops the marker, used when a message is promoted for a fresh
// retry cycle after a provider-side failure report.
func (g *SendGuard) Clear(messageID int64) {
	if g == nil || g.redis == nil {
		return
	}
	if err := g.redis.Del(sendGuardKeyPrefix + strconv.FormatInt(messageID, 10)); err != nil {
		logger.Warn("send guard clear failed", "message_id", messageID, "error", err)
	}
}
