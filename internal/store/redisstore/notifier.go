package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/healme/healme-chat/internal/chat"
	"github.com/healme/healme-chat/internal/common"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Store publishes view events on redis pub/sub. A view subscribed to a
// conversation channel scrolls to the newest message when an event arrives.
type Store struct {
	rdb    *redis.Client
	prefix string
	log    *zap.Logger
}

type ViewEvent struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	PatientID   uint64 `json:"patient_id"`
	TherapistID uint64 `json:"therapist_id"`
	TS          int64  `json:"ts"`
}

const EventScrollToLatest = "scroll_to_latest"

func New(addr, password string, db int, prefix string, log *zap.Logger) *Store {
	if prefix == "" {
		prefix = "healme:chat"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		rdb: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		prefix: prefix,
		log:    log,
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

func (s *Store) Channel(key chat.ConversationKey) string {
	return fmt.Sprintf("%s:%d:%d", s.prefix, key.PatientID, key.TherapistID)
}

// ScrollToLatest satisfies chat.Viewport. Publish failures are logged only.
func (s *Store) ScrollToLatest(ctx context.Context, key chat.ConversationKey) {
	id, err := common.NewULID()
	if err != nil {
		s.log.Warn("view event id", zap.Error(err))
		return
	}
	b, err := json.Marshal(ViewEvent{
		ID:          id,
		Type:        EventScrollToLatest,
		PatientID:   key.PatientID,
		TherapistID: key.TherapistID,
		TS:          time.Now().Unix(),
	})
	if err != nil {
		return
	}

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := s.rdb.Publish(cctx, s.Channel(key), b).Err(); err != nil {
		s.log.Warn("publish view event failed", zap.String("channel", s.Channel(key)), zap.Error(err))
	}
}

// Subscribe streams view events for one conversation until ctx is done.
func (s *Store) Subscribe(ctx context.Context, key chat.ConversationKey) <-chan ViewEvent {
	out := make(chan ViewEvent, 16)
	sub := s.rdb.Subscribe(ctx, s.Channel(key))

	go func() {
		defer close(out)
		defer sub.Close()

		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}
				var ev ViewEvent
				if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
					s.log.Debug("bad view event", zap.Error(err))
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
