package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/iamasit07/4-in-a-row-steroids/internal/domain"
)

const defaultRoomTTL = 24 * time.Hour

// RoomRecord is what gets mirrored per room.
type RoomRecord struct {
	Room    *domain.Room `json:"room"`
	Board   domain.Board `json:"board"`
	SavedAt time.Time    `json:"saved_at"`
}

// Store mirrors room snapshots into Redis and fans room deltas out on a
// per-room channel, so other gateway nodes can follow a game.
type Store struct {
	client *redis.Client
	ttl    time.Duration
	log    zerolog.Logger
}

// NewClient connects and pings. The caller decides whether a failed ping is
// fatal.
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

func NewStore(client *redis.Client, ttl time.Duration, log zerolog.Logger) *Store {
	if ttl <= 0 {
		ttl = defaultRoomTTL
	}
	return &Store{
		client: client,
		ttl:    ttl,
		log:    log.With().Str("component", "redis").Logger(),
	}
}

func roomKey(roomID string) string {
	return "room:" + roomID
}

// EventsChannel is the pub/sub channel carrying a room's broadcasts.
func EventsChannel(roomID string) string {
	return "room:" + roomID + ":events"
}

func (s *Store) SaveRoom(ctx context.Context, room *domain.Room, board domain.Board) error {
	data, err := json.Marshal(RoomRecord{Room: room, Board: board, SavedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("encode room %s: %w", room.ID, err)
	}
	if err := s.client.Set(ctx, roomKey(room.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save room %s: %w", room.ID, err)
	}
	return nil
}

// LoadRoom returns the mirrored room and board, or domain.ErrRoomNotFound
// when the key is missing or expired.
func (s *Store) LoadRoom(ctx context.Context, roomID string) (*domain.Room, domain.Board, error) {
	data, err := s.client.Get(ctx, roomKey(roomID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.Board{}, domain.ErrRoomNotFound
	}
	if err != nil {
		return nil, domain.Board{}, fmt.Errorf("load room %s: %w", roomID, err)
	}
	var rec RoomRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, domain.Board{}, fmt.Errorf("decode room %s: %w", roomID, err)
	}
	return rec.Room, rec.Board, nil
}

func (s *Store) DeleteRoom(ctx context.Context, roomID string) error {
	return s.client.Del(ctx, roomKey(roomID)).Err()
}

func (s *Store) Publish(ctx context.Context, roomID string, msg domain.ServerMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return s.client.Publish(ctx, EventsChannel(roomID), data).Err()
}

// Subscribe streams a room's broadcasts until ctx ends. It returns once the
// subscription is confirmed.
func (s *Store) Subscribe(ctx context.Context, roomID string) (<-chan domain.ServerMessage, error) {
	sub := s.client.Subscribe(ctx, EventsChannel(roomID))
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("subscribe room %s: %w", roomID, err)
	}
	out := make(chan domain.ServerMessage, 16)
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
				var msg domain.ServerMessage
				if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
					s.log.Warn().Err(err).Str("room", roomID).Msg("dropping undecodable event")
					continue
				}
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
