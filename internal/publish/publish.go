// Package publish announces per-frame highlight results on a Redis pub/sub
// channel so other processes can follow a live session.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"image"

	"github.com/andresmejia3/skingrid/internal/grid"
	"github.com/andresmejia3/skingrid/internal/types"
	"github.com/redis/go-redis/v9"
)

// Event is the JSON message published for every frame.
type Event struct {
	SessionID   string      `json:"session_id"`
	Frame       int         `json:"frame"`
	CapturedAt  int64       `json:"captured_at_ms"`
	Rows        int         `json:"rows"`
	Cols        int         `json:"cols"`
	Mean        float64     `json:"mean"`
	FPS         float64     `json:"fps"`
	Highlighted []grid.Cell `json:"highlighted"`
}

// NewEvent converts frame statistics into an Event.
func NewEvent(stats types.FrameStats) Event {
	ev := Event{
		SessionID:   stats.SessionID,
		Frame:       stats.Index,
		CapturedAt:  stats.CapturedAt.UnixMilli(),
		Rows:        stats.Rows,
		Cols:        stats.Cols,
		Mean:        stats.Mean,
		FPS:         stats.FPS,
		Highlighted: make([]grid.Cell, 0, len(stats.Highlighted)),
	}
	if stats.Cols > 0 {
		for _, i := range stats.Highlighted {
			ev.Highlighted = append(ev.Highlighted, grid.Cell{Row: i / stats.Cols, Col: i % stats.Cols})
		}
	}
	return ev
}

// publisher is the part of *redis.Client the Publisher needs.
type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Publisher is a pipeline sink that publishes one Event per frame.
type Publisher struct {
	client  publisher
	channel string
}

// New returns a Publisher sending to channel through client.
func New(client *redis.Client, channel string) *Publisher {
	return &Publisher{client: client, channel: channel}
}

// Connect opens a Redis client and checks it with PING.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis %s: %w", addr, err)
	}
	return client, nil
}

// Consume publishes the frame's Event.
func (p *Publisher) Consume(ctx context.Context, _ *image.RGBA, stats types.FrameStats) error {
	payload, err := json.Marshal(NewEvent(stats))
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", p.channel, err)
	}
	return nil
}
