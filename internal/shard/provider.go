package shard

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/iamasit07/4-in-a-row-steroids/internal/domain"
)

// Provider hands the coordinator the 7 shards backing a room.
type Provider interface {
	Open(roomID string) ([]ColumnShard, error)
	Close(ctx context.Context, roomID string) error
}

// LocalProvider keeps every column in process.
type LocalProvider struct {
	rooms map[string][]*Column
	mu    sync.Mutex
}

func NewLocalProvider() *LocalProvider {
	return &LocalProvider{rooms: make(map[string][]*Column)}
}

func (p *LocalProvider) Open(roomID string) ([]ColumnShard, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cols, ok := p.rooms[roomID]
	if !ok {
		cols = make([]*Column, domain.Columns)
		for i := range cols {
			cols[i] = NewColumn(i)
		}
		p.rooms[roomID] = cols
	}

	out := make([]ColumnShard, len(cols))
	for i, c := range cols {
		out[i] = c
	}
	return out, nil
}

// Columns exposes the concrete columns of a room.
func (p *LocalProvider) Columns(roomID string) []*Column {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rooms[roomID]
}

func (p *LocalProvider) Close(_ context.Context, roomID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.rooms, roomID)
	return nil
}

// RemoteProvider addresses column nodes over HTTP, one base URL per column.
type RemoteProvider struct {
	nodes      []string
	httpClient *http.Client
}

func NewRemoteProvider(nodes []string, httpClient *http.Client) (*RemoteProvider, error) {
	if len(nodes) != domain.Columns {
		return nil, fmt.Errorf("need %d column node urls, got %d", domain.Columns, len(nodes))
	}
	return &RemoteProvider{nodes: nodes, httpClient: httpClient}, nil
}

func (p *RemoteProvider) Open(roomID string) ([]ColumnShard, error) {
	out := make([]ColumnShard, domain.Columns)
	for i, base := range p.nodes {
		out[i] = NewClient(base, roomID, i, p.httpClient)
	}
	return out, nil
}

// Close releases the room on every node and reports the first failure.
func (p *RemoteProvider) Close(ctx context.Context, roomID string) error {
	var first error
	for i, base := range p.nodes {
		if err := NewClient(base, roomID, i, p.httpClient).Release(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}
