package shard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iamasit07/4-in-a-row-steroids/internal/domain"
)

func newNode(t *testing.T, index int) (*Server, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	srv := NewServer(index, zerolog.Nop())
	r := gin.New()
	srv.Register(r)

	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return srv, ts
}

func TestClient_RoundTrip(t *testing.T) {
	_, ts := newNode(t, 4)
	ctx := context.Background()
	c := NewClient(ts.URL, "room-1", 4, nil)

	require.NoError(t, c.Reset(ctx))

	row, err := c.Drop(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, 0, row)
	row, err = c.Drop(ctx, "B")
	require.NoError(t, err)
	assert.Equal(t, 1, row)

	st, err := c.Query(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, st.Column)
	assert.Equal(t, []domain.Disc{{PlayerID: "A", Row: 0}, {PlayerID: "B", Row: 1}}, st.Discs)

	removed, err := c.UndoLast(ctx)
	require.NoError(t, err)
	assert.True(t, removed)

	cleared, err := c.Bomb(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, cleared)

	require.NoError(t, c.Replace(ctx, []domain.Disc{{PlayerID: "C"}}))
	st, _ = c.Query(ctx)
	assert.Len(t, st.Discs, 1)
}

func TestClient_MapsGameErrors(t *testing.T) {
	_, ts := newNode(t, 0)
	ctx := context.Background()
	c := NewClient(ts.URL, "room-1", 0, nil)

	require.NoError(t, c.Block(ctx, 1))
	_, err := c.Drop(ctx, "A")
	assert.ErrorIs(t, err, domain.ErrColumnBlocked)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	left, err := c.TickBlock(ctx)
	require.NoError(t, err)
	assert.Zero(t, left)

	for range domain.Rows {
		_, err = c.Drop(ctx, "A")
		require.NoError(t, err)
	}
	_, err = c.Drop(ctx, "A")
	assert.ErrorIs(t, err, domain.ErrColumnFull)
}

func TestClient_UnreachableNodeIsInfrastructure(t *testing.T) {
	_, ts := newNode(t, 0)
	ts.Close()

	_, err := NewClient(ts.URL, "room-1", 0, nil).Drop(context.Background(), "A")
	require.Error(t, err)
	assert.False(t, domain.IsDomainError(err))
}

func TestServer_RoomsAreIsolated(t *testing.T) {
	srv, ts := newNode(t, 2)
	ctx := context.Background()

	NewClient(ts.URL, "r1", 2, nil).Drop(ctx, "A")
	st, err := NewClient(ts.URL, "r2", 2, nil).Query(ctx)
	require.NoError(t, err)
	assert.Empty(t, st.Discs)
	assert.Equal(t, 2, srv.Rooms())

	require.NoError(t, NewClient(ts.URL, "r1", 2, nil).Release(ctx))
	assert.Equal(t, 1, srv.Rooms())
}

func TestServer_HealthReportsOperations(t *testing.T) {
	srv, ts := newNode(t, 4)
	ctx := context.Background()

	r1 := NewClient(ts.URL, "r1", 4, nil)
	r2 := NewClient(ts.URL, "r2", 4, nil)
	_, err := r1.Drop(ctx, "A")
	require.NoError(t, err)
	_, err = r2.Drop(ctx, "B")
	require.NoError(t, err)
	_, err = r2.Query(ctx)
	require.NoError(t, err)
	require.NoError(t, r1.Release(ctx))

	assert.Equal(t, OperationStats{Drops: 2, Queries: 1}, srv.Stats())

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Column     int            `json:"column"`
		Rooms      int            `json:"rooms"`
		Operations OperationStats `json:"operations"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 4, body.Column)
	assert.Equal(t, 1, body.Rooms)
	assert.Equal(t, uint64(2), body.Operations.Drops)
	assert.Equal(t, uint64(1), body.Operations.Queries)
}

func TestServer_DropRequiresPlayer(t *testing.T) {
	_, ts := newNode(t, 0)

	resp, err := http.Post(ts.URL+"/rooms/r1/drop", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRemoteProvider_OpensClientsPerColumn(t *testing.T) {
	urls := make([]string, domain.Columns)
	for i := range urls {
		_, ts := newNode(t, i)
		urls[i] = ts.URL
	}

	p, err := NewRemoteProvider(urls, nil)
	require.NoError(t, err)
	shards, err := p.Open("room-1")
	require.NoError(t, err)

	for i, s := range shards {
		row, err := s.Drop(context.Background(), "A")
		require.NoError(t, err)
		assert.Equal(t, 0, row)
		assert.Equal(t, i, s.Index())
	}
	assert.NoError(t, p.Close(context.Background(), "room-1"))
}
