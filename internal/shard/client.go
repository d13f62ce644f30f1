package shard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/iamasit07/4-in-a-row-steroids/internal/domain"
)

// Wire bodies shared by Client and Server.
type dropRequest struct {
	PlayerID string `json:"player_id"`
}

type dropResponse struct {
	Row int `json:"row"`
}

type bombResponse struct {
	Cleared int `json:"cleared"`
}

type undoResponse struct {
	Removed bool `json:"removed"`
}

type blockRequest struct {
	Turns int `json:"turns"`
}

type tickResponse struct {
	BlockedTurns int `json:"blocked_turns"`
}

type replaceRequest struct {
	Discs []domain.Disc `json:"discs"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Client talks to one column of one room on a remote column node.
type Client struct {
	baseURL    string
	roomID     string
	column     int
	httpClient *http.Client
}

// NewClient binds a client to (node, room, column). A nil httpClient uses a
// client with a 5 second timeout.
func NewClient(baseURL, roomID string, column int, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		roomID:     roomID,
		column:     column,
		httpClient: httpClient,
	}
}

func (c *Client) Index() int {
	return c.column
}

func (c *Client) url(op string) string {
	return fmt.Sprintf("%s/rooms/%s/%s", c.baseURL, url.PathEscape(c.roomID), op)
}

func (c *Client) Drop(ctx context.Context, playerID string) (int, error) {
	var out dropResponse
	if err := c.do(ctx, http.MethodPost, c.url("drop"), dropRequest{PlayerID: playerID}, &out); err != nil {
		return -1, err
	}
	return out.Row, nil
}

func (c *Client) Bomb(ctx context.Context) (int, error) {
	var out bombResponse
	if err := c.do(ctx, http.MethodPost, c.url("bomb"), nil, &out); err != nil {
		return 0, err
	}
	return out.Cleared, nil
}

func (c *Client) UndoLast(ctx context.Context) (bool, error) {
	var out undoResponse
	if err := c.do(ctx, http.MethodPost, c.url("undo"), nil, &out); err != nil {
		return false, err
	}
	return out.Removed, nil
}

func (c *Client) Block(ctx context.Context, turns int) error {
	return c.do(ctx, http.MethodPost, c.url("block"), blockRequest{Turns: turns}, nil)
}

func (c *Client) TickBlock(ctx context.Context) (int, error) {
	var out tickResponse
	if err := c.do(ctx, http.MethodPost, c.url("tick"), nil, &out); err != nil {
		return 0, err
	}
	return out.BlockedTurns, nil
}

func (c *Client) Query(ctx context.Context) (State, error) {
	var out State
	if err := c.do(ctx, http.MethodGet, c.url("state"), nil, &out); err != nil {
		return State{}, err
	}
	return out, nil
}

func (c *Client) Replace(ctx context.Context, discs []domain.Disc) error {
	return c.do(ctx, http.MethodPost, c.url("replace"), replaceRequest{Discs: discs}, nil)
}

func (c *Client) Reset(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, c.url("reset"), nil, nil)
}

// Release drops the room from the column node.
func (c *Client) Release(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("%s/rooms/%s", c.baseURL, url.PathEscape(c.roomID)), nil, nil)
}

// do sends body as JSON and decodes the reply into out. A 409 carrying a known
// game error is returned as that error; anything else that fails is an
// infrastructure error.
func (c *Client) do(ctx context.Context, method, target string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("column %d: %w", c.column, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusConflict {
		var er errorResponse
		if json.NewDecoder(resp.Body).Decode(&er) == nil {
			if de, ok := domain.ErrorFromMessage(er.Error); ok {
				return de
			}
		}
		return fmt.Errorf("column %d: http %s: %d", c.column, target, resp.StatusCode)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("column %d: http %s: %d", c.column, target, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
