// Package api is the client for the backend's chat REST surface. Every
// endpoint wraps its payload in the `{isSuccess, message, result}` envelope;
// a non-2xx status or a non-success envelope is returned as *Error.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jmlee/bandmate-chat/internal/identity"
	"github.com/jmlee/bandmate-chat/internal/models"
)

// Error is a failed backend call: a transport-level non-2xx status, or a
// 2xx whose envelope reported isSuccess=false.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("api: %s (status %d)", msg, e.Status)
}

type envelope[T any] struct {
	IsSuccess bool   `json:"isSuccess"`
	Message   string `json:"message"`
	Result    T      `json:"result"`
}

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// ListRooms returns the authenticated user's chat rooms.
func (c *Client) ListRooms(ctx context.Context, id identity.Identity) ([]models.Room, error) {
	return doJSON[[]models.Room](ctx, c, id, http.MethodGet, "/api/chatrooms", nil)
}

// CreateRoom creates a room with the given participants.
func (c *Client) CreateRoom(ctx context.Context, id identity.Identity, name string, participantIDs []int64) (models.Room, error) {
	req := models.CreateRoomRequest{Name: name, ParticipantIDs: participantIDs}
	return doJSON[models.Room](ctx, c, id, http.MethodPost, "/api/chatrooms", req)
}

// Room returns one room's metadata.
func (c *Client) Room(ctx context.Context, id identity.Identity, roomID int64) (models.Room, error) {
	return doJSON[models.Room](ctx, c, id, http.MethodGet, fmt.Sprintf("/api/chatrooms/%d", roomID), nil)
}

// RoomMessages returns the room's message history in server order.
func (c *Client) RoomMessages(ctx context.Context, id identity.Identity, roomID int64) ([]models.ChatMessage, error) {
	return doJSON[[]models.ChatMessage](ctx, c, id, http.MethodGet, fmt.Sprintf("/api/chatrooms/%d/messages", roomID), nil)
}

func doJSON[T any](ctx context.Context, c *Client, id identity.Identity, method, path string, body any) (T, error) {
	var zero T

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return zero, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return zero, err
	}
	req.Header.Set("Authorization", id.BearerHeader())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return zero, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope[T]
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return zero, &Error{Status: resp.StatusCode, Message: "invalid response body"}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !env.IsSuccess {
		return zero, &Error{Status: resp.StatusCode, Message: env.Message}
	}
	return env.Result, nil
}
