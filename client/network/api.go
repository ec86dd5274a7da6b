package network

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/cbodonnell/noughts/pkg/auth/handlers"
	"github.com/cbodonnell/noughts/pkg/game"
	"github.com/cbodonnell/noughts/pkg/game/types"
)

// APIClient calls the auth and game servers on behalf of one player.
type APIClient struct {
	apiURL  string
	authURL string
	client  *http.Client
	token   string
	userID  string
}

type NewAPIClientOptions struct {
	// APIURL is the base URL of the game server, e.g. http://localhost:9090
	APIURL string
	// AuthURL is the base URL of the auth server, e.g. http://localhost:8080
	AuthURL string
	Client  *http.Client
}

func NewAPIClient(opts NewAPIClientOptions) *APIClient {
	c := &APIClient{
		apiURL:  strings.TrimSuffix(opts.APIURL, "/"),
		authURL: strings.TrimSuffix(opts.AuthURL, "/"),
		client:  opts.Client,
	}
	if c.client == nil {
		c.client = http.DefaultClient
	}
	return c
}

// Token returns the ID token of the signed in player
func (c *APIClient) Token() string {
	return c.token
}

// UserID returns the signed in player
func (c *APIClient) UserID() string {
	return c.userID
}

// Login signs in anonymously under name and keeps the ID token for later calls.
func (c *APIClient) Login(ctx context.Context, name string) error {
	tokens := &handlers.TokenResponseBody{}
	if err := c.do(ctx, http.MethodPost, c.authURL+"/login", url.Values{"name": {name}}, false, tokens); err != nil {
		return fmt.Errorf("failed to login: %w", err)
	}
	c.token = tokens.IDToken
	c.userID = tokens.LocalID
	return nil
}

func (c *APIClient) CreateRoom(ctx context.Context) (*types.Room, error) {
	room := &types.Room{}
	if err := c.do(ctx, http.MethodPost, c.apiURL+"/rooms", url.Values{}, true, room); err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}
	return room, nil
}

func (c *APIClient) JoinRoom(ctx context.Context, code string) (*types.Room, error) {
	room := &types.Room{}
	if err := c.do(ctx, http.MethodPost, c.apiURL+"/rooms/join", url.Values{"code": {code}}, true, room); err != nil {
		return nil, fmt.Errorf("failed to join room: %w", err)
	}
	return room, nil
}

func (c *APIClient) SubmitMove(ctx context.Context, roomID string, cell int) (*game.View, error) {
	view := &game.View{}
	form := url.Values{"cell": {strconv.Itoa(cell)}}
	if err := c.do(ctx, http.MethodPost, c.apiURL+"/rooms/"+roomID+"/moves", form, true, view); err != nil {
		return nil, fmt.Errorf("failed to submit move: %w", err)
	}
	return view, nil
}

func (c *APIClient) ResetGame(ctx context.Context, roomID string) (*game.View, error) {
	view := &game.View{}
	if err := c.do(ctx, http.MethodPost, c.apiURL+"/rooms/"+roomID+"/reset", url.Values{}, true, view); err != nil {
		return nil, fmt.Errorf("failed to reset game: %w", err)
	}
	return view, nil
}

func (c *APIClient) GetGame(ctx context.Context, roomID string) (*game.View, error) {
	view := &game.View{}
	if err := c.do(ctx, http.MethodGet, c.apiURL+"/rooms/"+roomID+"/game", nil, true, view); err != nil {
		return nil, fmt.Errorf("failed to get game: %w", err)
	}
	return view, nil
}

// WatchURL returns the WebSocket address of the watch stream of a room
func (c *APIClient) WatchURL(roomID string) string {
	u := c.apiURL + "/rooms/" + roomID + "/watch"
	if strings.HasPrefix(u, "https://") {
		return "wss://" + strings.TrimPrefix(u, "https://")
	}
	return "ws://" + strings.TrimPrefix(u, "http://")
}

func (c *APIClient) do(ctx context.Context, method string, endpoint string, form url.Values, authorize bool, out any) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("error creating request: %v", err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if authorize {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("error sending request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &ErrResponse{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("error decoding response: %v", err)
	}
	return nil
}
