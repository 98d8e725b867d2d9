package screepsapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/bnema/screeps-cli/internal/domain"
	"github.com/bnema/screeps-cli/internal/version"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

const (
	maxResponseBytes      = 4 << 20
	defaultRequestTimeout = 30 * time.Second
	tokenHeader           = "X-Token"
	usernameHeader        = "X-Username"
	invalidRoomMessage    = "invalid room"
)

const (
	signinPath      = "auth/signin"
	myInfoPath      = "auth/me"
	shardsInfoPath  = "game/shards/info"
	roomTerrainPath = "game/room-terrain"
)

type Client struct {
	HTTPClient     *http.Client
	Tokens         *TokenStore
	Limiter        *rate.Limiter
	RequestTimeout time.Duration
}

func NewClient(httpClient *http.Client, tokens *TokenStore, limiter *rate.Limiter) *Client {
	if tokens == nil {
		tokens = &TokenStore{}
	}
	return &Client{HTTPClient: httpClient, Tokens: tokens, Limiter: limiter}
}

type signinRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login signs in with the settings' credentials and stores the new token.
func (c *Client) Login(ctx context.Context, settings domain.ConnectionSettings) error {
	if settings.Username == "" || settings.Password == "" {
		return fmt.Errorf("login: %w: username and password are required", domain.ErrUnauthorized)
	}

	body, err := json.Marshal(signinRequest{Email: settings.Username, Password: settings.Password})
	if err != nil {
		return fmt.Errorf("encode signin request: %w", err)
	}

	epoch := c.Tokens.Epoch()
	payload, _, err := c.do(ctx, settings, http.MethodPost, signinPath, nil, body, false)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	token := gjson.GetBytes(payload, "token").String()
	if token == "" {
		return errors.New("login: signin response missing token")
	}
	if !c.Tokens.SetAt(epoch, token) {
		return fmt.Errorf("login: %w: credentials changed during signin", domain.ErrNoToken)
	}

	return nil
}

func (c *Client) MyInfo(ctx context.Context, settings domain.ConnectionSettings) (domain.MyInfo, error) {
	payload, _, err := c.do(ctx, settings, http.MethodGet, myInfoPath, nil, nil, true)
	if err != nil {
		return domain.MyInfo{}, fmt.Errorf("fetch my info: %w", err)
	}

	result := gjson.ParseBytes(payload)
	info := domain.MyInfo{
		UserID:   result.Get("_id").String(),
		Username: result.Get("username").String(),
		HasPass:  result.Get("password").Bool(),
		CPU:      int(result.Get("cpu").Int()),
		GCL:      result.Get("gcl").Int(),
		Money:    result.Get("money").Float(),
	}
	if info.UserID == "" {
		return domain.MyInfo{}, errors.New("fetch my info: response missing user id")
	}

	return info, nil
}

// ShardList returns nil without error when the server has no shards.
func (c *Client) ShardList(ctx context.Context, settings domain.ConnectionSettings) ([]domain.ShardInfo, error) {
	payload, status, err := c.do(ctx, settings, http.MethodGet, shardsInfoPath, nil, nil, false)
	if status == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch shard list: %w", err)
	}

	shards := gjson.GetBytes(payload, "shards")
	if !shards.IsArray() {
		return nil, errors.New("fetch shard list: response missing shards")
	}

	list := make([]domain.ShardInfo, 0, len(shards.Array()))
	for _, shard := range shards.Array() {
		list = append(list, domain.ShardInfo{
			Name:    shard.Get("name").String(),
			Rooms:   int(shard.Get("rooms").Int()),
			Users:   int(shard.Get("users").Int()),
			TickAvg: shard.Get("tick").Float(),
		})
	}

	return list, nil
}

func (c *Client) RoomTerrain(ctx context.Context, settings domain.ConnectionSettings, room domain.RoomName) (domain.TerrainGrid, error) {
	query := url.Values{}
	query.Set("room", room.String())
	query.Set("encoded", "1")
	if settings.Shard != "" {
		query.Set("shard", settings.Shard)
	}

	payload, _, err := c.do(ctx, settings, http.MethodGet, roomTerrainPath, query, nil, false)
	if err != nil {
		return domain.TerrainGrid{}, fmt.Errorf("fetch terrain for %s: %w", room, err)
	}

	encoded := gjson.GetBytes(payload, "terrain.0.terrain")
	if !encoded.Exists() {
		return domain.TerrainGrid{}, fmt.Errorf("fetch terrain for %s: response missing terrain", room)
	}

	grid, err := domain.ParseEncodedTerrain(encoded.String())
	if err != nil {
		return domain.TerrainGrid{}, fmt.Errorf("fetch terrain for %s: %w", room, err)
	}

	return grid, nil
}

func (c *Client) do(ctx context.Context, settings domain.ConnectionSettings, method string, path string, query url.Values, body []byte, authenticated bool) ([]byte, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	endpoint, err := buildAPIURL(settings.APIURL, path, query)
	if err != nil {
		return nil, 0, err
	}

	token, hasToken, epoch := c.Tokens.Current()
	if authenticated && !hasToken {
		return nil, 0, domain.ErrNoToken
	}

	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return nil, 0, fmt.Errorf("wait for rate limiter: %w", err)
		}
	}

	requestCtx, cancel := c.requestContext(ctx)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(requestCtx, method, endpoint, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", version.UserAgent())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if hasToken {
		req.Header.Set(tokenHeader, token)
		req.Header.Set(usernameHeader, token)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if refreshed := resp.Header.Get(tokenHeader); refreshed != "" {
		c.Tokens.SetAt(epoch, refreshed)
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		apiErr := &domain.APIError{StatusCode: resp.StatusCode, Message: errorMessage(payload)}
		if resp.StatusCode == http.StatusUnauthorized && authenticated {
			c.Tokens.CompareAndClear(token)
			return nil, resp.StatusCode, fmt.Errorf("%w: %w", domain.ErrNoToken, apiErr)
		}
		return nil, resp.StatusCode, apiErr
	}

	if message := errorMessage(payload); message != "" {
		if message == invalidRoomMessage {
			return nil, resp.StatusCode, domain.ErrInvalidRoom
		}
		return nil, resp.StatusCode, &domain.APIError{StatusCode: resp.StatusCode, Message: message}
	}
	if !gjson.ValidBytes(payload) {
		return nil, resp.StatusCode, &domain.ParseError{Input: string(payload), Err: errors.New("invalid json")}
	}

	return payload, resp.StatusCode, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}

	requestTimeout := c.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}

	return context.WithTimeout(ctx, requestTimeout)
}

func errorMessage(payload []byte) string {
	if !gjson.ValidBytes(payload) {
		return ""
	}
	return gjson.GetBytes(payload, "error").String()
}

func buildAPIURL(base *url.URL, path string, query url.Values) (string, error) {
	if base == nil {
		return "", errors.New("api base url is required")
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return "", errors.New("api base url must use http or https")
	}
	if base.Host == "" {
		return "", errors.New("api base url host is required")
	}

	endpoint, err := base.Parse(path)
	if err != nil {
		return "", fmt.Errorf("parse api path: %w", err)
	}
	if len(query) > 0 {
		endpoint.RawQuery = query.Encode()
	}
	return endpoint.String(), nil
}
