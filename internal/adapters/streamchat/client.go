// Package streamchat is a server-side REST client for the Stream Chat API.
// All channels are of the built-in "messaging" type; book discussion channel
// ids are derived from the ISBN or, for legacy channels, the title slug.
package streamchat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Upstream failure sentinels. Callers map these to response codes.
var (
	ErrRateLimited = errors.New("stream chat: rate limited")
	ErrUpstream    = errors.New("stream chat: upstream failure")
)

const channelType = "messaging"

// User is the Stream-side representation of an account.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Image string `json:"image,omitempty"`
}

// ChannelData holds the custom fields set when a channel is created.
type ChannelData struct {
	Name      string `json:"name,omitempty"`
	BookTitle string `json:"book_title,omitempty"`
	BookISBN  string `json:"book_isbn,omitempty"`
	Image     string `json:"image,omitempty"`
}

// ChannelInfo is the subset of channel state the application exposes.
type ChannelInfo struct {
	ID          string
	Name        string
	BookTitle   string
	Image       string
	CreatedByID string
	MemberCount int
}

// Member is one channel member.
type Member struct {
	UserID string
	Name   string
	Image  string
}

// Config holds client configuration.
type Config struct {
	APIKey    string
	APISecret string
	BaseURL   string
	Timeout   time.Duration
}

// Client talks to the Stream Chat REST API with server-side credentials.
type Client struct {
	apiKey      string
	secret      []byte
	baseURL     string
	serverToken string
	httpClient  *http.Client
}

// New creates a Stream Chat client. The server token authenticating every
// request is minted once here.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, errors.New("stream chat: api key and secret required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://chat.stream-io-api.com"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	c := &Client{
		apiKey:  cfg.APIKey,
		secret:  []byte(cfg.APISecret),
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"server": true}).SignedString(c.secret)
	if err != nil {
		return nil, fmt.Errorf("sign server token: %w", err)
	}
	c.serverToken = token
	return c, nil
}

// UserToken mints the client-side connection token for a user.
func (c *Client) UserToken(userID string) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": userID}).SignedString(c.secret)
}

// UpsertUser creates or updates the Stream-side user record.
func (c *Client) UpsertUser(ctx context.Context, u User) error {
	payload := map[string]any{
		"users": map[string]User{u.ID: u},
	}
	return c.do(ctx, http.MethodPost, "/users", payload, nil)
}

// CreateOrGetChannel creates the channel if it does not exist and ensures the
// given user is a member either way. Custom data only applies on creation;
// an existing channel keeps its fields.
func (c *Client) CreateOrGetChannel(ctx context.Context, channelID, userID string, data ChannelData) (ChannelInfo, error) {
	payload := map[string]any{
		"data": map[string]any{
			"name":          data.Name,
			"book_title":    data.BookTitle,
			"book_isbn":     data.BookISBN,
			"image":         data.Image,
			"created_by_id": userID,
			"members":       []string{userID},
		},
		"state": true,
	}

	var resp channelResponse
	if err := c.do(ctx, http.MethodPost, "/channels/"+channelType+"/"+url.PathEscape(channelID)+"/query", payload, &resp); err != nil {
		return ChannelInfo{}, err
	}

	// Query-create only adds members on creation; re-adding is a no-op.
	if err := c.AddMember(ctx, channelID, userID); err != nil {
		return ChannelInfo{}, err
	}
	return resp.info(), nil
}

// AddMember adds a user to an existing channel.
func (c *Client) AddMember(ctx context.Context, channelID, userID string) error {
	payload := map[string]any{
		"add_members": []string{userID},
	}
	return c.do(ctx, http.MethodPost, "/channels/"+channelType+"/"+url.PathEscape(channelID), payload, nil)
}

// QueryChannelsByPrefix lists every messaging channel whose id starts with the
// given prefix, most recently active first.
func (c *Client) QueryChannelsByPrefix(ctx context.Context, prefix string) ([]ChannelInfo, error) {
	payload := map[string]any{
		"filter_conditions": map[string]any{
			"type": channelType,
			"id":   map[string]any{"$autocomplete": prefix},
		},
		"sort":          []map[string]any{{"field": "last_message_at", "direction": -1}},
		"state":         true,
		"message_limit": 0,
	}

	var resp struct {
		Channels []channelResponse `json:"channels"`
	}
	if err := c.do(ctx, http.MethodPost, "/channels", payload, &resp); err != nil {
		return nil, err
	}

	result := make([]ChannelInfo, 0, len(resp.Channels))
	for _, ch := range resp.Channels {
		result = append(result, ch.info())
	}
	return result, nil
}

// ChannelMembers returns the members of a channel.
func (c *Client) ChannelMembers(ctx context.Context, channelID string) ([]Member, error) {
	payload := map[string]any{
		"state": true,
	}

	var resp channelResponse
	if err := c.do(ctx, http.MethodPost, "/channels/"+channelType+"/"+url.PathEscape(channelID)+"/query", payload, &resp); err != nil {
		return nil, err
	}

	result := make([]Member, 0, len(resp.Members))
	for _, m := range resp.Members {
		member := Member{UserID: m.UserID}
		if m.User != nil {
			member.Name = m.User.Name
			member.Image = m.User.Image
		}
		result = append(result, member)
	}
	return result, nil
}

// UpdateChannelImage sets the channel avatar without touching other fields.
func (c *Client) UpdateChannelImage(ctx context.Context, channelID, image string) error {
	payload := map[string]any{
		"set": map[string]any{"image": image},
	}
	return c.do(ctx, http.MethodPatch, "/channels/"+channelType+"/"+url.PathEscape(channelID), payload, nil)
}

type channelResponse struct {
	Channel struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		BookTitle   string `json:"book_title"`
		Image       string `json:"image"`
		MemberCount int    `json:"member_count"`
		CreatedBy   *struct {
			ID string `json:"id"`
		} `json:"created_by"`
	} `json:"channel"`
	Members []struct {
		UserID string `json:"user_id"`
		User   *User  `json:"user"`
	} `json:"members"`
}

func (r channelResponse) info() ChannelInfo {
	info := ChannelInfo{
		ID:          r.Channel.ID,
		Name:        r.Channel.Name,
		BookTitle:   r.Channel.BookTitle,
		Image:       r.Channel.Image,
		MemberCount: r.Channel.MemberCount,
	}
	if info.MemberCount == 0 && len(r.Members) > 0 {
		info.MemberCount = len(r.Members)
	}
	if r.Channel.CreatedBy != nil {
		info.CreatedByID = r.Channel.CreatedBy.ID
	}
	return info
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path+"?api_key="+url.QueryEscape(c.apiKey), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.serverToken)
	req.Header.Set("Stream-Auth-Type", "jwt")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("status %d: %w", resp.StatusCode, ErrUpstream)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
