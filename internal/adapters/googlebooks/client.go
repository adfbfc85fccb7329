// Package googlebooks provides a client for the Google Books volumes API.
package googlebooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Upstream failure sentinels. Callers map these to response codes.
var (
	ErrRateLimited = errors.New("google books: rate limited")
	ErrUpstream    = errors.New("google books: upstream failure")
)

// Volume is the subset of a Google Books volume the application uses.
type Volume struct {
	ID            string   `json:"id,omitempty"`
	Title         string   `json:"title"`
	Authors       []string `json:"authors"`
	PublishedDate string   `json:"publishedDate,omitempty"`
	Description   string   `json:"description,omitempty"`
	Thumbnail     string   `json:"thumbnail,omitempty"`
	Categories    []string `json:"categories,omitempty"`
	PageCount     int      `json:"pageCount,omitempty"`
	ISBN          string   `json:"isbn,omitempty"`
}

// Config holds client configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client talks to the Google Books volumes endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a Google Books client.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://www.googleapis.com/books/v1"
	}

	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Search returns up to ten Spanish-language volumes whose title matches.
func (c *Client) Search(ctx context.Context, title string) ([]Volume, error) {
	params := url.Values{
		"q":            {"intitle:" + title},
		"maxResults":   {"10"},
		"langRestrict": {"es"},
		"printType":    {"books"},
	}
	payload, err := c.volumes(ctx, params)
	if err != nil {
		return nil, err
	}
	result := make([]Volume, 0, len(payload.Items))
	for _, item := range payload.Items {
		result = append(result, item.toVolume())
	}
	return result, nil
}

// LookupISBN returns metadata for a single ISBN. A missing volume is not an
// error; the caller gets a zero Volume.
func (c *Client) LookupISBN(ctx context.Context, isbn string) (Volume, error) {
	params := url.Values{
		"q":          {"isbn:" + isbn},
		"maxResults": {"1"},
	}
	payload, err := c.volumes(ctx, params)
	if err != nil {
		return Volume{}, err
	}
	if len(payload.Items) == 0 {
		return Volume{}, nil
	}
	v := payload.Items[0].toVolume()
	if v.ISBN == "" {
		v.ISBN = isbn
	}
	return v, nil
}

// Subjects sampled by RandomBook.
var randomSubjects = []string{
	"fiction", "fantasy", "mystery", "romance", "history",
	"science", "poetry", "adventure", "biography", "philosophy",
}

// RandomBook picks a random subject and offset and returns one volume. Thin
// result pages fall back to offset zero before giving up.
func (c *Client) RandomBook(ctx context.Context) (Volume, error) {
	subject := randomSubjects[rand.Intn(len(randomSubjects))]
	for _, start := range []int{rand.Intn(40), 0} {
		params := url.Values{
			"q":            {"subject:" + subject},
			"maxResults":   {"1"},
			"startIndex":   {strconv.Itoa(start)},
			"langRestrict": {"es"},
			"printType":    {"books"},
		}
		payload, err := c.volumes(ctx, params)
		if err != nil {
			return Volume{}, err
		}
		if len(payload.Items) > 0 {
			return payload.Items[0].toVolume(), nil
		}
	}
	return Volume{}, fmt.Errorf("no volume found for subject %q: %w", subject, ErrUpstream)
}

type volumesResponse struct {
	Items []volumeItem `json:"items"`
}

type volumeItem struct {
	ID         string `json:"id"`
	VolumeInfo struct {
		Title               string   `json:"title"`
		Authors             []string `json:"authors"`
		PublishedDate       string   `json:"publishedDate"`
		Description         string   `json:"description"`
		Categories          []string `json:"categories"`
		PageCount           int      `json:"pageCount"`
		IndustryIdentifiers []struct {
			Type       string `json:"type"`
			Identifier string `json:"identifier"`
		} `json:"industryIdentifiers"`
		ImageLinks struct {
			Thumbnail      string `json:"thumbnail"`
			SmallThumbnail string `json:"smallThumbnail"`
		} `json:"imageLinks"`
	} `json:"volumeInfo"`
}

func (it volumeItem) toVolume() Volume {
	vi := it.VolumeInfo
	thumbnail := vi.ImageLinks.Thumbnail
	if thumbnail == "" {
		thumbnail = vi.ImageLinks.SmallThumbnail
	}
	var isbn string
	for _, ident := range vi.IndustryIdentifiers {
		if ident.Type == "ISBN_13" {
			isbn = ident.Identifier
			break
		}
		if ident.Type == "ISBN_10" && isbn == "" {
			isbn = ident.Identifier
		}
	}
	authors := vi.Authors
	if authors == nil {
		authors = []string{}
	}
	return Volume{
		ID:            it.ID,
		Title:         vi.Title,
		Authors:       authors,
		PublishedDate: vi.PublishedDate,
		Description:   vi.Description,
		Thumbnail:     thumbnail,
		Categories:    vi.Categories,
		PageCount:     vi.PageCount,
		ISBN:          isbn,
	}
}

func (c *Client) volumes(ctx context.Context, params url.Values) (volumesResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/volumes?"+params.Encode(), nil)
	if err != nil {
		return volumesResponse{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return volumesResponse{}, fmt.Errorf("send request: %w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return volumesResponse{}, ErrRateLimited
	case resp.StatusCode != http.StatusOK:
		return volumesResponse{}, fmt.Errorf("status %d: %w", resp.StatusCode, ErrUpstream)
	}

	var payload volumesResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return volumesResponse{}, fmt.Errorf("decode response: %w", err)
	}
	return payload, nil
}
