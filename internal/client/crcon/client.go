package crcon

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const DefaultTimeout = 10 * time.Second

// ServerStatus is what one public_info query yields.
type ServerStatus struct {
	ServerName  string
	PlayerCount int
	MapName     string
}

// FetchError carries the cause of a failed status query. StatusCode is zero
// when no HTTP response was received.
type FetchError struct {
	URL        string
	StatusCode int
	Body       string
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: http %d: %s", e.URL, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

type Client struct {
	httpClient *http.Client
}

// NewClient wraps httpClient; a nil client gets one with DefaultTimeout.
func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{httpClient: httpClient}
}

func (c *Client) Fetch(ctx context.Context, apiURL string) (ServerStatus, error) {
	apiURL = strings.TrimSpace(apiURL)
	if apiURL == "" {
		return ServerStatus{}, &FetchError{Err: errors.New("api_url is empty")}
	}
	body, err := c.doRequest(ctx, apiURL)
	if err != nil {
		return ServerStatus{}, err
	}
	st, err := parsePublicInfo(body)
	if err != nil {
		return ServerStatus{}, &FetchError{URL: apiURL, Err: err}
	}
	return st, nil
}

func (c *Client) doRequest(ctx context.Context, fullURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, &FetchError{URL: fullURL, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{URL: fullURL, Err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, &FetchError{URL: fullURL, Err: fmt.Errorf("failed to read response: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &FetchError{
			URL:        fullURL,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
			Err:        fmt.Errorf("http %d", resp.StatusCode),
		}
	}
	return body, nil
}

type publicInfoResponse struct {
	Result *publicInfo `json:"result"`
	Failed bool        `json:"failed"`
	Error  any         `json:"error"`
}

type publicInfo struct {
	Name        json.RawMessage `json:"name"`
	PlayerCount *int            `json:"player_count"`
	CurrentMap  *struct {
		HumanName  string `json:"human_name"`
		PrettyName string `json:"pretty_name"`
		Map        *struct {
			PrettyName string `json:"pretty_name"`
		} `json:"map"`
	} `json:"current_map"`
}

func parsePublicInfo(body []byte) (ServerStatus, error) {
	var resp publicInfoResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return ServerStatus{}, fmt.Errorf("decode public_info: %w", err)
	}
	if resp.Failed {
		return ServerStatus{}, fmt.Errorf("crcon reported failure: %v", resp.Error)
	}
	info := resp.Result
	if info == nil {
		return ServerStatus{}, errors.New("response has no result")
	}
	if info.PlayerCount == nil {
		return ServerStatus{}, errors.New("result.player_count missing")
	}
	if *info.PlayerCount < 0 {
		return ServerStatus{}, fmt.Errorf("result.player_count %d is negative", *info.PlayerCount)
	}
	name, err := parseName(info.Name)
	if err != nil {
		return ServerStatus{}, err
	}

	var mapName string
	if info.CurrentMap != nil {
		mapName = strings.TrimSpace(info.CurrentMap.HumanName)
		if mapName == "" {
			mapName = strings.TrimSpace(info.CurrentMap.PrettyName)
		}
		if mapName == "" && info.CurrentMap.Map != nil {
			mapName = strings.TrimSpace(info.CurrentMap.Map.PrettyName)
		}
	}
	if mapName == "" {
		return ServerStatus{}, errors.New("result.current_map name missing")
	}

	return ServerStatus{ServerName: name, PlayerCount: *info.PlayerCount, MapName: mapName}, nil
}

// parseName accepts "name": "..." as well as "name": {"name": "..."}.
func parseName(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return "", errors.New("result.name missing")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s), nil
	}
	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", fmt.Errorf("decode result.name: %w", err)
	}
	if strings.TrimSpace(obj.Name) == "" {
		return "", errors.New("result.name missing")
	}
	return strings.TrimSpace(obj.Name), nil
}
