package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var _ Client = (*HTTPClient)(nil)

// HTTPClient talks to a record store over its JSON REST protocol.
type HTTPClient struct {
	baseURL    string
	token      string
	userAgent  string
	httpClient *http.Client
}

func NewHTTPClient(baseURL, token, userAgent string, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		userAgent:  userAgent,
		httpClient: httpClient,
	}
}

type changesResponse struct {
	Changed []json.RawMessage `json:"changed"`
	Deleted []RecordKey       `json:"deleted"`
	Token   string            `json:"token"`
}

type pushRequest struct {
	Records []json.RawMessage `json:"records"`
}

type pushResponse struct {
	Results []struct {
		ID       string `json:"id"`
		RemoteID string `json:"remoteID"`
		Error    *struct {
			Code    ErrorCode `json:"code"`
			Message string    `json:"message"`
		} `json:"error,omitempty"`
	} `json:"results"`
}

func (c *HTTPClient) AccountAvailable(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/v1/accounts/self", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return NewError(CodeAccountPending, "account not yet provisioned")
	default:
		return classifyStatus(resp.StatusCode)
	}
}

func (c *HTTPClient) CreateAccount(ctx context.Context, username string) (string, error) {
	body, err := json.Marshal(map[string]string{"username": username})
	if err != nil {
		return "", fmt.Errorf("failed to encode account request: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/v1/accounts", body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", classifyStatus(resp.StatusCode)
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode account response: %w", err)
	}
	if result.ID == "" {
		return "", NewError(CodeBadRequest, "account response carried no ID")
	}

	return result.ID, nil
}

func (c *HTTPClient) FetchChanges(ctx context.Context, zone Zone, sinceToken string) (*ChangeSet, error) {
	path := fmt.Sprintf("/v1/zones/%s/changes", zone)
	if sinceToken != "" {
		path += "?since=" + url.QueryEscape(sinceToken)
	}

	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp.StatusCode)
	}

	var raw changesResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode changes response: %w", err)
	}

	changeSet := &ChangeSet{Deleted: raw.Deleted, Token: raw.Token}
	for _, data := range raw.Changed {
		record, err := DecodeRecord(data)
		if err != nil {
			return nil, err
		}
		changeSet.Changed = append(changeSet.Changed, record)
	}

	return changeSet, nil
}

func (c *HTTPClient) PushRecords(ctx context.Context, zone Zone, records []Record) ([]PushResult, error) {
	var request pushRequest
	for _, record := range records {
		data, err := EncodeRecord(record)
		if err != nil {
			return nil, err
		}
		request.Records = append(request.Records, data)
	}

	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to encode push request: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/v1/zones/%s/records", zone), body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp.StatusCode)
	}

	var raw pushResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode push response: %w", err)
	}

	results := make([]PushResult, 0, len(raw.Results))
	for _, r := range raw.Results {
		result := PushResult{ID: r.ID, RemoteID: r.RemoteID}
		if r.Error != nil {
			result.Err = NewError(r.Error.Code, r.Error.Message)
		}
		results = append(results, result)
	}

	return results, nil
}

func (c *HTTPClient) DeleteRecord(ctx context.Context, zone Zone, id string) error {
	path := fmt.Sprintf("/v1/zones/%s/records/%s", zone, url.PathEscape(id))

	resp, err := c.do(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	default:
		return classifyStatus(resp.StatusCode)
	}
}

func (c *HTTPClient) Subscribe(ctx context.Context, zone Zone) error {
	body, err := json.Marshal(map[string]string{"zone": string(zone)})
	if err != nil {
		return fmt.Errorf("failed to encode subscription request: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/v1/subscriptions", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return classifyStatus(resp.StatusCode)
	}

	return nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Transport failures are always retryable.
		return nil, NewError(CodeUnavailable, err.Error())
	}

	return resp, nil
}

func classifyStatus(status int) *Error {
	switch {
	case status == http.StatusTooManyRequests:
		return NewError(CodeThrottled, "rate limited")
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return NewError(CodeAuthFailed, fmt.Sprintf("authentication failed (HTTP %d)", status))
	case status == http.StatusNotFound:
		return NewError(CodeNotFound, "record not found")
	case status == http.StatusGone:
		return NewError(CodeZoneNotFound, "zone deleted remotely")
	case status >= 500:
		return NewError(CodeUnavailable, fmt.Sprintf("service unavailable (HTTP %d)", status))
	default:
		return NewError(CodeBadRequest, fmt.Sprintf("unexpected HTTP status %d", status))
	}
}
