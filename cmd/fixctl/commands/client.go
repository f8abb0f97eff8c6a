// Package commands implements the fixctl CLI commands.
package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// adminClient is a plain HTTP/JSON client for the fixserver admin API.
type adminClient struct {
	baseURL string
	hc      *http.Client
}

func newAdminClient(addr string) *adminClient {
	return &adminClient{
		baseURL: "http://" + addr,
		hc:      &http.Client{Timeout: 10 * time.Second},
	}
}

type sessionView struct {
	SessionID        string `json:"session_id"`
	BeginString      string `json:"begin_string"`
	SenderCompID     string `json:"sender_comp_id"`
	TargetCompID     string `json:"target_comp_id"`
	Enabled          bool   `json:"enabled"`
	LoggedOn         bool   `json:"logged_on"`
	Connected        bool   `json:"connected"`
	NextSenderSeqNum uint64 `json:"next_sender_seq_num"`
	NextTargetSeqNum uint64 `json:"next_target_seq_num"`
}

type seqNumsView struct {
	NextSenderSeqNum uint64 `json:"next_sender_seq_num"`
	NextTargetSeqNum uint64 `json:"next_target_seq_num"`
}

type eventView struct {
	SessionID string    `json:"session_id"`
	State     string    `json:"state"`
	Timestamp time.Time `json:"timestamp"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (c *adminClient) do(ctx context.Context, method, path string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error != "" {
			return fmt.Errorf("%s %s: %s (%d)", method, path, errResp.Error, resp.StatusCode)
		}
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *adminClient) listSessions(ctx context.Context) ([]sessionView, error) {
	var views []sessionView
	if err := c.do(ctx, http.MethodGet, "/sessions/", nil, &views); err != nil {
		return nil, err
	}
	return views, nil
}

func (c *adminClient) getSession(ctx context.Context, id string) (sessionView, error) {
	var view sessionView
	err := c.do(ctx, http.MethodGet, "/sessions/"+id+"/", nil, &view)
	return view, err
}

func (c *adminClient) logon(ctx context.Context, id string) (sessionView, error) {
	var view sessionView
	err := c.do(ctx, http.MethodPost, "/sessions/"+id+"/logon", nil, &view)
	return view, err
}

func (c *adminClient) logout(ctx context.Context, id, reason string) (sessionView, error) {
	var view sessionView
	err := c.do(ctx, http.MethodPost, "/sessions/"+id+"/logout", map[string]string{"reason": reason}, &view)
	return view, err
}

func (c *adminClient) reset(ctx context.Context, id string) (sessionView, error) {
	var view sessionView
	err := c.do(ctx, http.MethodPost, "/sessions/"+id+"/reset", nil, &view)
	return view, err
}

func (c *adminClient) getSeqNums(ctx context.Context, id string) (seqNumsView, error) {
	var view seqNumsView
	err := c.do(ctx, http.MethodGet, "/sessions/"+id+"/seqnums", nil, &view)
	return view, err
}

func (c *adminClient) setSeqNums(ctx context.Context, id string, req seqNumsView) (sessionView, error) {
	var view sessionView
	err := c.do(ctx, http.MethodPut, "/sessions/"+id+"/seqnums", req, &view)
	return view, err
}
