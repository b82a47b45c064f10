package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// client is a thin HTTP client for the daemon's /v1 control surface
// (SPEC_FULL.md §6), keyed by an opaque client token standing in for the
// bus-name identity a write-lock is scoped to.
type client struct {
	baseURL string
	token   string
	http    *http.Client
}

func newClient(baseURL, token string) *client {
	return &client{baseURL: strings.TrimRight(baseURL, "/"), token: token, http: &http.Client{Timeout: 10 * time.Second}}
}

type statusResponse struct {
	DataBasePath string                      `json:"DataBasePath"`
	IsScanning   bool                        `json:"IsScanning"`
	WriteLocked  bool                        `json:"WriteLocked"`
	UpdateID     uint64                      `json:"UpdateID"`
	Categories   map[string]categoryResponse `json:"Categories"`
}

type categoryResponse struct {
	Dirs    []string `json:"dirs"`
	Parsers []string `json:"parsers"`
}

// rpcError is returned when the daemon replies with a named error from
// spec.md §6 (e.g. "AlreadyScanning").
type rpcError struct {
	Name   string
	Status int
}

func (e *rpcError) Error() string { return e.Name }

func (c *client) do(method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("X-Client-Token", c.token)
	}
	return c.http.Do(req)
}

func (c *client) Status() (*statusResponse, error) {
	resp, err := c.do(http.MethodGet, "/v1/status", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errorFromResponse(resp)
	}
	var st statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	return &st, nil
}

func (c *client) Scan(spec map[string][]string) error {
	resp, err := c.do(http.MethodPost, "/v1/scan", spec)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		return errorFromResponse(resp)
	}
	return nil
}

func (c *client) Stop() error {
	resp, err := c.do(http.MethodPost, "/v1/stop", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		return errorFromResponse(resp)
	}
	return nil
}

func (c *client) AcquireWriteLock() error {
	resp, err := c.do(http.MethodPost, "/v1/write-lock", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		return errorFromResponse(resp)
	}
	return nil
}

func (c *client) ReleaseWriteLock() error {
	resp, err := c.do(http.MethodDelete, "/v1/write-lock", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		return errorFromResponse(resp)
	}
	return nil
}

func errorFromResponse(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Error == "" {
		return &rpcError{Name: resp.Status, Status: resp.StatusCode}
	}
	return &rpcError{Name: body.Error, Status: resp.StatusCode}
}

// sseEvent is one frame read off /v1/events.
type sseEvent struct {
	Event string
	Data  string
}

// StreamEvents opens a long-lived SSE connection and delivers frames to
// events until the connection closes or stop is called, then closes events.
// The caller is responsible for calling the returned stop func.
func (c *client) StreamEvents(events chan<- sseEvent) (stop func(), err error) {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+"/v1/events", nil)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("X-Client-Token", c.token)
	}
	req.Header.Set("Accept", "text/event-stream")

	// The stream is long-lived by design, so it can't go through c.http:
	// http.Client.Timeout bounds the whole request including body reads,
	// which would cut the connection mid-scan.
	streamHTTP := &http.Client{}
	resp, err := streamHTTP.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, errorFromResponse(resp)
	}

	done := make(chan struct{})
	go func() {
		defer close(events)
		scanner := bufio.NewScanner(resp.Body)
		var ev sseEvent
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case strings.HasPrefix(line, "event: "):
				ev.Event = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				ev.Data = strings.TrimPrefix(line, "data: ")
			case line == "":
				if ev.Event != "" {
					select {
					case events <- ev:
					case <-done:
						return
					}
				}
				ev = sseEvent{}
			}
		}
	}()

	return func() {
		close(done)
		resp.Body.Close()
	}, nil
}
