// Package client talks to the bruhbug API on behalf of the CLI.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"bruhbug-service/internal/entity"
	"bruhbug-service/internal/session"
)

type Client struct {
	base    *url.URL
	http    *http.Client
	dialer  *websocket.Dialer
	session *session.Context
	log     *zap.Logger
}

// New builds a client for the API at baseURL. Requests carry the token held by sess.
func New(baseURL string, sess *session.Context, timeout time.Duration, log *zap.Logger) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: invalid api url %q", entity.ErrValidation, baseURL)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		base:    u,
		http:    &http.Client{Timeout: timeout},
		dialer:  &websocket.Dialer{HandshakeTimeout: timeout},
		session: sess,
		log:     log.Named("client"),
	}, nil
}

type executionReq struct {
	BugDescription string `json:"bugDescription"`
	DocumentID     string `json:"documentId"`
	Shared         bool   `json:"shared"`
}

type apiError struct {
	Message string `json:"message"`
}

type listResp struct {
	Documents []*entity.BugRecord `json:"documents"`
}

// Dispatch triggers the worker. It returns once the API accepted the trigger.
func (c *Client) Dispatch(ctx context.Context, task entity.Task) error {
	body := executionReq{BugDescription: task.Description, DocumentID: task.DocumentID, Shared: task.Shared}
	resp, err := c.do(ctx, http.MethodPost, "/executions", body)
	if err != nil {
		return fmt.Errorf("%w: %v", entity.ErrDispatch, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusAccepted, http.StatusOK:
		return nil
	case http.StatusConflict:
		return fmt.Errorf("%w: %w", entity.ErrDispatch, entity.ErrDuplicate)
	}
	err = errorFor(resp)
	if resp.StatusCode >= 500 && !errors.Is(err, entity.ErrDispatch) {
		return fmt.Errorf("%w: %v", entity.ErrDispatch, err)
	}
	return err
}

// Invoke runs the worker synchronously and returns the roast before it is persisted.
func (c *Client) Invoke(ctx context.Context, task entity.Task) (string, error) {
	body := executionReq{BugDescription: task.Description, DocumentID: task.DocumentID, Shared: task.Shared}
	resp, err := c.do(ctx, http.MethodPost, "/roasts", body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", entity.ErrDispatch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errorFor(resp)
	}
	var out struct {
		Roast string `json:"roast"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode roast: %v", entity.ErrTransport, err)
	}
	return out.Roast, nil
}

// GetRecord fetches one record; a missing or hidden record is entity.ErrNotFound.
func (c *Client) GetRecord(ctx context.Context, id string) (*entity.BugRecord, error) {
	resp, err := c.do(ctx, http.MethodGet, "/bugs/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errorFor(resp)
	}
	var rec entity.BugRecord
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return nil, fmt.Errorf("%w: decode record: %v", entity.ErrTransport, err)
	}
	return &rec, nil
}

func (c *Client) ListMine(ctx context.Context, limit int) ([]*entity.BugRecord, error) {
	return c.list(ctx, "/bugs/mine", limit)
}

func (c *Client) ListFeed(ctx context.Context, limit int) ([]*entity.BugRecord, error) {
	return c.list(ctx, "/bugs/feed", limit)
}

func (c *Client) list(ctx context.Context, path string, limit int) ([]*entity.BugRecord, error) {
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errorFor(resp)
	}
	var out listResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode list: %v", entity.ErrTransport, err)
	}
	return out.Documents, nil
}

// Me is getCurrentUser: the session's user, or entity.ErrAuthRequired.
func (c *Client) Me(ctx context.Context) (*entity.User, error) {
	if c.session.Token() == "" {
		return nil, entity.ErrAuthRequired
	}
	resp, err := c.do(ctx, http.MethodGet, "/auth/me", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errorFor(resp)
	}
	var u entity.User
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return nil, fmt.Errorf("%w: decode user: %v", entity.ErrTransport, err)
	}
	return &u, nil
}

// DevLogin opens a session against a development server and populates the session context.
func (c *Client) DevLogin(ctx context.Context, userID string, prefs entity.Preferences) (string, *entity.User, error) {
	body := map[string]string{
		"userId":      userID,
		"displayName": prefs.DisplayName,
		"handle":      prefs.Handle,
		"avatarRef":   prefs.AvatarRef,
	}
	resp, err := c.do(ctx, http.MethodPost, "/auth/dev-login", body)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", entity.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", nil, errorFor(resp)
	}
	var out struct {
		Token string      `json:"token"`
		User  entity.User `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", nil, fmt.Errorf("%w: decode login: %v", entity.ErrTransport, err)
	}
	c.session.Populate(out.Token, &out.User)
	return out.Token, &out.User, nil
}

// Logout ends the server session and clears the session context.
func (c *Client) Logout(ctx context.Context) error {
	defer c.session.Clear()
	if c.session.Token() == "" {
		return nil
	}
	resp, err := c.do(ctx, http.MethodDelete, "/auth/session", nil)
	if err != nil {
		return fmt.Errorf("%w: %v", entity.ErrTransport, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return errorFor(resp)
	}
	return nil
}

// Subscribe opens the realtime websocket. The returned channel is closed when
// the connection drops or ctx is done.
func (c *Client) Subscribe(ctx context.Context) (<-chan entity.RecordEvent, error) {
	u := *c.base
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/realtime"

	header := http.Header{}
	if tok := c.session.Token(); tok != "" {
		header.Set("Authorization", "Bearer "+tok)
	}
	conn, resp, err := c.dialer.DialContext(ctx, u.String(), header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: dial realtime: %v", entity.ErrTransport, err)
	}

	out := make(chan entity.RecordEvent, 16)
	done := make(chan struct{})

	// closing the conn unblocks the reader when ctx ends first
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		conn.Close()
	}()

	go func() {
		defer close(out)
		defer close(done)
		for {
			var ev entity.RecordEvent
			if err := conn.ReadJSON(&ev); err != nil {
				if ctx.Err() == nil {
					c.log.Debug("realtime stream ended", zap.Error(err))
				}
				return
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rdr = bytes.NewReader(buf)
	}

	target := c.base.String() + path
	req, err := http.NewRequestWithContext(ctx, method, target, rdr)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if tok := c.session.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	return c.http.Do(req)
}

// errorFor maps an API error response back onto the error taxonomy.
func errorFor(resp *http.Response) error {
	var body apiError
	_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body)
	msg := body.Message
	if msg == "" {
		msg = resp.Status
	}

	switch resp.StatusCode {
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", entity.ErrValidation, msg)
	case http.StatusUnauthorized:
		return entity.ErrAuthRequired
	case http.StatusNotFound:
		return entity.ErrNotFound
	case http.StatusConflict:
		return entity.ErrDuplicate
	case http.StatusBadGateway:
		return fmt.Errorf("%w: %s", entity.ErrGeneration, msg)
	case http.StatusServiceUnavailable:
		return fmt.Errorf("%w: %s", entity.ErrDispatch, msg)
	}
	return fmt.Errorf("%w: %s", entity.ErrTransport, msg)
}
