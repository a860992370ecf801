package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/harshhpatil/recipegramapp-sub000/internal/model"
)

// APIError is a non-success envelope returned by the REST facade
type APIError struct {
	Status  int
	Kind    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Kind, e.Message)
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// SendRequest is the REST body of a send
type SendRequest struct {
	RecipientID     string  `json:"recipientId"`
	Content         string  `json:"content"`
	Image           *string `json:"image,omitempty"`
	ParentMessageID string  `json:"parentMessageId,omitempty"`
	ClientTempID    string  `json:"clientTempId,omitempty"`
}

// REST calls the messaging REST facade on behalf of one user
type REST struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewREST(baseURL, token string, httpClient *http.Client) *REST {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &REST{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    httpClient,
	}
}

func (r *REST) SendMessage(ctx context.Context, req SendRequest) (*model.Message, error) {
	var msg model.Message
	if err := r.do(ctx, http.MethodPost, "/api/messages", req, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *REST) Conversations(ctx context.Context) ([]model.ConversationSummary, error) {
	var rows []model.ConversationSummary
	if err := r.do(ctx, http.MethodGet, "/api/messages", nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *REST) UnreadCount(ctx context.Context) (int64, error) {
	var out struct {
		Count int64 `json:"count"`
	}
	if err := r.do(ctx, http.MethodGet, "/api/messages/unread/count", nil, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

// Messages fetches one page of the conversation with partnerID; zero page or
// limit leaves the server default
func (r *REST) Messages(ctx context.Context, partnerID string, page, limit int64) (*model.MessagePage, error) {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.FormatInt(page, 10))
	}
	if limit > 0 {
		q.Set("limit", strconv.FormatInt(limit, 10))
	}
	path := "/api/messages/" + url.PathEscape(partnerID)
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out model.MessagePage
	if err := r.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *REST) MarkRead(ctx context.Context, messageID string) (*model.Message, error) {
	var msg model.Message
	if err := r.do(ctx, http.MethodPut, "/api/messages/"+url.PathEscape(messageID)+"/read", nil, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *REST) MarkConversationRead(ctx context.Context, partnerID string) ([]string, error) {
	var out struct {
		MessageIDs []string `json:"messageIds"`
	}
	if err := r.do(ctx, http.MethodPut, "/api/conversations/"+url.PathEscape(partnerID)+"/read", nil, &out); err != nil {
		return nil, err
	}
	return out.MessageIDs, nil
}

func (r *REST) DeleteMessage(ctx context.Context, messageID string) error {
	return r.do(ctx, http.MethodDelete, "/api/messages/"+url.PathEscape(messageID), nil, nil)
}

func (r *REST) Presence(ctx context.Context, userID string) (bool, error) {
	var out struct {
		Online bool `json:"online"`
	}
	if err := r.do(ctx, http.MethodGet, "/api/presence/"+url.PathEscape(userID), nil, &out); err != nil {
		return false, err
	}
	return out.Online, nil
}

func (r *REST) do(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+r.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return &APIError{Status: resp.StatusCode, Kind: "internal_error", Message: "malformed response"}
	}
	if !env.Success || resp.StatusCode >= http.StatusBadRequest {
		return &APIError{Status: resp.StatusCode, Kind: env.Error, Message: env.Message}
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}
