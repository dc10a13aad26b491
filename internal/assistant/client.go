// Package assistant はAIアシスタントAPIのクライアントです
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Client は課題とコードをアシスタントAPIへPOSTします
type Client struct {
	url  string
	http *http.Client
}

func NewClient(url string, timeout time.Duration) *Client {
	return &Client{url: url, http: &http.Client{Timeout: timeout}}
}

type solveRequest struct {
	Content string `json:"content"`
	Code    string `json:"code"`
}

// solveResponse は status が false の場合 content にエラーメッセージが入ります
type solveResponse struct {
	Status  bool   `json:"status"`
	Content string `json:"content"`
}

// Solve はアシスタントの回答を返します
func (c *Client) Solve(ctx context.Context, content, code string) (string, error) {
	b, err := json.Marshal(solveRequest{Content: content, Code: code})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("assistant responded with status %d", resp.StatusCode)
	}

	var out solveResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode assistant response: %w", err)
	}
	if !out.Status {
		return "", errors.New(out.Content)
	}
	return out.Content, nil
}
