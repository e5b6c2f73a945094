package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	apperrors "classroom_chat/pkg/errors"
)

// AuthServiceClient проверяет токены во внешнем auth-сервисе платформы
type AuthServiceClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewAuthServiceClient(baseURL string, timeout time.Duration) *AuthServiceClient {
	return &AuthServiceClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type VerifyTokenRequest struct {
	Token string `json:"token"`
}

// VerifyTokenResponse - ответ auth-сервиса. user_id приходит строкой
type VerifyTokenResponse struct {
	Valid     bool   `json:"valid"`
	UserID    string `json:"user_id,omitempty"`
	ExpiresAt *int64 `json:"expires_at,omitempty"`
}

// Verify возвращает id пользователя, которому выдан токен
func (c *AuthServiceClient) Verify(ctx context.Context, token string) (int64, error) {
	body, err := json.Marshal(VerifyTokenRequest{Token: token})
	if err != nil {
		return 0, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/verify", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return 0, apperrors.ErrInvalidToken
	case resp.StatusCode != http.StatusOK:
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return 0, fmt.Errorf("auth service returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var response VerifyTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return 0, fmt.Errorf("failed to decode response: %w", err)
	}

	if !response.Valid {
		return 0, apperrors.ErrInvalidToken
	}
	userID, err := strconv.ParseInt(response.UserID, 10, 64)
	if err != nil || userID <= 0 {
		return 0, fmt.Errorf("%w: bad user_id %q", apperrors.ErrInvalidToken, response.UserID)
	}

	return userID, nil
}
