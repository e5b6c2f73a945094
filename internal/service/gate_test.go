package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apperrors "classroom_chat/pkg/errors"
	"classroom_chat/pkg/jwt"
	"classroom_chat/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gateSecret = "gate-secret"

type slowVerifier struct {
	delay time.Duration
}

func (v slowVerifier) Verify(ctx context.Context, _ string) (int64, error) {
	select {
	case <-time.After(v.delay):
		return 7, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func TestSessionGateAdmit(t *testing.T) {
	gate := NewSessionGate(NewJWTVerifier(gateSecret), newMockUserRepo(alice), time.Second, logger.Nop())

	token, err := jwt.GenerateAccessToken(alice.ID, alice.Name, alice.Role, gateSecret, "classroom", time.Minute)
	require.NoError(t, err)

	user, err := gate.Admit(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, user.ID)
	assert.Equal(t, "Alice", user.Name)
}

func TestSessionGateRejects(t *testing.T) {
	gate := NewSessionGate(NewJWTVerifier(gateSecret), newMockUserRepo(alice), time.Second, logger.Nop())

	unknown, err := jwt.GenerateAccessToken(404, "Ghost", "student", gateSecret, "classroom", time.Minute)
	require.NoError(t, err)
	expired, err := jwt.GenerateAccessToken(alice.ID, alice.Name, alice.Role, gateSecret, "classroom", -time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name       string
		credential string
	}{
		{"empty", "   "},
		{"garbage", "not-a-token"},
		{"expired", expired},
		{"unknown user", unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := gate.Admit(context.Background(), tt.credential)
			assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
		})
	}
}

func TestSessionGateTimeout(t *testing.T) {
	gate := NewSessionGate(slowVerifier{delay: time.Second}, newMockUserRepo(alice), 20*time.Millisecond, logger.Nop())

	_, err := gate.Admit(context.Background(), "token")
	assert.ErrorIs(t, err, apperrors.ErrTimeout)
	assert.True(t, apperrors.Retryable(err))
}

func TestAuthServiceClientVerify(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/verify", r.URL.Path)

		var req VerifyTokenRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		w.Header().Set("Content-Type", "application/json")
		switch req.Token {
		case "good":
			_ = json.NewEncoder(w).Encode(VerifyTokenResponse{Valid: true, UserID: "7"})
		case "revoked":
			_ = json.NewEncoder(w).Encode(VerifyTokenResponse{Valid: false})
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer server.Close()

	client := NewAuthServiceClient(server.URL, time.Second)

	userID, err := client.Verify(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, int64(7), userID)

	_, err = client.Verify(context.Background(), "revoked")
	assert.ErrorIs(t, err, apperrors.ErrInvalidToken)

	_, err = client.Verify(context.Background(), "unknown")
	assert.ErrorIs(t, err, apperrors.ErrInvalidToken)
}

func TestSessionGateAuthServiceOutageIsInternal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	gate := NewSessionGate(NewAuthServiceClient(server.URL, time.Second), newMockUserRepo(alice), time.Second, logger.Nop())

	_, err := gate.Admit(context.Background(), "some-token")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInternal)
	assert.NotErrorIs(t, err, apperrors.ErrUnauthorized)
	assert.Equal(t, http.StatusInternalServerError, apperrors.HTTPStatusFromError(err))
	assert.Equal(t, apperrors.CodeInternal, apperrors.Code(err))
}

func TestSessionGateRemoteRejectionIsUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	gate := NewSessionGate(NewAuthServiceClient(server.URL, time.Second), newMockUserRepo(alice), time.Second, logger.Nop())

	_, err := gate.Admit(context.Background(), "revoked-token")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	assert.Equal(t, http.StatusUnauthorized, apperrors.HTTPStatusFromError(err))
}
