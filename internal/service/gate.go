package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"classroom_chat/internal/domain"
	"classroom_chat/internal/repository"
	apperrors "classroom_chat/pkg/errors"
	"classroom_chat/pkg/jwt"
	"classroom_chat/pkg/logger"
)

// TokenVerifier - внешний коллаборатор, который знает, кому выдан токен
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (int64, error)
}

// JWTVerifier проверяет токен локально по общему секрету
type JWTVerifier struct {
	secret string
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: secret}
}

func (v *JWTVerifier) Verify(_ context.Context, token string) (int64, error) {
	claims, err := jwt.ValidateToken(token, v.secret)
	if err != nil {
		return 0, err
	}
	return claims.UserID, nil
}

// SessionGate допускает соединение только с проверенным токеном
type SessionGate interface {
	Admit(ctx context.Context, credential string) (*domain.User, error)
}

type sessionGate struct {
	verifier TokenVerifier
	userRepo repository.UserRepository
	timeout  time.Duration
	log      logger.Logger
}

func NewSessionGate(verifier TokenVerifier, userRepo repository.UserRepository, timeout time.Duration, log logger.Logger) SessionGate {
	return &sessionGate{
		verifier: verifier,
		userRepo: userRepo,
		timeout:  timeout,
		log:      log,
	}
}

func (g *sessionGate) Admit(ctx context.Context, credential string) (*domain.User, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return nil, fmt.Errorf("%w: missing credential", apperrors.ErrUnauthorized)
	}

	ctx, cancel := withLookupTimeout(ctx, g.timeout)
	defer cancel()

	userID, err := g.verifier.Verify(ctx, credential)
	if err != nil {
		if err = lookupError(ctx, "token verification", err); errors.Is(err, apperrors.ErrTimeout) {
			g.log.Warn("Token verification timed out")
			return nil, err
		}
		if isCredentialError(err) {
			g.log.Debug("Credential rejected", "error", err)
			return nil, fmt.Errorf("%w: %v", apperrors.ErrUnauthorized, err)
		}
		g.log.Error("Token verification failed", "error", err)
		return nil, internalError("token verification", err)
	}

	user, err := g.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown user %d", apperrors.ErrUnauthorized, userID)
		}
		return nil, internalError("load user", lookupError(ctx, "user lookup", err))
	}

	return user, nil
}

// isCredentialError отличает плохой токен от отказа самого auth-сервиса
func isCredentialError(err error) bool {
	return errors.Is(err, apperrors.ErrInvalidToken) ||
		errors.Is(err, apperrors.ErrTokenExpired) ||
		errors.Is(err, apperrors.ErrUnauthorized)
}
