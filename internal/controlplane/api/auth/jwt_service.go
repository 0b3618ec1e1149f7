package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/marmos91/nexusd/pkg/controlplane/models"
)

var (
	ErrInvalidToken        = errors.New("invalid token")
	ErrExpiredToken        = errors.New("token has expired")
	ErrInvalidTokenType    = errors.New("invalid token type")
	ErrTokenSigningFailed  = errors.New("failed to sign token")
	ErrInvalidSecretLength = errors.New("JWT secret must be at least 32 characters")
)

// DefaultIssuer is the iss claim of every token.
const DefaultIssuer = "nexusd"

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
	minSecretLength   = 32
)

// JWTConfig holds configuration for JWT token generation.
type JWTConfig struct {
	// Secret is the HMAC signing key.
	Secret string

	Issuer               string
	AccessTokenDuration  time.Duration
	RefreshTokenDuration time.Duration
}

// JWTService signs and verifies HS256 tokens for one issuer.
type JWTService struct {
	config JWTConfig
	key    []byte
	parser *jwt.Parser
}

// TokenPair is what login and refresh hand out.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int64     `json:"expires_in"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// NewJWTService creates a JWT service. Zero durations default to 15 minutes
// for access tokens and 7 days for refresh tokens.
func NewJWTService(config JWTConfig) (*JWTService, error) {
	if len(config.Secret) < minSecretLength {
		return nil, ErrInvalidSecretLength
	}
	if config.Issuer == "" {
		config.Issuer = DefaultIssuer
	}
	if config.AccessTokenDuration == 0 {
		config.AccessTokenDuration = defaultAccessTTL
	}
	if config.RefreshTokenDuration == 0 {
		config.RefreshTokenDuration = defaultRefreshTTL
	}

	return &JWTService{
		config: config,
		key:    []byte(config.Secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(config.Issuer),
			jwt.WithIssuedAt(),
		),
	}, nil
}

// GenerateTokenPair issues an access and a refresh token for user. Both
// carry the same issue time and distinct token IDs.
func (s *JWTService) GenerateTokenPair(user *models.User) (*TokenPair, error) {
	now := time.Now()
	accessExp := now.Add(s.config.AccessTokenDuration)

	access, err := s.sign(user, TokenTypeAccess, now, accessExp)
	if err != nil {
		return nil, fmt.Errorf("access token: %w", err)
	}
	refresh, err := s.sign(user, TokenTypeRefresh, now, now.Add(s.config.RefreshTokenDuration))
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.config.AccessTokenDuration / time.Second),
		ExpiresAt:    accessExp,
	}, nil
}

func (s *JWTService) sign(user *models.User, typ TokenType, iat, exp time.Time) (string, error) {
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.config.Issuer,
			Subject:   user.Username,
			IssuedAt:  jwt.NewNumericDate(iat),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
		Type:     typ,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenSigningFailed, err)
	}
	return token, nil
}

// ValidateToken verifies signature, issuer and expiry and returns the
// claims. Expired tokens yield ErrExpiredToken, everything else
// ErrInvalidToken.
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	claims := new(Claims)
	token, err := s.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return s.key, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrExpiredToken
	case err != nil, !token.Valid:
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ValidateAccessToken accepts only access tokens.
func (s *JWTService) ValidateAccessToken(tokenString string) (*Claims, error) {
	return s.validateAs(tokenString, TokenTypeAccess)
}

// ValidateRefreshToken accepts only refresh tokens.
func (s *JWTService) ValidateRefreshToken(tokenString string) (*Claims, error) {
	return s.validateAs(tokenString, TokenTypeRefresh)
}

func (s *JWTService) validateAs(tokenString string, want TokenType) (*Claims, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Type != want {
		return nil, ErrInvalidTokenType
	}
	return claims, nil
}
