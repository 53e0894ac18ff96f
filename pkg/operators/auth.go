package operators

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/dirigo-idm/dirigo/pkg/types"
)

// AuthService provides authentication functionality
type AuthService struct {
	config     *Config
	repository *Repository
}

// NewAuthService creates a new authentication service
func NewAuthService(config *Config, repository *Repository) *AuthService {
	return &AuthService{
		config:     config,
		repository: repository,
	}
}

// LoginCredentials represents operator login credentials
type LoginCredentials struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse represents an authentication response
type AuthResponse struct {
	Operator     *Operator `json:"operator"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    int64     `json:"expires_at"`
	TokenType    string    `json:"token_type"`
}

// TokenClaims represents JWT access token claims
type TokenClaims struct {
	OperatorID string             `json:"operator_id"`
	Username   string             `json:"username"`
	Role       types.OperatorRole `json:"role"`
	jwt.RegisteredClaims
}

// RefreshTokenClaims represents refresh token claims
type RefreshTokenClaims struct {
	OperatorID string `json:"operator_id"`
	SessionID  string `json:"session_id"`
	jwt.RegisteredClaims
}

// Authenticate authenticates an operator with username and password
func (as *AuthService) Authenticate(credentials LoginCredentials) (*AuthResponse, error) {
	operator, err := as.repository.GetOperatorByUsername(credentials.Username)
	if err != nil {
		return nil, fmt.Errorf("authentication failed: %w", err)
	}

	if operator == nil {
		return nil, NewAuthenticationError("invalid username or password")
	}

	if !operator.IsActive {
		return nil, NewAuthenticationError("operator account is deactivated")
	}

	if !as.VerifyPassword(credentials.Password, operator.Password) {
		return nil, NewAuthenticationError("invalid username or password")
	}

	accessToken, err := as.GenerateAccessToken(operator)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	// The session ID is minted here so the persisted row and the refresh
	// token claims agree; RefreshToken looks the session up by this ID.
	sessionID := generateSecureRandomString(32)

	refreshToken, err := as.GenerateRefreshToken(operator, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	session := &Session{
		SessionID:  sessionID,
		OperatorID: operator.OperatorID,
		Token:      refreshToken,
		ExpiresAt:  time.Now().Add(as.config.RefreshTokenExpiry),
		IsActive:   true,
	}

	if _, err = as.repository.CreateSession(session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	// Remove password hash from response
	operatorResponse := *operator
	operatorResponse.Password = ""

	return &AuthResponse{
		Operator:     &operatorResponse,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    time.Now().Add(as.config.JWTExpirationTime).Unix(),
		TokenType:    "Bearer",
	}, nil
}

// ValidateToken validates a JWT access token and returns the operator
func (as *AuthService) ValidateToken(tokenString string) (*Operator, error) {
	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(as.config.JWTSecret), nil
	})

	if err != nil {
		return nil, NewAuthenticationError("invalid token")
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid {
		return nil, NewAuthenticationError("invalid token claims")
	}

	operator, err := as.repository.GetOperator(claims.OperatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to get operator: %w", err)
	}

	if operator == nil || !operator.IsActive {
		return nil, NewAuthenticationError("operator not found or inactive")
	}

	return operator, nil
}

// RefreshToken generates a new access token using a refresh token
func (as *AuthService) RefreshToken(refreshTokenString string) (*AuthResponse, error) {
	token, err := jwt.ParseWithClaims(refreshTokenString, &RefreshTokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(as.config.JWTSecret), nil
	})

	if err != nil {
		return nil, NewAuthenticationError("invalid refresh token")
	}

	claims, ok := token.Claims.(*RefreshTokenClaims)
	if !ok || !token.Valid {
		return nil, NewAuthenticationError("invalid refresh token claims")
	}

	session, err := as.repository.GetSession(claims.SessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	if session == nil || !session.IsActive || session.IsExpired() {
		return nil, NewAuthenticationError("invalid or expired session")
	}

	operator, err := as.repository.GetOperator(claims.OperatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to get operator: %w", err)
	}

	if operator == nil || !operator.IsActive {
		return nil, NewAuthenticationError("operator not found or inactive")
	}

	accessToken, err := as.GenerateAccessToken(operator)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	operatorResponse := *operator
	operatorResponse.Password = ""

	return &AuthResponse{
		Operator:    &operatorResponse,
		AccessToken: accessToken,
		ExpiresAt:   time.Now().Add(as.config.JWTExpirationTime).Unix(),
		TokenType:   "Bearer",
	}, nil
}

// Logout invalidates an operator session
func (as *AuthService) Logout(sessionID string) error {
	return as.repository.InvalidateSession(sessionID)
}

// LogoutAll invalidates all sessions for an operator
func (as *AuthService) LogoutAll(operatorID string) error {
	return as.repository.InvalidateAllOperatorSessions(operatorID)
}

// GenerateAccessToken generates a JWT access token for an operator
func (as *AuthService) GenerateAccessToken(operator *Operator) (string, error) {
	now := time.Now()
	claims := &TokenClaims{
		OperatorID: operator.OperatorID,
		Username:   operator.Username,
		Role:       operator.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(as.config.JWTExpirationTime)),
			Subject:   operator.OperatorID,
			Issuer:    "dirigo",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(as.config.JWTSecret))
}

// GenerateRefreshToken generates a refresh token bound to a session ID
func (as *AuthService) GenerateRefreshToken(operator *Operator, sessionID string) (string, error) {
	now := time.Now()

	claims := &RefreshTokenClaims{
		OperatorID: operator.OperatorID,
		SessionID:  sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(as.config.RefreshTokenExpiry)),
			Subject:   operator.OperatorID,
			Issuer:    "dirigo",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(as.config.JWTSecret))
}

// HashPassword hashes a password using bcrypt
func (as *AuthService) HashPassword(password string) (string, error) {
	if err := as.ValidatePassword(password); err != nil {
		return "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword verifies a password against its hash
func (as *AuthService) VerifyPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// ValidatePassword validates a password against the configured policy
func (as *AuthService) ValidatePassword(password string) error {
	policy := as.config.PasswordPolicy

	if len(password) < policy.MinLength {
		return NewValidationError(fmt.Sprintf("password must be at least %d characters long", policy.MinLength))
	}
	if policy.RequireUppercase && !containsUppercase(password) {
		return NewValidationError("password must contain at least one uppercase letter")
	}
	if policy.RequireLowercase && !containsLowercase(password) {
		return NewValidationError("password must contain at least one lowercase letter")
	}
	if policy.RequireNumbers && !containsNumber(password) {
		return NewValidationError("password must contain at least one number")
	}
	if policy.RequireSymbols && !containsSymbol(password) {
		return NewValidationError("password must contain at least one special character")
	}

	return nil
}

// ChangePassword changes an operator's password
func (as *AuthService) ChangePassword(operatorID, oldPassword, newPassword string) error {
	operator, err := as.repository.GetOperator(operatorID)
	if err != nil {
		return fmt.Errorf("failed to get operator: %w", err)
	}
	if operator == nil {
		return NewValidationError("operator not found")
	}

	if !as.VerifyPassword(oldPassword, operator.Password) {
		return NewAuthenticationError("invalid current password")
	}

	hashedPassword, err := as.HashPassword(newPassword)
	if err != nil {
		return err
	}

	operator.Password = hashedPassword
	return as.repository.UpdateOperator(operator)
}

// generateSecureRandomString generates a cryptographically secure random string
func generateSecureRandomString(length int) string {
	bytes := make([]byte, length)
	_, err := rand.Read(bytes)
	if err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return base64.URLEncoding.EncodeToString(bytes)[:length]
}

func containsUppercase(s string) bool {
	for _, r := range s {
		if r >= 'A' && r <= 'Z' {
			return true
		}
	}
	return false
}

func containsLowercase(s string) bool {
	for _, r := range s {
		if r >= 'a' && r <= 'z' {
			return true
		}
	}
	return false
}

func containsNumber(s string) bool {
	for _, r := range s {
		if r >= '0' && r <= '9' {
			return true
		}
	}
	return false
}

func containsSymbol(s string) bool {
	symbols := "!@#$%^&*()_+-=[]{}|;:,.<>?"
	for _, r := range s {
		for _, symbol := range symbols {
			if r == symbol {
				return true
			}
		}
	}
	return false
}

// AuthenticationError represents an authentication error
type AuthenticationError struct {
	Message string
}

func (e AuthenticationError) Error() string {
	return e.Message
}

// NewAuthenticationError creates a new authentication error
func NewAuthenticationError(message string) error {
	return AuthenticationError{Message: message}
}
