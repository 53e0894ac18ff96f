package operators

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dirigo-idm/dirigo/pkg/types"
)

func setupTestRepository(t *testing.T) *Repository {
	config := DefaultConfig()
	config.DatabasePath = ":memory:" // Use in-memory SQLite for tests
	config.EnableAuditLogging = false

	repo, err := NewRepository(config)
	require.NoError(t, err)

	return repo
}

func teardownTestRepository(t *testing.T, repo *Repository) {
	err := repo.Close()
	assert.NoError(t, err)
}

func createTestOperator(t *testing.T, as *AuthService, repo *Repository, username, password string, role types.OperatorRole) *Operator {
	hash, err := as.HashPassword(password)
	require.NoError(t, err)

	operator := &Operator{
		Username: username,
		Email:    username + "@dirigo.local",
		Password: hash,
		Role:     role,
		IsActive: true,
	}
	_, err = repo.CreateOperator(operator)
	require.NoError(t, err)
	return operator
}

func TestAuthService_HashPassword(t *testing.T) {
	config := DefaultConfig()
	config.JWTSecret = "test-secret"

	repo := setupTestRepository(t)
	defer teardownTestRepository(t, repo)

	authService := NewAuthService(config, repo)

	password := "TestPassword123"
	hash, err := authService.HashPassword(password)
	require.NoError(t, err)
	assert.NotEmpty(t, hash)
	assert.NotEqual(t, password, hash)
}

func TestAuthService_VerifyPassword(t *testing.T) {
	config := DefaultConfig()
	config.JWTSecret = "test-secret"

	repo := setupTestRepository(t)
	defer teardownTestRepository(t, repo)

	authService := NewAuthService(config, repo)

	password := "TestPassword123"
	hash, err := authService.HashPassword(password)
	require.NoError(t, err)

	assert.True(t, authService.VerifyPassword(password, hash))
	assert.False(t, authService.VerifyPassword("WrongPassword1", hash))
}

func TestAuthService_ValidatePassword(t *testing.T) {
	config := DefaultConfig()
	config.JWTSecret = "test-secret"
	config.PasswordPolicy = PasswordPolicy{
		MinLength:        8,
		RequireUppercase: true,
		RequireLowercase: true,
		RequireNumbers:   true,
		RequireSymbols:   true,
	}

	repo := setupTestRepository(t)
	defer teardownTestRepository(t, repo)

	authService := NewAuthService(config, repo)

	tests := []struct {
		password string
		valid    bool
		name     string
	}{
		{"Test123!", true, "valid password"},
		{"test123!", false, "no uppercase"},
		{"TEST123!", false, "no lowercase"},
		{"TestABC!", false, "no numbers"},
		{"Test1234", false, "no symbols"},
		{"Test1!", false, "too short"},
		{"ValidPassword123!", true, "valid long password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := authService.ValidatePassword(tt.password)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestAuthService_GenerateAccessToken(t *testing.T) {
	config := DefaultConfig()
	config.JWTSecret = "test-secret"
	config.JWTExpirationTime = time.Hour

	repo := setupTestRepository(t)
	defer teardownTestRepository(t, repo)

	authService := NewAuthService(config, repo)
	operator := createTestOperator(t, authService, repo, "jmartin", "TestPassword123", types.RoleOperator)

	token, err := authService.GenerateAccessToken(operator)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	validated, err := authService.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, operator.OperatorID, validated.OperatorID)
	assert.Equal(t, operator.Username, validated.Username)
	assert.Equal(t, operator.Role, validated.Role)
}

func TestAuthService_Authenticate(t *testing.T) {
	config := DefaultConfig()
	config.JWTSecret = "test-secret"

	repo := setupTestRepository(t)
	defer teardownTestRepository(t, repo)

	authService := NewAuthService(config, repo)
	createTestOperator(t, authService, repo, "jmartin", "TestPassword123", types.RoleOperator)

	t.Run("ValidCredentials", func(t *testing.T) {
		response, err := authService.Authenticate(LoginCredentials{
			Username: "jmartin",
			Password: "TestPassword123",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, response.AccessToken)
		assert.NotEmpty(t, response.RefreshToken)
		assert.Equal(t, "Bearer", response.TokenType)
		assert.Equal(t, "jmartin", response.Operator.Username)
		assert.Empty(t, response.Operator.Password)
	})

	t.Run("WrongPassword", func(t *testing.T) {
		_, err := authService.Authenticate(LoginCredentials{
			Username: "jmartin",
			Password: "WrongPassword1",
		})
		assert.Error(t, err)
		assert.IsType(t, AuthenticationError{}, err)
	})

	t.Run("UnknownUsername", func(t *testing.T) {
		_, err := authService.Authenticate(LoginCredentials{
			Username: "ghost",
			Password: "TestPassword123",
		})
		assert.Error(t, err)
	})

	t.Run("DeactivatedOperator", func(t *testing.T) {
		operator := createTestOperator(t, authService, repo, "former", "TestPassword123", types.RoleOperator)
		require.NoError(t, repo.DeactivateOperator(operator.OperatorID))

		_, err := authService.Authenticate(LoginCredentials{
			Username: "former",
			Password: "TestPassword123",
		})
		assert.Error(t, err)
	})
}

func TestAuthService_RefreshToken(t *testing.T) {
	config := DefaultConfig()
	config.JWTSecret = "test-secret"

	repo := setupTestRepository(t)
	defer teardownTestRepository(t, repo)

	authService := NewAuthService(config, repo)
	createTestOperator(t, authService, repo, "jmartin", "TestPassword123", types.RoleOperator)

	response, err := authService.Authenticate(LoginCredentials{
		Username: "jmartin",
		Password: "TestPassword123",
	})
	require.NoError(t, err)

	// A just-issued refresh token must be redeemable.
	refreshed, err := authService.RefreshToken(response.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)
	assert.Equal(t, "jmartin", refreshed.Operator.Username)

	// The session ID in the token claims must match the persisted row.
	token, err := jwt.ParseWithClaims(response.RefreshToken, &RefreshTokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(config.JWTSecret), nil
	})
	require.NoError(t, err)
	claims, ok := token.Claims.(*RefreshTokenClaims)
	require.True(t, ok)

	session, err := repo.GetSession(claims.SessionID)
	require.NoError(t, err)
	require.NotNil(t, session, "refresh token claims must reference a stored session")
	assert.True(t, session.IsActive)
	assert.Equal(t, response.RefreshToken, session.Token)

	// Logging out by that session ID invalidates the refresh token.
	require.NoError(t, authService.Logout(claims.SessionID))
	_, err = authService.RefreshToken(response.RefreshToken)
	assert.Error(t, err)

	_, err = authService.RefreshToken("not-a-token")
	assert.Error(t, err)
}

func TestAuthService_ValidateToken_Invalid(t *testing.T) {
	config := DefaultConfig()
	config.JWTSecret = "test-secret"

	repo := setupTestRepository(t)
	defer teardownTestRepository(t, repo)

	authService := NewAuthService(config, repo)

	_, err := authService.ValidateToken("garbage")
	assert.Error(t, err)

	// Token signed with a different secret must be rejected.
	otherConfig := DefaultConfig()
	otherConfig.JWTSecret = "other-secret"
	otherService := NewAuthService(otherConfig, repo)
	operator := createTestOperator(t, otherService, repo, "jmartin", "TestPassword123", types.RoleOperator)

	token, err := otherService.GenerateAccessToken(operator)
	require.NoError(t, err)

	_, err = authService.ValidateToken(token)
	assert.Error(t, err)
}

func TestAuthService_ChangePassword(t *testing.T) {
	config := DefaultConfig()
	config.JWTSecret = "test-secret"

	repo := setupTestRepository(t)
	defer teardownTestRepository(t, repo)

	authService := NewAuthService(config, repo)
	operator := createTestOperator(t, authService, repo, "jmartin", "OldPassword123", types.RoleOperator)

	err := authService.ChangePassword(operator.OperatorID, "OldPassword123", "NewPassword456")
	require.NoError(t, err)

	_, err = authService.Authenticate(LoginCredentials{Username: "jmartin", Password: "OldPassword123"})
	assert.Error(t, err)

	_, err = authService.Authenticate(LoginCredentials{Username: "jmartin", Password: "NewPassword456"})
	assert.NoError(t, err)

	err = authService.ChangePassword(operator.OperatorID, "NewPassword456", "short")
	assert.Error(t, err)
}
