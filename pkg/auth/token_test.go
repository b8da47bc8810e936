package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/learnhub-backend/pkg/config"
	"github.com/angelmondragon/learnhub-backend/pkg/enums"
)

func jwtConfig() config.JWTConfig {
	return config.JWTConfig{Secret: "secret", Issuer: "learnhub", ExpirationMinutes: 30}
}

func signRaw(t *testing.T, cfg config.JWTConfig, claims AccessTokenClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
	require.NoError(t, err)
	return signed
}

func TestMintThenParse(t *testing.T) {
	cfg := jwtConfig()
	userID := uuid.New()

	token, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{UserID: userID, Role: enums.RoleAdmin})
	require.NoError(t, err)

	claims, err := ParseAccessToken(cfg, token)
	require.NoError(t, err)
	require.Equal(t, userID, claims.UserID)
	require.Equal(t, enums.RoleAdmin, claims.Role)
	require.Equal(t, userID.String(), claims.Subject)
	require.NotEmpty(t, claims.ID)
}

func TestParseExpired(t *testing.T) {
	cfg := jwtConfig()
	token, err := MintAccessToken(cfg, time.Now().Add(-2*time.Hour), AccessTokenPayload{UserID: uuid.New(), Role: enums.RoleStudent})
	require.NoError(t, err)

	_, err = ParseAccessToken(cfg, token)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestParseHonorsLeeway(t *testing.T) {
	cfg := jwtConfig()
	cfg.ExpirationMinutes = 1
	token, err := MintAccessToken(cfg, time.Now().Add(-70*time.Second), AccessTokenPayload{UserID: uuid.New(), Role: enums.RoleStudent})
	require.NoError(t, err)

	_, err = ParseAccessToken(cfg, token)
	require.ErrorIs(t, err, ErrTokenExpired)

	cfg.Leeway = time.Minute
	_, err = ParseAccessToken(cfg, token)
	require.NoError(t, err)
}

func TestParseRejectsWrongSecretIssuerAudience(t *testing.T) {
	cfg := jwtConfig()
	token, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{UserID: uuid.New(), Role: enums.RoleStudent})
	require.NoError(t, err)

	for name, mutate := range map[string]func(*config.JWTConfig){
		"secret":   func(c *config.JWTConfig) { c.Secret = "other" },
		"issuer":   func(c *config.JWTConfig) { c.Issuer = "someone-else" },
		"audience": func(c *config.JWTConfig) { c.Audience = "learnhub-admin" },
	} {
		t.Run(name, func(t *testing.T) {
			bad := cfg
			mutate(&bad)
			_, err := ParseAccessToken(bad, token)
			require.ErrorIs(t, err, ErrTokenInvalid)
		})
	}
}

func TestParseAudienceRoundTrip(t *testing.T) {
	cfg := jwtConfig()
	cfg.Audience = "learnhub-api"
	token, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{UserID: uuid.New(), Role: enums.RoleInstructor})
	require.NoError(t, err)

	_, err = ParseAccessToken(cfg, token)
	require.NoError(t, err)
}

func TestParseRejectsBadClaims(t *testing.T) {
	cfg := jwtConfig()
	expires := jwt.NewNumericDate(time.Now().Add(time.Hour))

	unknownRole := signRaw(t, cfg, AccessTokenClaims{
		UserID:           uuid.New(),
		Role:             enums.Role("owner"),
		RegisteredClaims: jwt.RegisteredClaims{Issuer: cfg.Issuer, ExpiresAt: expires},
	})
	_, err := ParseAccessToken(cfg, unknownRole)
	require.ErrorIs(t, err, ErrTokenInvalid)
	require.ErrorContains(t, err, "unknown role")

	mismatched := signRaw(t, cfg, AccessTokenClaims{
		UserID:           uuid.New(),
		Role:             enums.RoleStudent,
		RegisteredClaims: jwt.RegisteredClaims{Issuer: cfg.Issuer, Subject: uuid.NewString(), ExpiresAt: expires},
	})
	_, err = ParseAccessToken(cfg, mismatched)
	require.ErrorContains(t, err, "subject")

	noExpiry := signRaw(t, cfg, AccessTokenClaims{
		UserID:           uuid.New(),
		Role:             enums.RoleStudent,
		RegisteredClaims: jwt.RegisteredClaims{Issuer: cfg.Issuer},
	})
	_, err = ParseAccessToken(cfg, noExpiry)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestMintValidatesInput(t *testing.T) {
	cfg := jwtConfig()
	_, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{Role: enums.RoleStudent})
	require.Error(t, err)
	_, err = MintAccessToken(cfg, time.Now(), AccessTokenPayload{UserID: uuid.New(), Role: "guest"})
	require.Error(t, err)
	cfg.Secret = ""
	_, err = MintAccessToken(cfg, time.Now(), AccessTokenPayload{UserID: uuid.New(), Role: enums.RoleStudent})
	require.Error(t, err)
}

func TestActorAccess(t *testing.T) {
	learner := uuid.New()
	student := Actor{UserID: learner, Role: enums.RoleStudent}
	admin := Actor{UserID: uuid.New(), Role: enums.RoleAdmin}

	require.True(t, student.CanAccessLearner(learner))
	require.False(t, student.CanAccessLearner(uuid.New()))
	require.True(t, admin.CanAccessLearner(learner))
	require.False(t, (Actor{}).CanAccessLearner(uuid.Nil))
	require.Equal(t, Actor{}, ActorFromClaims(nil))
}
