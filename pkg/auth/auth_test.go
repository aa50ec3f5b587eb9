package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm/logger"

	"github.com/kindnest/kindnest-api/pkg/database"
	"github.com/kindnest/kindnest-api/pkg/models"
)

func init() { HashCost = bcrypt.MinCost }

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)
	assert.True(t, CheckPasswordHash("hunter2", hash))
	assert.False(t, CheckPasswordHash("hunter3", hash))
}

func TestTokenRoundTrip(t *testing.T) {
	a := New("secret", "", time.Hour)
	tok, err := a.CreateToken("user-1", models.RoleAdmin, "Ada")
	require.NoError(t, err)

	claims, err := a.VerifyToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, models.RoleAdmin, claims.Role)
	assert.Equal(t, "Ada", claims.Name)
}

func TestTokenRejections(t *testing.T) {
	a := New("secret", "", time.Hour)

	t.Run("wrong secret", func(t *testing.T) {
		tok, err := New("other", "", time.Hour).CreateToken("u", models.RoleDonor, "")
		require.NoError(t, err)
		_, err = a.VerifyToken(tok)
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		old := New("secret", "", time.Minute)
		old.now = func() time.Time { return time.Now().Add(-time.Hour) }
		tok, err := old.CreateToken("u", models.RoleDonor, "")
		require.NoError(t, err)
		_, err = a.VerifyToken(tok)
		assert.Error(t, err)
	})

	t.Run("none algorithm", func(t *testing.T) {
		tok := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{Role: models.RoleAdmin, RegisteredClaims: jwt.RegisteredClaims{Subject: "u"}})
		s, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = a.VerifyToken(s)
		assert.Error(t, err)
	})
}

func TestServiceKeys(t *testing.T) {
	a := New("jwt", "master", time.Hour)
	key, err := a.GenerateServiceKey("cron.sweeper")
	require.NoError(t, err)

	name, err := a.VerifyServiceKey(key)
	require.NoError(t, err)
	assert.Equal(t, "cron.sweeper", name)

	for _, bad := range []string{"", "nodot", "cron.", ".abc", key + "0"} {
		_, err := a.VerifyServiceKey(bad)
		assert.Error(t, err, bad)
	}

	_, err = New("jwt", "", time.Hour).VerifyServiceKey(key)
	assert.Error(t, err)
}

func TestEnsureAdminExists(t *testing.T) {
	ctx := context.Background()
	db, err := database.InitDB(database.Options{
		Path:     "file:" + uuid.NewString() + "?mode=memory&cache=shared",
		LogLevel: logger.Silent,
	})
	require.NoError(t, err)
	store := database.NewStore(db)

	require.NoError(t, EnsureAdminExists(ctx, store, "", ""))
	n, err := store.CountAdmins(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, EnsureAdminExists(ctx, store, " Admin@Example.org ", "pw"))
	require.NoError(t, EnsureAdminExists(ctx, store, "other@example.org", "pw"))

	n, err = store.CountAdmins(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	u, err := store.FindUserByEmail(ctx, "admin@example.org")
	require.NoError(t, err)
	assert.True(t, CheckPasswordHash("pw", u.PasswordHash))
}
