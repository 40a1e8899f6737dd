package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dr-electrique/rapport-server/database/models"
)

func TestHashKeyAndCompare(t *testing.T) {
	hash, err := HashKey("cle-secrete-du-chantier")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$"))

	match, err := CompareKeyAndHash("cle-secrete-du-chantier", hash)
	require.NoError(t, err)
	assert.True(t, match)

	match, err = CompareKeyAndHash("mauvaise-cle", hash)
	require.NoError(t, err)
	assert.False(t, match)
}

func TestCompareKeyAndHashRejectsGarbage(t *testing.T) {
	_, err := CompareKeyAndHash("key", "not-an-argon2-hash")
	assert.Error(t, err)
}

func newTestJWT(t *testing.T) *JWTService {
	t.Helper()
	svc, err := NewJWTService("0123456789abcdef0123456789abcdef", time.Hour)
	require.NoError(t, err)
	return svc
}

func TestJWTServiceRejectsShortSecret(t *testing.T) {
	_, err := NewJWTService("short", time.Hour)
	assert.Error(t, err)
}

func TestGenerateAndExtract(t *testing.T) {
	svc := newTestJWT(t)

	token, expiry, err := svc.GenerateAccessToken("tablette-01", 7)
	require.NoError(t, err)
	assert.True(t, expiry.After(time.Now()))

	claims, err := svc.ExtractClaims(token)
	require.NoError(t, err)
	assert.Equal(t, "tablette-01", claims.DeviceName)
	assert.Equal(t, uint(7), claims.DeviceID)
	assert.Equal(t, expiry.Unix(), claims.Exp)
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	svc := newTestJWT(t)
	other, err := NewJWTService("ffffffffffffffffffffffffffffffff", time.Hour)
	require.NoError(t, err)

	token, _, err := svc.GenerateAccessToken("tablette-01", 7)
	require.NoError(t, err)

	assert.Error(t, other.ValidateToken(token))
}

type fakeDeviceStore struct {
	device  *models.Device
	err     error
	touched []uint
}

func (f *fakeDeviceStore) GetActiveByName(ctx context.Context, name string) (*models.Device, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.device, nil
}

func (f *fakeDeviceStore) Touch(ctx context.Context, deviceID uint) error {
	f.touched = append(f.touched, deviceID)
	return nil
}

func TestAuthenticate(t *testing.T) {
	hash, err := HashKey("bonne-cle")
	require.NoError(t, err)

	device := &models.Device{Name: "tablette-01", KeyHash: hash, Active: true}
	device.ID = 3
	store := &fakeDeviceStore{device: device}
	svc := NewKeyService(store, newTestJWT(t))

	token, _, err := svc.Authenticate(context.Background(), "tablette-01", "bonne-cle")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, []uint{3}, store.touched)
}

func TestAuthenticateWrongKey(t *testing.T) {
	hash, err := HashKey("bonne-cle")
	require.NoError(t, err)

	device := &models.Device{Name: "tablette-01", KeyHash: hash, Active: true}
	store := &fakeDeviceStore{device: device}
	svc := NewKeyService(store, newTestJWT(t))

	_, _, err = svc.Authenticate(context.Background(), "tablette-01", "mauvaise-cle")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Empty(t, store.touched)
}

func TestAuthenticateUnknownDevice(t *testing.T) {
	store := &fakeDeviceStore{err: errors.New("record not found")}
	svc := NewKeyService(store, newTestJWT(t))

	_, _, err := svc.Authenticate(context.Background(), "inconnue", "cle")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
