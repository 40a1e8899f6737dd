package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/dr-electrique/rapport-server/database/models"
	"github.com/dr-electrique/rapport-server/utils"
)

// ErrInvalidCredentials 无效凭证
var ErrInvalidCredentials = errors.New("invalid device name or key")

// DeviceStore is the device lookup surface the key service needs.
type DeviceStore interface {
	GetActiveByName(ctx context.Context, name string) (*models.Device, error)
	Touch(ctx context.Context, deviceID uint) error
}

// KeyService authenticates field devices by name + shared key and issues
// access tokens.
type KeyService struct {
	devices DeviceStore
	jwt     *JWTService
}

// NewKeyService 创建设备密钥服务
func NewKeyService(devices DeviceStore, jwt *JWTService) *KeyService {
	return &KeyService{devices: devices, jwt: jwt}
}

// Authenticate verifies the device key and returns a signed access token.
// Lookup misses and hash mismatches both map to ErrInvalidCredentials so
// the response does not reveal which part failed.
func (s *KeyService) Authenticate(ctx context.Context, deviceName, key string) (string, time.Time, error) {
	device, err := s.devices.GetActiveByName(ctx, deviceName)
	if err != nil {
		return "", time.Time{}, ErrInvalidCredentials
	}

	match, err := CompareKeyAndHash(key, device.KeyHash)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to verify device key: %w", err)
	}
	if !match {
		return "", time.Time{}, ErrInvalidCredentials
	}

	if err := s.devices.Touch(ctx, device.ID); err != nil {
		// Non-fatal: last_seen_at is advisory.
		log.Printf("[Auth] Failed to update last seen for device %s: %v", utils.SanitizeDeviceName(deviceName), err)
	}

	return s.jwt.GenerateAccessToken(device.Name, device.ID)
}
