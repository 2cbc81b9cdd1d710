package IdentityManager

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/Emil-Frisk/Final-Project/src/inter"
)

type IdentityManager struct {
	DataStore inter.DataStore
}

func NewIdentityManager(ds inter.DataStore) inter.IdentityManager {
	return &IdentityManager{
		DataStore: ds,
	}
}
func (i IdentityManager) GenerateUUID(meta inter.UnitMetadata) (uuid string) {
	sumSN := sha256.Sum256([]byte(meta.SerialNumber))
	sumMAC := sha256.Sum256([]byte(meta.MACAddress))

	combined := make([]byte, 64)
	copy(combined[:32], sumSN[:])
	copy(combined[32:], sumMAC[:])

	finalHash := sha256.Sum256(combined)

	return hex.EncodeToString(finalHash[:])
}
func (i IdentityManager) generateToken(uuid string) (token string) {
	milli := strconv.FormatInt(time.Now().UnixMilli(), 10)
	sumToken := sha256.Sum256([]byte(uuid + milli))
	token = "gi_" + hex.EncodeToString(sumToken[:16])
	return token
}
func (i IdentityManager) RegisterUnit(uuid string, meta inter.UnitMetadata) (token string, err error) {
	token = i.generateToken(uuid)
	meta.Token = token
	err = i.DataStore.InitUnit(uuid, meta)
	return token, err
}

func (i IdentityManager) Authenticate(token string) (uuid string, err error) {
	uuid, status, err := i.DataStore.GetUnitByToken(token)
	if err != nil {
		return "", fmt.Errorf("%w: %v", inter.ErrInvalidToken, err)
	}
	switch status {
	case inter.Authenticated:
		return uuid, nil
	case inter.AuthenticateRefuse:
		return "", inter.ErrUnitRefused
	case inter.AuthenticatePending:
		return "", inter.ErrUnitPending
	case inter.AuthenticateRevoked:
		return "", inter.ErrInvalidToken
	default:
		return "", inter.ErrUnitUnknown
	}
}

func (i IdentityManager) RefreshToken(uuid string) (newToken string, err error) {
	token := i.generateToken(uuid)
	return token, i.DataStore.UpdateToken(uuid, token)
}
func (i IdentityManager) RevokeToken(uuid string) error {
	token := i.generateToken(uuid)
	// 删除 token 哪有直接生成一个新 token 来的方便
	return i.DataStore.UpdateToken(uuid, token+"_invalid_token")
}
