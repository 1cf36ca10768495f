package models

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/materialsync_backend/config"
	"bitbucket.org/mmdatafocus/materialsync_backend/utils"
	"gorm.io/gorm"
)

const (
	ShopStatusInstalled = "installed"
	ShopStatusRevoked   = "revoked"
)

// ShopConnection holds the OAuth credential for one shop. There is one row
// per shop; the access token is re-read on every Admin API call.
type ShopConnection struct {
	ID          uint       `gorm:"primary_key" json:"id"`
	Shop        string     `gorm:"uniqueIndex;size:255;not null" json:"shop"`
	Status      string     `gorm:"size:20;not null" json:"status"`
	AccessToken string     `gorm:"type:text" json:"-"`
	Scopes      string     `gorm:"size:255" json:"scopes"`
	InstalledAt *time.Time `json:"installed_at"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// SaveAccessToken upserts the connection row for the shop after a
// successful OAuth exchange.
func SaveAccessToken(ctx context.Context, shop string, token string) error {
	db := config.GetDB()
	if db == nil {
		return errors.New("database not connected")
	}

	now := time.Now()
	var conn ShopConnection
	err := db.WithContext(ctx).Where("shop = ?", shop).Take(&conn).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		conn = ShopConnection{
			Shop:        shop,
			Status:      ShopStatusInstalled,
			AccessToken: token,
			InstalledAt: &now,
		}
		return db.WithContext(ctx).Create(&conn).Error
	}

	return db.WithContext(ctx).Model(&conn).Updates(map[string]interface{}{
		"status":       ShopStatusInstalled,
		"access_token": token,
		"installed_at": now,
	}).Error
}

// GetAccessToken reads the stored token for the shop.
func GetAccessToken(ctx context.Context, shop string) (string, error) {
	db := config.GetDB()
	if db == nil {
		return "", errors.New("database not connected")
	}

	var conn ShopConnection
	if err := db.WithContext(ctx).Where("shop = ? AND status = ?", shop, ShopStatusInstalled).Take(&conn).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", utils.ErrorRecordNotFound
		}
		return "", err
	}
	if strings.TrimSpace(conn.AccessToken) == "" {
		return "", errors.New("no saved access token; run the OAuth flow first")
	}
	return conn.AccessToken, nil
}

// ShopTokenSource loads the access token fresh on every call. The
// SHOPIFY_ACCESS_TOKEN env var overrides storage (one-shot tools, local dev).
type ShopTokenSource struct {
	Shop string
}

func (s ShopTokenSource) AccessToken(ctx context.Context) (string, error) {
	if token := strings.TrimSpace(os.Getenv("SHOPIFY_ACCESS_TOKEN")); token != "" {
		return token, nil
	}
	return GetAccessToken(ctx, s.Shop)
}
