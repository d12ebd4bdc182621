package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kasirkita/kasirkita-backend/pkg/enums"
)

// Store represents one connected marketplace shop.
type Store struct {
	ID       uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	Platform enums.Platform `gorm:"column:platform;type:platform;not null;uniqueIndex:ux_stores_platform_shop"`
	ShopID   string         `gorm:"column:shop_id;not null;uniqueIndex:ux_stores_platform_shop"`
	ShopName string         `gorm:"column:shop_name;not null"`

	PartnerID    string     `gorm:"column:partner_id"`
	PartnerKey   string     `gorm:"column:partner_key"`
	AccessToken  string     `gorm:"column:access_token"`
	RefreshToken string     `gorm:"column:refresh_token"`
	TokenExpiry  *time.Time `gorm:"column:token_expiry"`

	IsActive     bool       `gorm:"column:is_active;not null;default:true"`
	ProductCount int        `gorm:"column:product_count;not null;default:0"`
	OrderCount   int        `gorm:"column:order_count;not null;default:0"`
	LastSyncAt   *time.Time `gorm:"column:last_sync_at"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *Store) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// IsConnected reports whether the store holds a token that has not expired.
func (s *Store) IsConnected(now time.Time) bool {
	if strings.TrimSpace(s.AccessToken) == "" {
		return false
	}
	if s.TokenExpiry == nil {
		return true
	}
	return s.TokenExpiry.After(now)
}

// HasCredentials reports whether every field needed to sign a request is set.
func (s *Store) HasCredentials() bool {
	for _, field := range []string{s.PartnerID, s.PartnerKey, s.ShopID, s.AccessToken} {
		if strings.TrimSpace(field) == "" {
			return false
		}
	}
	return true
}
