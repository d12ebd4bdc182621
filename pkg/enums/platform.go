package enums

import "fmt"

// Platform maps to the platform enum in Postgres.
type Platform string

const (
	PlatformShopee    Platform = "shopee"
	PlatformLazada    Platform = "lazada"
	PlatformTokopedia Platform = "tokopedia"
	PlatformTikTok    Platform = "tiktok"
	PlatformManual    Platform = "manual"
)

var validPlatforms = []Platform{
	PlatformShopee,
	PlatformLazada,
	PlatformTokopedia,
	PlatformTikTok,
	PlatformManual,
}

// IsValid reports whether the value matches the canonical platform enum.
func (p Platform) IsValid() bool {
	for _, candidate := range validPlatforms {
		if candidate == p {
			return true
		}
	}
	return false
}

// IsMarketplace reports whether the platform participates in remote sync.
func (p Platform) IsMarketplace() bool {
	return p.IsValid() && p != PlatformManual
}

// ParsePlatform converts raw input into Platform.
func ParsePlatform(value string) (Platform, error) {
	for _, candidate := range validPlatforms {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid platform %q", value)
}
