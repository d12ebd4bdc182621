package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// Sign computes the partner-API request signature:
// hex(HMAC-SHA256(secret, partnerID + path + timestamp + accessToken + shopID)).
//
// The function is pure and never fails: an empty or malformed secret still
// produces a signature. Credential presence is validated by the connector,
// not here.
func Sign(partnerID, secret, path string, timestamp int64, accessToken, shopID string) string {
	base := partnerID + path + strconv.FormatInt(timestamp, 10) + accessToken + shopID
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(base))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyWebhook checks an inbound payload against the shop's push secret
// using a constant-time comparison.
func VerifyWebhook(payload []byte, secret, signature string) bool {
	if signature == "" || secret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
