package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"printer-fieldops/internal/model"
)

// SignatureWindow bounds the skew between a device timestamp and the verifier clock.
const SignatureWindow = 300 * time.Second

const (
	HeaderTimestamp = "X-Timestamp"
	HeaderSignature = "X-Signature"
	HeaderDeviceID  = "X-Device-ID"
)

// CanonicalRequest joins METHOD|PATH|TIMESTAMP|sha256(body) exactly as signed.
func CanonicalRequest(method string, path string, timestamp string, body []byte) string {
	bodyHash := sha256.Sum256(body)
	return strings.Join([]string{
		strings.ToUpper(method),
		path,
		timestamp,
		hex.EncodeToString(bodyHash[:]),
	}, "|")
}

func SignRequest(secret []byte, method string, path string, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(CanonicalRequest(method, path, timestamp, body)))
	return hex.EncodeToString(mac.Sum(nil))
}

func VerifyRequest(secret []byte, method string, path string, timestamp string, body []byte, supplied string, now time.Time) error {
	timestamp = strings.TrimSpace(timestamp)
	if timestamp == "" {
		return model.ErrInvalidSignature
	}

	unix, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return model.ErrInvalidSignature
	}

	skew := now.Sub(time.Unix(unix, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > SignatureWindow {
		return model.ErrInvalidSignature
	}

	given, err := hex.DecodeString(strings.TrimSpace(supplied))
	if err != nil || len(given) != sha256.Size {
		return model.ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(CanonicalRequest(method, path, timestamp, body)))
	if !hmac.Equal(mac.Sum(nil), given) {
		return model.ErrInvalidSignature
	}

	return nil
}
