package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"

	"printer-fieldops/internal/model"
)

const (
	DefaultPBKDF2Iterations = 600000
	legacyPBKDF2Iterations  = 100000

	pbkdf2KeyLen  = 32
	pbkdf2SaltLen = 16
	pbkdf2Prefix  = "pbkdf2_sha256"
)

// loginAlgorithms fixes the order in which VerifyLogin does its work.
var loginAlgorithms = []model.HashAlgorithm{
	model.HashPBKDF2SHA256,
	model.HashBcrypt,
	model.HashLegacyPBKDF2Hex,
}

type verifyFunc func(password string, digest string) bool

// Hasher produces pbkdf2_sha256 digests and verifies every supported format.
type Hasher struct {
	iterations int
	verifiers  map[model.HashAlgorithm]verifyFunc
	dummies    map[model.HashAlgorithm]string
}

func NewHasher(iterations int) (*Hasher, error) {
	if iterations <= 0 {
		iterations = DefaultPBKDF2Iterations
	}

	h := &Hasher{
		iterations: iterations,
		verifiers: map[model.HashAlgorithm]verifyFunc{
			model.HashPBKDF2SHA256:    verifyPBKDF2SHA256,
			model.HashBcrypt:          verifyBcrypt,
			model.HashLegacyPBKDF2Hex: verifyLegacyPBKDF2Hex,
		},
	}

	dummies, err := h.buildDummies("unused-placeholder-Secret#1")
	if err != nil {
		return nil, err
	}
	h.dummies = dummies

	return h, nil
}

// buildDummies makes one digest per format so a login pays for every format
// whatever the account stores.
func (h *Hasher) buildDummies(password string) (map[model.HashAlgorithm]string, error) {
	native, _, err := h.Hash(password)
	if err != nil {
		return nil, err
	}

	bcryptDigest, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("generating bcrypt placeholder: %w", err)
	}

	salt := make([]byte, pbkdf2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}

	return map[model.HashAlgorithm]string{
		model.HashPBKDF2SHA256:    native,
		model.HashBcrypt:          string(bcryptDigest),
		model.HashLegacyPBKDF2Hex: LegacyPBKDF2Hex(password, salt),
	}, nil
}

func (h *Hasher) Hash(password string) (string, model.HashAlgorithm, error) {
	salt := make([]byte, pbkdf2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", 0, fmt.Errorf("generating salt: %w", err)
	}

	encodedSalt := base64.RawURLEncoding.EncodeToString(salt)
	key := pbkdf2.Key([]byte(password), []byte(encodedSalt), h.iterations, pbkdf2KeyLen, sha256.New)

	digest := fmt.Sprintf("%s$%d$%s$%s", pbkdf2Prefix, h.iterations, encodedSalt, base64.StdEncoding.EncodeToString(key))
	return digest, model.HashPBKDF2SHA256, nil
}

// Verify checks password against a digest of the given format only.
func (h *Hasher) Verify(password string, digest string, alg model.HashAlgorithm) bool {
	verify, ok := h.verifiers[alg]
	if !ok {
		return false
	}
	return verify(password, digest)
}

// VerifyLogin checks the stored digest and runs a placeholder verification in
// each other format, so the cost of a login does not reveal how an account is
// stored. An unknown alg runs placeholders only and fails.
func (h *Hasher) VerifyLogin(password string, digest string, alg model.HashAlgorithm) bool {
	matched := false
	for _, candidate := range loginAlgorithms {
		if candidate == alg {
			matched = h.verifiers[candidate](password, digest)
			continue
		}
		_ = h.verifiers[candidate](password+"\x00", h.dummies[candidate])
	}
	return matched
}

// VerifyDummy does the work of VerifyLogin for an account that does not exist.
func (h *Hasher) VerifyDummy(password string) {
	_ = h.VerifyLogin(password, "", 0)
}

func (h *Hasher) NeedsRehash(alg model.HashAlgorithm) bool {
	return alg != model.HashPBKDF2SHA256
}

// ValidateDigest checks the shape of an externally produced digest without a password.
func ValidateDigest(digest string, alg model.HashAlgorithm) error {
	var ok bool
	switch alg {
	case model.HashPBKDF2SHA256:
		_, _, _, err := decodePBKDF2SHA256(digest)
		ok = err == nil
	case model.HashBcrypt:
		_, err := bcrypt.Cost([]byte(digest))
		ok = err == nil
	case model.HashLegacyPBKDF2Hex:
		_, _, err := decodeLegacyPBKDF2Hex(digest)
		ok = err == nil
	}
	if !ok {
		return fmt.Errorf("%w: malformed %s digest", model.ErrInvalidInput, alg)
	}
	return nil
}

func verifyBcrypt(password string, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(password)) == nil
}

func verifyPBKDF2SHA256(password string, digest string) bool {
	iterations, salt, expected, err := decodePBKDF2SHA256(digest)
	if err != nil {
		return false
	}

	candidate := pbkdf2.Key([]byte(password), []byte(salt), iterations, len(expected), sha256.New)
	return subtle.ConstantTimeCompare(expected, candidate) == 1
}

func decodePBKDF2SHA256(digest string) (int, string, []byte, error) {
	parts := strings.Split(digest, "$")
	if len(parts) != 4 || parts[0] != pbkdf2Prefix {
		return 0, "", nil, fmt.Errorf("invalid pbkdf2_sha256 format")
	}

	iterations, err := strconv.Atoi(parts[1])
	if err != nil || iterations <= 0 {
		return 0, "", nil, fmt.Errorf("invalid pbkdf2_sha256 iterations")
	}

	if parts[2] == "" {
		return 0, "", nil, fmt.Errorf("empty pbkdf2_sha256 salt")
	}

	key, err := base64.StdEncoding.DecodeString(parts[3])
	if err != nil || len(key) == 0 {
		return 0, "", nil, fmt.Errorf("decoding pbkdf2_sha256 key")
	}

	return iterations, parts[2], key, nil
}

func verifyLegacyPBKDF2Hex(password string, digest string) bool {
	salt, expected, err := decodeLegacyPBKDF2Hex(digest)
	if err != nil {
		return false
	}

	candidate := pbkdf2.Key([]byte(password), salt, legacyPBKDF2Iterations, len(expected), sha256.New)
	return subtle.ConstantTimeCompare(expected, candidate) == 1
}

func decodeLegacyPBKDF2Hex(digest string) ([]byte, []byte, error) {
	saltHex, keyHex, found := strings.Cut(strings.TrimSpace(digest), ":")
	if !found {
		return nil, nil, fmt.Errorf("invalid legacy digest format")
	}

	salt, err := hex.DecodeString(saltHex)
	if err != nil || len(salt) == 0 {
		return nil, nil, fmt.Errorf("decoding legacy salt")
	}

	key, err := hex.DecodeString(keyHex)
	if err != nil || len(key) == 0 {
		return nil, nil, fmt.Errorf("decoding legacy key")
	}

	return salt, key, nil
}

// LegacyPBKDF2Hex builds a legacy_pbkdf2_hex digest. Only fixtures and the CLI use it.
func LegacyPBKDF2Hex(password string, salt []byte) string {
	key := pbkdf2.Key([]byte(password), salt, legacyPBKDF2Iterations, pbkdf2KeyLen, sha256.New)
	return hex.EncodeToString(salt) + ":" + hex.EncodeToString(key)
}
