package auth

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"printer-fieldops/internal/model"
)

func newTestHasher(t *testing.T) *Hasher {
	t.Helper()

	h, err := NewHasher(1000)
	require.NoError(t, err)
	return h
}

func TestHasherRoundTrip(t *testing.T) {
	t.Parallel()

	h := newTestHasher(t)
	passwords := []string{"Correct-Horse-9", "Zebra#Printer2026", "ÄÖÜäöü12345!x"}

	for _, password := range passwords {
		require.NoError(t, ValidatePassword(password))

		digest, alg, err := h.Hash(password)
		require.NoError(t, err)
		require.Equal(t, model.HashPBKDF2SHA256, alg)
		require.True(t, h.Verify(password, digest, alg))
		require.False(t, h.Verify(password+"x", digest, alg))
	}
}

func TestHasherProducesSaltedDigests(t *testing.T) {
	t.Parallel()

	h := newTestHasher(t)
	first, _, err := h.Hash("Same-Password-1")
	require.NoError(t, err)
	second, _, err := h.Hash("Same-Password-1")
	require.NoError(t, err)

	require.NotEqual(t, first, second)
	require.Contains(t, first, "pbkdf2_sha256$1000$")
}

func TestHasherVerifiesAllAlgorithms(t *testing.T) {
	t.Parallel()

	h := newTestHasher(t)
	password := "Legacy-Account-42!"

	bcryptDigest, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	pbkdf2Digest, _, err := h.Hash(password)
	require.NoError(t, err)
	legacyDigest := LegacyPBKDF2Hex(password, []byte("0123456789abcdef"))

	cases := []struct {
		name   string
		digest string
		alg    model.HashAlgorithm
		rehash bool
	}{
		{"pbkdf2_sha256", pbkdf2Digest, model.HashPBKDF2SHA256, false},
		{"bcrypt", string(bcryptDigest), model.HashBcrypt, true},
		{"legacy_pbkdf2_hex", legacyDigest, model.HashLegacyPBKDF2Hex, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.True(t, h.Verify(password, tc.digest, tc.alg))
			require.False(t, h.Verify("Wrong-Password-42!", tc.digest, tc.alg))
			require.Equal(t, tc.rehash, h.NeedsRehash(tc.alg))
			require.NoError(t, ValidateDigest(tc.digest, tc.alg))
		})
	}
}

func TestHasherRejectsMismatchedAlgorithmTag(t *testing.T) {
	t.Parallel()

	h := newTestHasher(t)
	digest, _, err := h.Hash("Tagged-Wrong-1!")
	require.NoError(t, err)

	require.False(t, h.Verify("Tagged-Wrong-1!", digest, model.HashBcrypt))
	require.False(t, h.Verify("Tagged-Wrong-1!", digest, model.HashLegacyPBKDF2Hex))
	require.False(t, h.Verify("Tagged-Wrong-1!", digest, 0))
}

func TestValidateDigestRejectsMalformed(t *testing.T) {
	t.Parallel()

	require.ErrorIs(t, ValidateDigest("pbkdf2_sha256$abc$salt$key", model.HashPBKDF2SHA256), model.ErrInvalidInput)
	require.ErrorIs(t, ValidateDigest("not-a-bcrypt-hash", model.HashBcrypt), model.ErrInvalidInput)
	require.ErrorIs(t, ValidateDigest("zz:11", model.HashLegacyPBKDF2Hex), model.ErrInvalidInput)
	require.ErrorIs(t, ValidateDigest("abcd", model.HashLegacyPBKDF2Hex), model.ErrInvalidInput)
}

func TestVerifyDummyNeverPanics(t *testing.T) {
	t.Parallel()

	h := newTestHasher(t)
	h.VerifyDummy("")
	h.VerifyDummy("anything")
}

// recordVerifiers wraps h's verifiers and returns the formats each call touched.
func recordVerifiers(h *Hasher) *[]model.HashAlgorithm {
	var calls []model.HashAlgorithm
	for alg, verify := range h.verifiers {
		h.verifiers[alg] = func(password string, digest string) bool {
			calls = append(calls, alg)
			return verify(password, digest)
		}
	}
	return &calls
}

func TestVerifyLoginCostsTheSameForEveryFormat(t *testing.T) {
	t.Parallel()

	password := "Legacy-Account-7!"
	seed := newTestHasher(t)
	native, _, err := seed.Hash(password)
	require.NoError(t, err)
	bcryptDigest, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	stored := map[model.HashAlgorithm]string{
		model.HashPBKDF2SHA256:    native,
		model.HashBcrypt:          string(bcryptDigest),
		model.HashLegacyPBKDF2Hex: LegacyPBKDF2Hex(password, []byte("0123456789abcdef")),
	}
	all := []model.HashAlgorithm{model.HashPBKDF2SHA256, model.HashBcrypt, model.HashLegacyPBKDF2Hex}

	for alg, digest := range stored {
		t.Run(alg.String(), func(t *testing.T) {
			t.Parallel()

			h := newTestHasher(t)
			calls := recordVerifiers(h)

			require.True(t, h.VerifyLogin(password, digest, alg))
			require.ElementsMatch(t, all, *calls)

			*calls = nil
			require.False(t, h.VerifyLogin("Wrong-Password-42!", digest, alg))
			require.ElementsMatch(t, all, *calls)
		})
	}

	t.Run("unknown account", func(t *testing.T) {
		t.Parallel()

		h := newTestHasher(t)
		calls := recordVerifiers(h)

		h.VerifyDummy(password)
		require.ElementsMatch(t, all, *calls)
		require.False(t, h.VerifyLogin(password, native, 0))
	})
}
