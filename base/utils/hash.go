package utils

import (
	"crypto/sha512"
	"encoding/base64"

	"github.com/mitchellh/hashstructure/v2"
)

var hashOptions = &hashstructure.HashOptions{SlicesAsSets: true}

// HashAny computes a stable hash of an arbitrary value. Used to key
// per-sync coordination state by the content of a sync plan.
func HashAny(value any) (uint64, error) {
	hash, err := hashstructure.Hash(value, hashstructure.FormatV2, hashOptions)
	if err != nil {
		return 0, err
	}
	return hash, nil
}

// HashToken hashes an auth token with salt and secret. Tokens may be stored
// in config as `${salt}.${hash}` where hash = base64(sha512(token+salt+secret)).
func HashToken(token string, salt string, secret string) string {
	hash := sha512.New()
	hash.Write([]byte(token + salt + secret))
	return base64.RawStdEncoding.EncodeToString(hash.Sum(nil))
}
