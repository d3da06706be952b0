package bitcoin

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/base58"

	reportErrors "github.com/bardlex/guardreport/pkg/errors"
)

// Serialized public key lengths
const (
	CompressedPubKeyLen   = 33
	UncompressedPubKeyLen = 65
)

// CheckKey validates a public key given either as a hex string or as raw
// bytes and returns its bytes. Only the length is checked.
func CheckKey(key any) ([]byte, error) {
	var raw []byte

	switch k := key.(type) {
	case string:
		decoded, err := hex.DecodeString(k)
		if err != nil {
			return nil, reportErrors.Wrap(err, reportErrors.ErrorTypeValidation, "check_key",
				"pubkey is not valid hex").
				WithContext("pubkey", k)
		}
		raw = decoded
	case []byte:
		raw = k
	default:
		return nil, reportErrors.New(reportErrors.ErrorTypeValidation, "check_key",
			fmt.Sprintf("pubkey must be a hex string or bytes, got %T", key))
	}

	if len(raw) != CompressedPubKeyLen && len(raw) != UncompressedPubKeyLen {
		return nil, reportErrors.New(reportErrors.ErrorTypeValidation, "check_key",
			"pubkey must be 33 or 65 bytes").
			WithContext("length", len(raw))
	}

	return raw, nil
}

// KeyToAddress derives the pay-to-pubkey-hash address of a public key:
// base58check(version || RIPEMD160(SHA256(key))).
func KeyToAddress(key any, version byte) (string, error) {
	raw, err := CheckKey(key)
	if err != nil {
		return "", err
	}
	return base58.CheckEncode(btcutil.Hash160(raw), version), nil
}

// DecodeAddress reverses KeyToAddress, returning the key hash and version byte.
func DecodeAddress(address string) ([]byte, byte, error) {
	hash, version, err := base58.CheckDecode(address)
	if err != nil {
		return nil, 0, reportErrors.Wrap(err, reportErrors.ErrorTypeValidation, "decode_address",
			"invalid base58check address").
			WithContext("address", address)
	}
	return hash, version, nil
}
