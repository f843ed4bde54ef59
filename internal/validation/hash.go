package validation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// Canonicalize re-encodes a JSON document with sorted object keys and no
// insignificant whitespace, so equal documents hash equally.
func Canonicalize(raw []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("invalid JSON: trailing data after document")
	}
	return json.Marshal(v)
}

// DataHash is the keccak256 of the canonical document.
func DataHash(canonical []byte) common.Hash {
	return crypto.Keccak256Hash(canonical)
}

// ContentID is the CIDv1 (raw codec, sha2-256) of the canonical document.
func ContentID(canonical []byte) (string, error) {
	mh, err := multihash.Sum(canonical, multihash.SHA2_256, -1)
	if err != nil {
		return "", fmt.Errorf("failed to hash content: %w", err)
	}
	return cid.NewCidV1(cid.Raw, mh).String(), nil
}

// CheckContentID reports whether s is a CIDv1 raw sha2-256 content id.
func CheckContentID(s string) error {
	c, err := cid.Decode(s)
	if err != nil {
		return err
	}
	if c.Version() != 1 || c.Type() != cid.Raw || c.Prefix().MhType != multihash.SHA2_256 {
		return fmt.Errorf("unexpected content id kind %+v", c.Prefix())
	}
	return nil
}
