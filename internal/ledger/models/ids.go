package models

import (
	"database/sql/driver"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// PersonIDLength is the byte length of a person identifier.
const PersonIDLength = 32

// PersonID is the opaque identity that owns an entitlement.
// It is fixed-length and independent of the wallet currently bound to it.
type PersonID [PersonIDLength]byte

// ParsePersonID accepts 64 hex characters with an optional 0x prefix.
func ParsePersonID(s string) (PersonID, error) {
	var id PersonID
	raw := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(raw) != PersonIDLength*2 {
		return id, InvalidPersonID(s)
	}
	if _, err := hex.Decode(id[:], []byte(raw)); err != nil {
		return id, InvalidPersonID(s)
	}
	return id, nil
}

func (p PersonID) String() string {
	return "0x" + hex.EncodeToString(p[:])
}

func (p PersonID) IsNil() bool {
	return p == PersonID{}
}

func (p PersonID) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *PersonID) UnmarshalText(b []byte) error {
	parsed, err := ParsePersonID(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Value stores the id as lowercase hex text.
func (p PersonID) Value() (driver.Value, error) {
	return p.String(), nil
}

func (p *PersonID) Scan(src any) error {
	switch v := src.(type) {
	case string:
		return p.UnmarshalText([]byte(v))
	case []byte:
		return p.UnmarshalText(v)
	default:
		return fmt.Errorf("scan person id: unsupported type %T", src)
	}
}

// Wallet is an address bound to a person. Addresses compare case-insensitively.
type Wallet string

const maxWalletLength = 128

// ParseWallet trims and lowercases an address.
func ParseWallet(s string) (Wallet, error) {
	w := strings.ToLower(strings.TrimSpace(s))
	if w == "" || len(w) > maxWalletLength {
		return "", InvalidRequest("wallet", "must be 1-128 characters")
	}
	return Wallet(w), nil
}

func (w Wallet) String() string { return string(w) }

// RegionID identifies a region that owns one rate index and one oracle signal.
type RegionID int64

// ConversionID identifies a pending conversion.
type ConversionID = uuid.UUID

// ParseConversionID parses the textual form of a conversion id.
func ParseConversionID(s string) (ConversionID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, NotFound("conversion")
	}
	return id, nil
}
