// Package ton covers the small part of the TON wire format the escrow flow
// needs: wallet address checks, TON to nanoton conversion and the
// create-escrow message body.
package ton

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"

	"github.com/xssnick/tonutils-go/address"
)

var (
	// user-friendly form: tag+workchain prefix (EQ, UQ, kQ, 0Q) and 46 base64url chars
	friendlyAddr = regexp.MustCompile(`^[EUk0]Q[A-Za-z0-9_-]{46}$`)
	rawAddr      = regexp.MustCompile(`^0:[a-fA-F0-9]{64}$`)
)

var ErrInvalidAddress = errors.New("invalid TON address")

// ValidAddress checks the textual format only; checksums are verified by ParseAddress.
func ValidAddress(s string) bool {
	return friendlyAddr.MatchString(s) || rawAddr.MatchString(s)
}

// ParseAddress accepts both the user-friendly and the raw "0:<hex>" encodings.
func ParseAddress(s string) (*address.Address, error) {
	switch {
	case rawAddr.MatchString(s):
		a, err := address.ParseRawAddr(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
		}
		return a, nil
	case friendlyAddr.MatchString(s):
		a, err := address.ParseAddr(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
		}
		return a, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
}

// SameAccount reports whether a and b name the same account, comparing
// parsed workchain and hash when both parse and falling back to string equality.
func SameAccount(a, b string) bool {
	if a == b {
		return true
	}
	pa, err := ParseAddress(a)
	if err != nil {
		return false
	}
	pb, err := ParseAddress(b)
	if err != nil {
		return false
	}
	return pa.Workchain() == pb.Workchain() && bytes.Equal(pa.Data(), pb.Data())
}
