package tor

import (
	"encoding/base32"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Onion address constants.
const (
	// OnionV3Length is the length of a v3 onion address without the ".onion" suffix.
	OnionV3Length = 56

	// OnionV3TotalLength is the total length including the ".onion" suffix.
	OnionV3TotalLength = OnionV3Length + len(OnionSuffix)

	// OnionV3Version is the version byte for v3 onion addresses.
	OnionV3Version = 0x03

	// OnionSuffix is the common suffix for all onion addresses.
	OnionSuffix = ".onion"
)

// onionV3Pattern matches v3 onion addresses (56 base32 characters + .onion).
var onionV3Pattern = regexp.MustCompile(`^[a-z2-7]{56}\.onion$`)

// onionV2Pattern matches the retired 16-character v2 format.
var onionV2Pattern = regexp.MustCompile(`^[a-z2-7]{16}\.onion$`)

// checksumPrefix is the constant prefix of the v3 checksum input.
var checksumPrefix = []byte(".onion checksum")

// IsOnionHost reports whether host (with or without a port) is in the .onion TLD.
func IsOnionHost(host string) bool {
	return strings.HasSuffix(strings.ToLower(stripPort(host)), OnionSuffix)
}

// ValidateOnionHost checks a .onion host before any request is made.
// Hosts outside the .onion TLD are accepted unchanged.
func ValidateOnionHost(host string) error {
	h := strings.ToLower(stripPort(host))
	if !strings.HasSuffix(h, OnionSuffix) {
		return nil
	}

	// Subdomains of an onion service are routed to the service itself.
	labels := strings.Split(strings.TrimSuffix(h, OnionSuffix), ".")
	service := labels[len(labels)-1] + OnionSuffix

	if IsValidV3Address(service) {
		return nil
	}
	if onionV2Pattern.MatchString(service) {
		return fmt.Errorf("%w: %s", ErrV2AddressDeprecated, host)
	}
	return fmt.Errorf("%w: %s", ErrInvalidOnionAddress, host)
}

// IsValidV3Address checks the format and the embedded checksum of a v3 address.
// The address must include the ".onion" suffix; case is ignored.
func IsValidV3Address(address string) bool {
	address = strings.ToLower(address)
	if !onionV3Pattern.MatchString(address) {
		return false
	}

	decoded, err := base32.StdEncoding.DecodeString(strings.ToUpper(strings.TrimSuffix(address, OnionSuffix)))
	if err != nil {
		return false
	}

	// 32 bytes ed25519 public key, 2 bytes checksum, 1 byte version.
	if len(decoded) != 35 {
		return false
	}

	pubkey := decoded[:32]
	checksum := decoded[32:34]
	version := decoded[34]

	if version != OnionV3Version {
		return false
	}

	expected := computeV3Checksum(pubkey, version)
	return checksum[0] == expected[0] && checksum[1] == expected[1]
}

// computeV3Checksum returns the first 2 bytes of
// SHA3-256(".onion checksum" || pubkey || version).
func computeV3Checksum(pubkey []byte, version byte) []byte {
	data := make([]byte, 0, len(checksumPrefix)+len(pubkey)+1)
	data = append(data, checksumPrefix...)
	data = append(data, pubkey...)
	data = append(data, version)

	hash := sha3.Sum256(data)
	return hash[:2]
}

// stripPort removes a trailing ":port" from host.
func stripPort(host string) string {
	if i := strings.LastIndexByte(host, ':'); i != -1 && !strings.Contains(host[i:], "]") {
		return host[:i]
	}
	return host
}
