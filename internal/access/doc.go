// Package access issues and redeems time-limited download tokens.
//
// A token is a random nonce bound to an artifact name and expiry by a BLAKE3
// keyed MAC, so the service stays stateless: everything needed to validate a
// link travels in its query string. Tokens are bearer capabilities and are
// not consumed by redemption.
package access
