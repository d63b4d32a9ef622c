// Package tor routes page requests for .onion tabs through the Tor network.
//
// The web host only needs this package when a tab list contains onion
// services. Either an existing Tor SOCKS5 proxy is used (Client) or a
// private daemon is started with tornago (EmbeddedTor). Onion host names
// are checked before any request is made so a mistyped address fails fast
// instead of waiting for a circuit timeout.
package tor
