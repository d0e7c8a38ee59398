// Package edge defines the universal record types shared by ingestion,
// routing, and execution: assets, networks, route segments, routes, and
// execution records.
package edge

import "strings"

// Asset is an opaque uppercase identifier such as USD, EUR, USDC, or BTC.
// Assets are never subdivided by network; a stablecoin on two chains is the
// same Asset with two different Node values.
type Asset string

// Normalize uppercases the asset symbol.
func (a Asset) Normalize() Asset {
	return Asset(strings.ToUpper(strings.TrimSpace(string(a))))
}

// Network is an optional lowercase settlement-medium identifier such as
// "ethereum", "polygon", or "bank". The zero value represents the absence of
// a network (fiat-only rails).
type Network string

// Normalize lowercases the network identifier.
func (n Network) Normalize() Network {
	return Network(strings.ToLower(strings.TrimSpace(string(n))))
}

// IsZero reports whether the network qualifier is absent.
func (n Network) IsZero() bool {
	return strings.TrimSpace(string(n)) == ""
}

// Node is the routing graph vertex: an (asset, network) pair. A zero Network
// is a legitimate value (fiat bank-side USD).
type Node struct {
	Asset   Asset
	Network Network
}

// String renders the node as "ASSET" or "ASSET@network".
func (n Node) String() string {
	if n.Network.IsZero() {
		return string(n.Asset)
	}
	return string(n.Asset) + "@" + string(n.Network)
}

// NewNode builds a normalized Node.
func NewNode(asset Asset, network Network) Node {
	return Node{Asset: asset.Normalize(), Network: network.Normalize()}
}
