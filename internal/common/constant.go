// Package common contains shared constants and sentinel errors used across
// kusogate components.
package common

const (
	// AuthorizationHeaderName carries the inbound bearer token on gateway calls.
	AuthorizationHeaderName = "Authorization"

	// MCPProtocolVersionHeaderName and MCPProtocolVersion are sent with every
	// JSON-RPC request to the MCP gateway.
	MCPProtocolVersionHeaderName = "mcp-protocol-version"
	MCPProtocolVersion           = "2025-11-25"
)
