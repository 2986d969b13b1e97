// Package domain defines the MCP tool schemas and handlers that bridge an
// AI assistant host to the vehicle network's APIs. Every vehicle-scoped
// handler composes the same pipeline: the ownership gate, then the vehicle
// token exchange, then the upstream call, with denials returned as
// structured results rather than protocol errors.
package domain
