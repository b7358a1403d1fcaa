// Package deviceapi is a client for the remote device-control REST API.
//
// The API is bearer-token authenticated and exposes devices with
// capability/command semantics:
//
//	GET  /devices                 inventory
//	GET  /devices/{id}/status     attribute map
//	GET  /devices/{id}/health     {"state": "ONLINE"}
//	POST /devices/{id}/commands   {"commands": [{component, capability, command, arguments}]}
//
// Every request carries a timeout, and requests are throttled per token
// with a token-bucket limiter so several sources cannot starve each other.
// Inventory reads go through an HTTP cache that revalidates with ETags.
package deviceapi
