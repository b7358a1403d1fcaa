// Package api provides the HTTP REST API and WebSocket event stream for
// the routines service.
//
// All routes live under /api/v1. Everything except /health requires a
// bearer token issued by the auth package; viewer tokens are limited to
// GET requests.
//
//	GET    /health
//	GET    /routines                  list routines
//	POST   /routines                  create a routine
//	GET    /routines/{id}             get a routine
//	PATCH  /routines/{id}             partial update
//	DELETE /routines/{id}             delete
//	POST   /routines/{id}/run         run now, returns per-action results
//	GET    /sources                   list sources (tokens masked)
//	POST   /sources                   add a source
//	PUT    /sources/{id}              update a source
//	GET    /devices?source_id=        device inventory
//	GET    /settings/interval         scheduler check interval
//	PUT    /settings/interval         change the check interval
//	GET    /activity                  activity log
//	GET    /ws                        WebSocket event stream
//
// WebSocket clients subscribe to channels (routine.ran, routine.changed,
// settings.changed) and receive event messages as they happen.
//
// The server follows the same lifecycle pattern as other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api
