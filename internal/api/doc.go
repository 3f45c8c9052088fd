// Package api provides the HTTP handlers for the call management API:
// authentication, call CRUD, transcription status and retry, and the
// analytics summary. Handlers translate between HTTP and the service and
// store layers, mapping internal errors to safe status codes and messages.
package api
