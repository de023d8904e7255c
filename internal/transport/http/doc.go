// Package http exposes the extraction, master data, table and formula
// services over a chi router. Handlers decode input, call one service
// method and render JSON; failures go through the shared error handler as
// RFC 7807 problems.
package http
