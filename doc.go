// Package conduit implements a small Conduit-style blogging backend:
// account registration and login with bcrypt-hashed credentials, stateless
// JWT session tokens, tag listing, and a profile follow graph, persisted in
// SQLite through bun.
//
// The package exposes the domain services and repositories; the HTTP surface
// is bound in http_controller.go and the server binary lives in cmd/conduit.
package conduit
