// Package session implements the session registry: the shared scene state,
// capability keys, and controller/participant bookkeeping for each named
// viewing session.
//
// A session is created the first time a connection issues a create for an
// unknown token and lives for the lifetime of the process. The capability
// key assigned at creation never changes; presenting it on a mutating
// operation is the sole authorization rule for scene and asset updates.
// Controller membership is presentational only: it badges crosshair
// broadcasts and is never consulted for authorization.
//
// All registry state is guarded by a single RWMutex; every exported method
// is safe for concurrent use from connection goroutines.
package session
