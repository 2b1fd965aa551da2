// Package httpapi exposes the bridge over HTTP: a human status page, the
// QR/pairing-code artifacts, the recent log feed, a health check, and the
// pair/reset/send control operations. It is a thin facade: it reads the
// manager's published snapshot and enqueues operations, never touching
// connection state directly. The mutating endpoints can be guarded with an
// HS256 bearer token.
package httpapi
