// Package auth implements the identity and session core for notehub: bcrypt
// credential hashing, issuance and verification of the three bearer token
// classes (access, refresh, reset), the per-user session rotation protocol,
// and the password recovery flow. HTTP controllers and the notes service sit
// on top of it; the notes service only shares the access token verification
// secret, never the session store.
package auth
