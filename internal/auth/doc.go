// Package auth hashes and verifies portal passwords and issues the signed
// session tokens carried in the portal cookie.
package auth
