// Package auth owns marketplace accounts and sessions.
//
// Subpackages:
//   - domain: signup, login, profile and role changes, session lifecycle
//   - token: signed bearer tokens that carry a session id
package auth
