// Package auth provides authentication for the Hatch Bridge REST API.
//
// The bridge has a single configured admin user, so the model is
// deliberately small:
//   - Argon2id password hashing (OWASP 2025 recommendation), with the
//     admin credential stored as a PHC hash in the config file
//   - Short-lived HS256 JWT access tokens validated by signature only
//
// There is no user database, no refresh token rotation, and no role
// model. The Authenticator binds the configured credential to token
// issuance and validation for the API middleware.
package auth
