// Package acl is the anti-corruption layer in front of the managed backend:
// a PostgREST data API, a GoTrue identity service and a storage API behind
// one base URL.
//
// Backend implements ports.Store, ports.AuthProvider and ports.FileStorage.
// Wire DTOs never leave this package; every response is validated and
// translated to domain types, and every failure is mapped to a domain error:
//
//   - 23505 (unique violation) → [domain.ErrConflict]
//   - 23503 (foreign key violation) and PGRST116 (no rows) → [domain.ErrNotFound]
//   - invalid_grant, invalid_credentials, otp_expired → [domain.ErrForbidden]
//   - user_already_exists, email_exists → [domain.ErrConflict]
//   - 400/422 otherwise → [domain.ErrValidation]
//   - 5xx, transport failures and an open circuit → [domain.ErrUnavailable]
//
// Requests carry the project's anon key in the apikey header and the signed
// in user's access token as the bearer, so row level security sees the user.
package acl
