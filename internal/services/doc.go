// Package services implements the comic API client used by the stores.
//
// # Client Interface
//
// Stores depend on [Client], which covers sign-in, the profile and the
// category catalog. [APIService] implements it over HTTP.
//
// # Request Signing
//
// Every request carries the app headers plus a time, a nonce and a signature.
// The signature is HMAC-SHA256 over lowercase(path + time + nonce + method + api key),
// keyed by the app secret ([Signer]). The session token and preferred image
// quality are read per request from a [SessionFunc], so they follow the user
// and setting stores without the client holding state of its own.
//
// # Pacing
//
// Requests wait on a token-bucket limiter (golang.org/x/time/rate).
//
// # Error Handling
//
// Responses use a {code, message, data} envelope:
//   - [shared.ErrNotAuthenticated] : code or status 401, the session is gone
//   - [shared.ErrAPIRequest] : any other code than 200, or an unreadable body
//   - [shared.ErrAuthFailed] : sign-in succeeded at the HTTP level without a token
package services
