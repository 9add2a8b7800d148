// Package luna provides the HTTP transport for the Luna cluster daemon.
//
// # Overview
//
// Every daemon exchange goes through Client, which attaches an access token,
// retries transient failures and normalizes the answer into a Response
// carrying the status code, the decoded JSON object (when there is one) and
// the raw bytes.
//
// # Operations
//
//   - Fetch(path): authenticated GET
//   - Submit(path, payload): authenticated POST with a JSON body
//   - Remove(path): GET <path>/_delete, the daemon's delete action
//   - Login(username, password): POST token, the only unauthenticated call
//
// # Authentication
//
// A TokenSource supplies the x-access-tokens header for every call. When the
// daemon answers 401 the token is invalidated and the call is replayed once.
//
// # Retries
//
// Statuses 502, 503 and 504 and connection errors are retried up to
// Options.Retries times with exponential backoff (250ms, doubling, capped at
// 5s). When the budget runs out on a retryable status, the final response is
// returned unchanged so that callers see the daemon's answer. A connection
// error that outlives the budget is wrapped in ErrUnreachable.
//
// # Asynchronous requests
//
// A 2xx answer whose body carries request_id means the daemon is running the
// action in the background. Response.RequestID exposes it; the tracker
// package polls StatusPath(id) until the job disappears.
//
// # Wire shapes
//
//	GET  config/<resource>                 {"config": {"<resource>": {"<name>": {...}}}}
//	POST config/<resource>/<name>          {"config": {"<resource>": {"<name>": {...}}}}
//	GET  config/status/<request_id>        {"message": "a;;b", "request_id": "..."}
//	POST control/action/<system>/_<action> {"control": {"<system>": {"<action>": {"hostlist": "..."}}}}
package luna
