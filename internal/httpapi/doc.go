// Package httpapi exposes the query engine as a JSON API.
//
// Routes:
//
//	GET  /healthz
//	GET  /metrics
//	POST /v1/{entity}/search
//	POST /v1/{entity}/count
//	POST /v1/{entity}/aggregate/{kind}
//	POST /v1/{entity}/explain
//
// {entity} is study, studies, citation or citations. Request bodies carry
// a predicate in the same JSON shape the CLI accepts. Errors are returned
// as {"error": {"code": ..., "message": ...}} with 400 for invalid
// predicates, 503 for store failures and 500 for anything else.
package httpapi
