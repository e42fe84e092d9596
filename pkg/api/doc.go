// Package api provides the HTTP boundary for the orbitdash resource layer.
//
// Inbound requests pass the admission governor before reaching any handler;
// allowed responses carry X-RateLimit-Limit, X-RateLimit-Remaining, and
// X-RateLimit-Reset headers, and rejected ones a 429 with Retry-After.
// Artifact handlers consult the cache first and invoke the upstream fetcher
// only on a miss on the populate path. Operational endpoints (health,
// metrics) bypass the governor.
package api
