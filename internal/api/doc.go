// Package api provides the JSON HTTP API for the rule assistant.
//
// Endpoints cover the conversational workflow (chat and parse-only),
// session decision flows (impact analysis, approved generation), the
// rule store with version history and wire-schema discovery,
// knowledge-base builds and stats, the audit changelog, and artifact
// downloads.
//
// Responses use a uniform envelope: successes wrap the payload as
// {"data": ...} and failures as {"error": {"code", "message"}}. Error
// messages are static strings; internal detail goes to the log, keyed
// by the request ID the middleware assigns.
//
// The middleware stack is, outermost first: panic recovery, request
// ID, request logging, CORS, and per-IP rate limiting. Health probes
// are routed above the stack so orchestrators are never rate limited.
package api
