// Package api hosts the HTTP server, middleware, and REST handlers. Every
// route below is served at the root and again under /api/v1:
//   - POST /captures/ submits a capture and answers 202 with the pending job.
//   - GET /captures/, /captures/{id} and /captures/{id}/status read jobs.
//   - GET /captures/screenshots/{id}[/thumbnail] streams stored PNGs.
//   - POST /url/validate normalizes a URL without creating anything.
//   - GET/POST /device-profiles and GET /device-profiles/default manage
//     viewport presets.
//   - GET /pages/{id}/screenshots lists a page's screenshots.
//
// GET /healthz, /readyz and /metrics are root-only.
package api
