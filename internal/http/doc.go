// Package http exposes the chat bot over a webhook transport.
//
// The router exposes the following endpoints:
//   - POST /updates: delivers one inbound chat message. Body: {"user_id","text"}.
//     Response: {"messages":[{"text","options":[{"label","value"}]}]} holding the
//     replies produced for that message, in order. When a webhook token is
//     configured the request must carry it in the `X-Webhook-Token` header.
//   - GET /healthz: reports {"status":"ok"} when the store answers a ping and
//     503 otherwise.
//
// Request/response DTOs live alongside their handlers.
package http
