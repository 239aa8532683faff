// Package http provides HTTP handlers and middleware for the room booking API.
//
// The router exposes the following endpoints:
//   - POST /users registers an account. GET, PUT and DELETE /users/{id} read,
//     update and remove it; updates and deletes are limited to the account owner.
//     GET and DELETE /users/{id}/meetings list or cancel that user's meetings.
//   - POST /tokens exchanges {"login","password"} for an opaque session token.
//     The token is returned in the body and as the `roombook_session` cookie.
//     Login attempts are throttled per client. DELETE /tokens revokes the token
//     that authenticated the request.
//   - GET and POST /rooms list and create rooms. A listing that carries
//     `available_from` and `available_to` returns only rooms free in that window.
//     GET, PUT and DELETE /rooms/{id} manage a single room and
//     GET /rooms/{id}/meetings lists the meetings booked in it.
//   - GET /meetings lists confirmed meetings with `page`, `items`,
//     `include_past` and equality filters. POST /meetings with an empty body
//     issues a reservation slot; with a JSON body it books directly.
//     GET, PUT and DELETE /meetings/{id} read, fill in or update, and cancel a
//     meeting. PUT /meetings/{id}/rooms/{room_id} moves it to another room.
//     Writes to an existing meeting carry its ETag in If-Match.
//   - GET /healthz reports liveness and GET /metrics exposes Prometheus metrics.
//
// Every endpoint except registration, login, health and metrics requires a
// token sent as `Authorization: Bearer <token>` or the session cookie.
// Errors use the body {"error_code","message","errors"}. Request and response
// DTOs live alongside their handlers.
package http
