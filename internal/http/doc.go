// Package http provides HTTP handlers and middleware for the SkillSetu API.
//
// The router exposes the following endpoints:
//   - POST /auth/register, POST /auth/login: account creation and login. Both
//     return {"token","expires_at","user"} with a JWT bearer token.
//   - GET /sessions?status=..., POST /sessions/request, POST /sessions/accept,
//     POST /sessions/schedule, POST /sessions/close: the booking lifecycle,
//     exchanging the `sessionDTO` payload defined in session_handler.go.
//   - GET /sessions/ratings/{userID}: average rating a user has received.
//   - POST /sessions/message (multipart: session_id, content, file) and
//     GET /sessions/message/{sessionID}: per-session chat.
//   - GET /notifications, POST /notifications, PATCH /notifications/{id}/read,
//     POST /notifications/read-all: per-user notifications.
//   - POST /reports: file a moderation report against a session partner.
//   - GET /users, GET /users/{id}, PUT /users/me: the user directory and the
//     caller's own profile.
//   - /admin/users, /admin/reports, /admin/sessions/{id}/messages: the
//     moderation surface, admin-gated in the application layer.
//   - GET /ws/sessions/{id}, GET /ws/notifications: websocket channels pushing
//     `receive_message` and `new_notification` events.
//
// All routes except registration, login, and stored media require a bearer
// token. Request/response DTOs live alongside their respective handlers so
// tests and documentation share the same ground truth.
package http
