// Package aaa provides an authentication, authorization and accounting core
// for applications with a small, single-tenant user base. It verifies
// credentials, enforces a leveled role hierarchy, and manages time-bounded
// token workflows for self-service registration and password recovery.
//
// Storage:
//   - The engine is decoupled from any particular backend. It operates on
//     three abstract keyed tables (users, roles, pending registrations)
//     expressed by the generic Table interface and bundled in a Store.
//     The store/memory and store/bunstore packages provide ready adapters.
//
// Sessions:
//   - The engine never reads ambient request state. A Sessions collaborator
//     is injected explicitly and consulted on every call that needs the
//     current principal. MemorySessions covers tests and CLI embedding;
//     JWTSessions binds the principal into a signed token handed to
//     caller-provided reader/writer hooks.
//
// Notifications:
//   - Registration and password-reset flows dispatch messages through the
//     Notifier port. Delivery is asynchronous and best-effort: failures are
//     logged, never surfaced to the triggering call. The Mailer adapter
//     delivers over SMTP and exposes Drain for shutdown.
package aaa
