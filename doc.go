// Package identity provides the session and authorization core for a
// property-listing marketplace: credential verification, JWT pair issuance,
// cookie-backed sessions, role guards, and an append-only audit trail.
//
// Principal lifecycle:
//   - Principals carry a Status field that is persisted via Bun. Self
//     registration creates pending accounts that require administrative
//     approval; provider-backed sign-in creates active accounts directly.
//   - PrincipalStateMachine centralizes the transition graph, timestamp
//     handling, hooks, and persistence. Invoke Transition with ActorRef
//     metadata whenever an admin moves an account; approvals and rejections
//     land in the audit log with the right classification.
//
// Audit recording:
//   - Recorder appends AuditEntry rows for privileged mutations. Writes run
//     best-effort (errors are logged) so a failed audit insert never blocks
//     or rolls back the action it describes.
//
// Sessions:
//   - TokenService mints an access/refresh pair from the same claims,
//     differing only in type and expiry. SessionCookies persists both tokens
//     as HTTP-only cookies, and Guard validates access tokens on protected
//     routes with role checks layered on top.
package identity
