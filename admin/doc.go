// Package admin exposes the read and administrative operations of a
// Sentinel as a JSON API on a chi router.
//
// The API performs no authentication of its own. Mount it on a listener
// that only operators can reach, or wrap the returned handler with the
// deployment's own auth middleware.
//
// Routes (all under /admin/v1):
//
//	GET    /sessions                              live sessions of every user
//	GET    /sessions/stats                        session statistics
//	GET    /sessions/{user_id}                    live sessions of one user
//	DELETE /sessions/{user_id}                    invalidate all sessions of a user
//	GET    /sessions/{user_id}/{session_id}/uptime
//	DELETE /sessions/{user_id}/{session_id}       invalidate one session
//	GET    /threats                               ?type=&level=&status=&since=&until=&limit=
//	GET    /threats/stats
//	GET    /threats/{id}
//	PATCH  /threats/{id}                          {"status": ..., "mitigation_action": ...}
//	GET    /blocklist
//	POST   /blocklist                             {"ip": ..., "reason": ..., "ttl": "1h"}
//	DELETE /blocklist/{ip}
//	GET    /detector/stats
//	GET    /activity                              ?level=&category=&user_id=&since=&until=&limit=
//	GET    /activity/stats
//	GET    /activity/export                       ?format=json|csv
//	DELETE /activity
//	POST   /reaper/sweep
//
// Errors are returned as {"error": code, "error_description": text}.
package admin
