// Package handlers contains reusable HTTP pieces of the attendance API:
// health checks and middleware.
//
// # Health Checks
//
// Required checks make the service unhealthy when they fail. Optional checks
// only mark it degraded:
//
//	checker := handlers.NewCompositeHealthChecker("v1")
//	checker.AddCheck("fallback_store", handlers.NewPingCheck(fallback))
//	checker.AddOptionalCheck("github", handlers.NewPingCheck(remote))
//
// # Admin Auth
//
// Admin endpoints use HTTP Basic auth against a bcrypt hash:
//
//	auth := handlers.NewAdminAuth("admin", os.Getenv("ADMIN_PASSWORD_HASH"))
//	protected := auth.Middleware(myHandler)
package handlers
