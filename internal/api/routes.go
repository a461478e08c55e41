package api

const (
	HealthCheckRoute = "/healthz"
	JWKSRoute        = "/.well-known/jwks.json"
	AboutRoute       = "/about"

	AuthParent         = "/api/v1/auth/"
	SignUpRoute        = AuthParent + "signup"
	SignInRoute        = AuthParent + "signin"
	RefreshRoute       = AuthParent + "refresh"
	AssignRoleRoute    = AuthParent + "assign-role"
	EnableMFARoute     = AuthParent + "mfa/enable"
	PasswordResetRoute = AuthParent + "password/reset"
	MeRoute            = AuthParent + "me"

	SymptomsRoute    = "/api/v1/symptoms"
	PredictRoute     = "/api/v1/predict"
	PredictionsRoute = "/api/v1/predictions"
	CasesRoute       = "/api/v1/cases"
	CaseByIDRoute    = "/api/v1/cases/{id}"
	AuditEventsRoute = "/api/v1/audit/events"
)
