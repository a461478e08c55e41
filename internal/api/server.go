package api

import (
	"net/http"

	"github.com/admaesmo/AidDiag/internal/api/middleware"
	"github.com/admaesmo/AidDiag/internal/audit"
	"github.com/admaesmo/AidDiag/internal/auth"
	"github.com/admaesmo/AidDiag/internal/core"
	"github.com/admaesmo/AidDiag/internal/keys"
	"github.com/admaesmo/AidDiag/internal/service"
	"github.com/admaesmo/AidDiag/internal/token"
)

type Server struct {
	keySet        *keys.Set
	codec         *token.Codec
	validator     *auth.Validator
	authenticator *auth.Authenticator
	refreshFlow   *auth.RefreshFlow
	oidc          *auth.OIDCVerifier
	principals    core.PrincipalStore
	intake        *service.IntakeService
	auditor       core.Auditor
	tenantName    string
}

func NewServer(
	keySet *keys.Set,
	codec *token.Codec,
	validator *auth.Validator,
	authenticator *auth.Authenticator,
	refreshFlow *auth.RefreshFlow,
	oidc *auth.OIDCVerifier,
	principals core.PrincipalStore,
	intake *service.IntakeService,
	auditor core.Auditor,
	tenantName string,
) *Server {
	if auditor == nil {
		auditor = audit.NewNoopAuditor()
	}

	return &Server{
		keySet:        keySet,
		codec:         codec,
		validator:     validator,
		authenticator: authenticator,
		refreshFlow:   refreshFlow,
		oidc:          oidc,
		principals:    principals,
		intake:        intake,
		auditor:       auditor,
		tenantName:    tenantName,
	}
}

// Routes wires every endpoint. Each protected operation declares its
// required role set here, explicitly.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	anyRole := []core.Role{core.RolePatient, core.RoleProfessional, core.RoleAdmin}
	professional := []core.Role{core.RoleProfessional, core.RoleAdmin}
	adminOnly := []core.Role{core.RoleAdmin}

	// public routes
	mux.HandleFunc("GET "+HealthCheckRoute, s.handleHealth)
	mux.HandleFunc("GET "+JWKSRoute, s.handleJWKS)
	mux.HandleFunc("GET "+AboutRoute, s.handleAbout)

	// authentication boundary
	mux.HandleFunc("POST "+SignUpRoute, s.handleSignUp)
	mux.HandleFunc("POST "+SignInRoute, s.handleSignIn)
	mux.HandleFunc("POST "+RefreshRoute, s.handleRefresh)

	// protected routes
	mux.Handle("POST "+AssignRoleRoute, s.guard(s.handleAssignRole, adminOnly))
	mux.Handle("POST "+EnableMFARoute, s.guard(s.handleEnableMFA, anyRole))
	mux.Handle("POST "+PasswordResetRoute, s.guard(s.handlePasswordReset, anyRole))
	mux.Handle("GET "+MeRoute, s.guard(s.handleMe, anyRole))

	mux.Handle("POST "+SymptomsRoute, s.guard(s.handleCreateSymptoms, anyRole))
	mux.Handle("GET "+SymptomsRoute, s.guard(s.handleListSymptoms, anyRole))
	mux.Handle("POST "+PredictRoute, s.guard(s.handlePredict, anyRole))
	mux.Handle("GET "+PredictionsRoute, s.guard(s.handleListPredictions, anyRole))

	mux.Handle("GET "+CasesRoute, s.guard(s.handleListCases, professional))
	mux.Handle("PATCH "+CaseByIDRoute, s.guard(s.handlePatchCase, professional))

	mux.Handle("POST "+AuditEventsRoute, s.guard(s.handleCreateAuditEvent, anyRole))
	mux.Handle("GET "+AuditEventsRoute, s.guard(s.handleListAuditEvents, adminOnly))

	return middleware.RecoverMiddleware(
		middleware.CorrelationIDMiddleware(
			middleware.LoggingMiddleware(
				mux)))
}

func (s *Server) guard(h http.HandlerFunc, roles []core.Role) http.Handler {
	return middleware.BearerAuth(s.codec, s.validator, s.auditor, roles...)(h)
}
