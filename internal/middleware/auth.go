package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/clinic-api/internal/handler"
	"github.com/jwalitptl/clinic-api/internal/service/session"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

type AuthMiddleware struct {
	resolver session.Resolver
}

func NewAuthMiddleware(resolver session.Resolver) *AuthMiddleware {
	return &AuthMiddleware{resolver: resolver}
}

// Authenticate resolves the caller's session and stores it in the context.
// Requests without valid credentials are rejected before any handler runs.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := m.resolver.GetSession(c.Request.Context(), c.Request.Header)
		if err != nil {
			log.Error().Err(err).Str("request_id", c.GetString(ContextRequestID)).Msg("failed to resolve session")
			handler.RespondError(c, apperrors.Store(err))
			return
		}
		if sess == nil {
			handler.RespondError(c, apperrors.Unauthorized(nil))
			return
		}

		c.Set(handler.ContextSession, sess)
		c.Set("user_id", sess.User.ID.String())
		if clinicID, ok := sess.ClinicID(); ok {
			c.Set("clinic_id", clinicID.String())
		}
		c.Next()
	}
}
