package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/trezcool/hifdh/core"
	"github.com/trezcool/hifdh/core/user"
)

// accessMiddleware resolves the access of the authenticated caller once per request.
// A failed role lookup is logged and the request goes on without a role.
func accessMiddleware(svc *user.Service, logger core.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			acc, err := svc.ResolveAccess(ctx.Request().Context(), claims.Subject, claims.Email)
			if err != nil {
				logger.Warn("cannot verify role", err, acc)
			}
			ctx.Set(contextAccessKey, acc)
			return next(ctx)
		}
	}
}

func adminMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if getContextAccess(ctx).IsAdmin() {
				return next(ctx)
			}
			return errHTTPForbidden
		}
	}
}
