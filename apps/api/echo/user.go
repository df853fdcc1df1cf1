package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/hifdh/core/user"
)

type authAPI struct {
	*Server
}

func registerAuthAPI(g *echo.Group, s *Server, jwt, access echo.MiddlewareFunc) {
	api := authAPI{s}

	ag := g.Group("/auth")

	// un-authed endpoints
	// TODO: rate limit `/login`, `/password-reset` & `/password-reset-confirm`
	ag.POST("/login", api.login)
	ag.POST("/google", api.googleLogin)
	ag.POST("/password-reset", api.resetPassword)
	ag.POST("/password-reset-confirm", api.confirmPasswordReset)

	// authed endpoints
	ag.POST("/token-refresh", api.refreshToken, jwt)
	ag.GET("/me", api.me, jwt, access)

	sg := g.Group("/students", jwt, access)
	sg.GET("", api.queryStudents, adminMiddleware())
}

// Handlers

func (api *authAPI) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.opts.Validate); err != nil {
		return err
	}

	claims, err := authenticate(ctx.Request().Context(), api.opts.Conf, api.opts.UserSvc, data.Email, data.Password)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	return api.sendToken(ctx, claims)
}

func (api *authAPI) googleLogin(ctx echo.Context) error {
	var data GoogleLoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GoogleLoginRequest")
	}
	if err := data.Validate(api.opts.Validate); err != nil {
		return err
	}

	claims, err := authenticateGoogle(ctx.Request().Context(), api.Server, data.IDToken)
	if err != nil {
		return errors.Wrap(err, "authenticating with google")
	}
	return api.sendToken(ctx, claims)
}

func (api *authAPI) sendToken(ctx echo.Context, claims *Claims) error {
	token, err := GenerateToken(api.opts.Conf, claims)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *authAPI) resetPassword(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}
	if err := data.Validate(api.opts.Validate); err != nil {
		return err
	}

	err := api.opts.UserSvc.RequestPasswordReset(ctx.Request().Context(), data.Email)
	if !(err == nil || errors.Cause(err) == user.ErrNotFound) {
		// do not return errors to attackers
		api.opts.Logger.Error("requesting password reset", errors.Wrap(err, "requesting password reset"))
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{
		Success: "If the email address supplied is associated with an account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})
}

func (api *authAPI) confirmPasswordReset(ctx echo.Context) error {
	var data user.ResetUserPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetUserPassword")
	}
	if err := data.Validate(api.opts.Validate); err != nil {
		return err
	}

	if err := api.opts.UserSvc.ResetPassword(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password has been reset with the new password."})
}

func (api *authAPI) refreshToken(ctx echo.Context) error {
	token, err := refreshToken(ctx, api.opts.Conf, api.opts.UserSvc)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *authAPI) me(ctx echo.Context) error {
	acc := getContextAccess(ctx)
	res := MeResponse{
		ID:      acc.UserID,
		Email:   acc.Email,
		Role:    acc.Role,
		IsAdmin: acc.IsAdmin(),
		State:   acc.State().String(),
	}
	// the role lookup may have failed: the name is a nice-to-have
	if usr, err := api.opts.UserSvc.GetByID(ctx.Request().Context(), acc.UserID); err == nil {
		res.Name = usr.Name
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *authAPI) queryStudents(ctx echo.Context) error {
	filter := new(user.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []StudentResponse{})
	}

	students, err := api.opts.UserSvc.Directory(ctx.Request().Context(), *filter)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	return ctx.JSON(http.StatusOK, newStudentResponses(students))
}
