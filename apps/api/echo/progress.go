package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/hifdh/core/progress"
)

type progressAPI struct {
	*Server
}

func registerProgressAPI(g *echo.Group, s *Server, jwt, access echo.MiddlewareFunc) {
	api := progressAPI{s}

	// admins act for any student, students for themselves ("me")
	sg := g.Group("/students/:id", jwt, access)
	sg.GET("/progress", api.prefill)
	sg.PUT("/progress", api.submit)
	sg.POST("/goal/complete", api.completeGoal)
	sg.GET("/logs", api.history)
	sg.GET("/overview", api.overview)
}

// Handlers

func (api *progressAPI) prefill(ctx echo.Context) error {
	acc := getContextAccess(ctx)
	form, err := api.opts.ProgressSvc.Prefill(ctx.Request().Context(), acc, bindStudentID(ctx, acc))
	if err != nil {
		return errors.Wrap(err, "prefilling progress form")
	}
	return ctx.JSON(http.StatusOK, form)
}

func (api *progressAPI) submit(ctx echo.Context) error {
	var data progress.Submission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Submission")
	}
	if err := data.Validate(api.opts.Validate); err != nil {
		return err
	}

	acc := getContextAccess(ctx)
	res, err := api.opts.ProgressSvc.Submit(ctx.Request().Context(), acc, bindStudentID(ctx, acc), data)
	if err != nil {
		return errors.Wrap(err, "submitting progress")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *progressAPI) completeGoal(ctx echo.Context) error {
	acc := getContextAccess(ctx)
	snap, err := api.opts.ProgressSvc.CompleteGoal(ctx.Request().Context(), acc, bindStudentID(ctx, acc))
	if err != nil {
		return errors.Wrap(err, "completing weekly goal")
	}
	return ctx.JSON(http.StatusOK, snap)
}

func (api *progressAPI) history(ctx echo.Context) error {
	acc := getContextAccess(ctx)
	logs, err := api.opts.ProgressSvc.History(ctx.Request().Context(), acc, bindStudentID(ctx, acc))
	if err != nil {
		return errors.Wrap(err, "reading history")
	}
	if logs == nil {
		logs = []progress.LogEntry{}
	}
	return ctx.JSON(http.StatusOK, logs)
}

func (api *progressAPI) overview(ctx echo.Context) error {
	acc := getContextAccess(ctx)
	ov, err := api.opts.ProgressSvc.Overview(ctx.Request().Context(), acc, bindStudentID(ctx, acc))
	if err != nil {
		return errors.Wrap(err, "reading overview")
	}
	if ov.Logs == nil {
		ov.Logs = []progress.LogEntry{}
	}
	return ctx.JSON(http.StatusOK, ov)
}
