package echoapi

import (
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/trezcool/hifdh/core"
	"github.com/trezcool/hifdh/core/user"
)

// meParam stands for the caller's own id in `/students/:id` paths.
const meParam = "me"

// bindStudentID returns the student id of the path, with "me" resolved to the caller.
func bindStudentID(ctx echo.Context, acc user.Access) string {
	id := core.CleanString(ctx.Param("id"))
	if id == meParam {
		return acc.UserID
	}
	return id
}

type (
	LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	GoogleLoginRequest struct {
		IDToken string `json:"id_token" validate:"required"`
	}

	LoginResponse struct {
		Token string `json:"token"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}

	MeResponse struct {
		ID      string    `json:"id"`
		Email   string    `json:"email"`
		Name    string    `json:"name"`
		Role    user.Role `json:"role"`
		IsAdmin bool      `json:"is_admin"`
		State   string    `json:"access"`
	}

	// StudentResponse is a directory entry.
	StudentResponse struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Name  string `json:"name"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return validate.Struct(lr)
}

func (gr *GoogleLoginRequest) Validate(validate *validator.Validate) error {
	gr.IDToken = core.CleanString(gr.IDToken)
	return validate.Struct(gr)
}

func (pr *PasswordResetRequest) Validate(validate *validator.Validate) error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	return validate.Struct(pr)
}

func newStudentResponses(users []user.User) []StudentResponse {
	res := make([]StudentResponse, 0, len(users))
	for _, usr := range users {
		res = append(res, StudentResponse{ID: usr.ID, Email: usr.Email, Name: usr.Name})
	}
	return res
}
