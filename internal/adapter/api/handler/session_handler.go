package handler

import (
	"encoding/json"

	"github.com/labstack/echo/v4"

	"rentalportal/internal/domain/entity"
	"rentalportal/internal/infrastructure/marketapi"
	"rentalportal/pkg/errors"
	"rentalportal/pkg/response"
)

type SessionHandler struct{}

func NewSessionHandler() *SessionHandler {
	return &SessionHandler{}
}

type navigateRequest struct {
	Path string `json:"path" validate:"required,startswith=/"`
}

type initRequest struct {
	ExpectedRole string `json:"expectedRole" validate:"omitempty,oneof=customer merchant admin"`
}

// loginRequest either carries credentials for the backend or a token and
// profile the caller already obtained from it.
type loginRequest struct {
	Role     string          `json:"role" validate:"required,oneof=customer merchant admin"`
	Account  string          `json:"account" validate:"required_without=Token"`
	Password string          `json:"password" validate:"required_without=Token"`
	Token    string          `json:"token"`
	Profile  json.RawMessage `json:"profile" validate:"required_with=Token"`
}

type registerRequest struct {
	Role string `json:"role" validate:"required,oneof=customer merchant"`
	marketapi.Registration
}

type profileRequest struct {
	Profile json.RawMessage `json:"profile" validate:"required"`
}

type identityView struct {
	Role        entity.Role     `json:"role"`
	ID          int64           `json:"id"`
	DisplayName string          `json:"displayName"`
	Profile     json.RawMessage `json:"profile"`
}

type sessionView struct {
	Portal          string        `json:"portal"`
	Path            string        `json:"path"`
	ContextRole     entity.Role   `json:"contextRole,omitempty"`
	IsAuthenticated bool          `json:"isAuthenticated"`
	Role            entity.Role   `json:"role,omitempty"`
	Identity        *identityView `json:"identity,omitempty"`
}

func viewSession(c echo.Context) (*sessionView, error) {
	portal, err := portalFrom(c)
	if err != nil {
		return nil, err
	}
	s := portal.Session.Current()
	view := &sessionView{
		Portal:          portal.Name,
		Path:            portal.Session.Path(),
		ContextRole:     entity.RoleFromPath(portal.Session.Path()),
		IsAuthenticated: s.IsAuthenticated,
		Role:            s.Role,
	}
	if s.Identity != nil {
		view.Identity = &identityView{
			Role:        s.Identity.Role,
			ID:          s.Identity.ID,
			DisplayName: s.Identity.DisplayName(),
			Profile:     s.Identity.Profile,
		}
	}
	return view, nil
}

// Navigate moves the portal to another path and re-checks its session for
// the role that path implies.
func (h *SessionHandler) Navigate(c echo.Context) error {
	var req navigateRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, errors.BadRequest("Invalid request body", err))
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	portal, err := portalFrom(c)
	if err != nil {
		return response.Error(c, err)
	}
	portal.Session.Navigate(req.Path)
	portal.Session.CheckAuthStatus(c.Request().Context(), entity.Role(""))

	view, err := viewSession(c)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, view)
}

func (h *SessionHandler) Init(c echo.Context) error {
	var req initRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, errors.BadRequest("Invalid request body", err))
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	portal, err := portalFrom(c)
	if err != nil {
		return response.Error(c, err)
	}
	portal.Session.Initialize(c.Request().Context(), entity.Role(req.ExpectedRole))

	view, err := viewSession(c)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, view)
}

func (h *SessionHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, errors.BadRequest("Invalid request body", err))
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	portal, err := portalFrom(c)
	if err != nil {
		return response.Error(c, err)
	}

	role := entity.Role(req.Role)
	ctx := c.Request().Context()
	if req.Token != "" {
		_, err = portal.Session.Login(ctx, req.Token, req.Profile, role)
	} else {
		_, err = portal.Auth.Login(ctx, role, marketapi.Credentials{Account: req.Account, Password: req.Password})
	}
	if err != nil {
		return response.Error(c, err)
	}

	view, err := viewSession(c)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, view)
}

func (h *SessionHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, errors.BadRequest("Invalid request body", err))
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}
	role := entity.Role(req.Role)
	if role == entity.RoleMerchant && (req.CompanyName == "" || req.ContactName == "") {
		return response.Error(c, errors.BadRequest("companyName and contactName are required for merchants", nil))
	}

	portal, err := portalFrom(c)
	if err != nil {
		return response.Error(c, err)
	}
	if _, err := portal.Auth.Register(c.Request().Context(), role, req.Registration); err != nil {
		return response.Error(c, err)
	}

	view, err := viewSession(c)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Created(c, view)
}

func (h *SessionHandler) Logout(c echo.Context) error {
	portal, err := portalFrom(c)
	if err != nil {
		return response.Error(c, err)
	}
	if err := portal.Session.Logout(c.Request().Context()); err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, map[string]string{
		"message": "Logged out",
	})
}

func (h *SessionHandler) GetSession(c echo.Context) error {
	view, err := viewSession(c)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, view)
}

func (h *SessionHandler) UpdateProfile(c echo.Context) error {
	var req profileRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, errors.BadRequest("Invalid request body", err))
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	portal, err := portalFrom(c)
	if err != nil {
		return response.Error(c, err)
	}
	if err := portal.Session.UpdateIdentity(c.Request().Context(), req.Profile); err != nil {
		return response.Error(c, err)
	}

	view, err := viewSession(c)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, view)
}
