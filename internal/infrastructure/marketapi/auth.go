package marketapi

import (
	"context"
	"encoding/json"
	"net/http"

	"rentalportal/internal/domain/entity"
	"rentalportal/pkg/errors"
)

// Credentials identify an account. Account is the phone number for
// customers and merchants and the username for admins.
type Credentials struct {
	Account  string `json:"account" validate:"required"`
	Password string `json:"password" validate:"required,min=6"`
}

// Registration carries the sign-up form of the customer and merchant portals.
type Registration struct {
	Phone           string `json:"phone" validate:"required"`
	Password        string `json:"password" validate:"required,min=6"`
	Nickname        string `json:"nickname,omitempty"`
	CompanyName     string `json:"companyName,omitempty"`
	ContactName     string `json:"contactName,omitempty"`
	IDCardFront     string `json:"idCardFront,omitempty"`
	IDCardBack      string `json:"idCardBack,omitempty"`
	BusinessLicense string `json:"businessLicense,omitempty"`
}

// AuthResult is the profile the backend returned. Token is empty when the
// backend did not issue one.
type AuthResult struct {
	Token   string
	Profile json.RawMessage
}

type phoneLogin struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

type adminLogin struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (c *Client) Login(ctx context.Context, role entity.Role, creds Credentials) (*AuthResult, error) {
	var path string
	var body interface{}
	switch role {
	case entity.RoleCustomer:
		path, body = "/auth/login", phoneLogin{Phone: creds.Account, Password: creds.Password}
	case entity.RoleMerchant:
		path, body = "/merchant/login", phoneLogin{Phone: creds.Account, Password: creds.Password}
	case entity.RoleAdmin:
		path, body = "/admin/login", adminLogin{Username: creds.Account, Password: creds.Password}
	default:
		return nil, errors.BadRequest("Unknown role", nil)
	}
	return c.authenticate(ctx, "auth.login", path, body)
}

func (c *Client) Register(ctx context.Context, role entity.Role, reg Registration) (*AuthResult, error) {
	switch role {
	case entity.RoleCustomer:
		return c.authenticate(ctx, "auth.register", "/auth/register", map[string]string{
			"phone":    reg.Phone,
			"password": reg.Password,
			"nickname": reg.Nickname,
		})
	case entity.RoleMerchant:
		if reg.CompanyName == "" || reg.ContactName == "" {
			return nil, errors.BadRequest("Company name and contact name are required", nil)
		}
		return c.authenticate(ctx, "auth.register", "/merchant/register", reg)
	}
	return nil, errors.BadRequest("Registration is not available for this role", nil)
}

func (c *Client) authenticate(ctx context.Context, endpoint, path string, body interface{}) (*AuthResult, error) {
	var profile json.RawMessage
	if err := c.do(ctx, endpoint, http.MethodPost, path, body, &profile); err != nil {
		return nil, err
	}
	if len(profile) == 0 {
		return nil, errors.ServerRejected("Rental service returned no profile", 0, nil)
	}

	var head struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(profile, &head); err != nil {
		return nil, errors.ServerRejected("Malformed profile from rental service", 0, err)
	}
	return &AuthResult{Token: head.Token, Profile: profile}, nil
}
