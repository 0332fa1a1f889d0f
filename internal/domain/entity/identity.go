package entity

import (
	"encoding/json"
	"fmt"
)

// Identity is one role's credential bundle as held by the client.
type Identity struct {
	Role    Role            `json:"role"`
	ID      int64           `json:"id"`
	Token   string          `json:"token"`
	Profile json.RawMessage `json:"profile"`
}

// StoredIdentity is the raw content of one role's storage slot. Any field may
// be empty when the slot was never written or was only partially written.
type StoredIdentity struct {
	Token   string
	Profile string
	RoleTag string
}

func (s StoredIdentity) Empty() bool {
	return s.Token == "" && s.Profile == "" && s.RoleTag == ""
}

// CustomerProfile is the profile record of the customer portal.
type CustomerProfile struct {
	ID        int64  `json:"id"`
	Phone     string `json:"phone"`
	Nickname  string `json:"nickname"`
	Avatar    string `json:"avatar,omitempty"`
	RealName  string `json:"realName,omitempty"`
	IDCard    string `json:"idCard,omitempty"`
	Status    int    `json:"status"`
	Verified  int    `json:"verified"`
	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

// MerchantProfile is the profile record of the merchant portal.
type MerchantProfile struct {
	ID              int64  `json:"id"`
	Phone           string `json:"phone"`
	CompanyName     string `json:"companyName"`
	ContactName     string `json:"contactName"`
	BusinessLicense string `json:"businessLicense,omitempty"`
	Status          int    `json:"status"`
	Remark          string `json:"remark,omitempty"`
	CreatedAt       string `json:"createdAt,omitempty"`
	UpdatedAt       string `json:"updatedAt,omitempty"`
}

// AdminProfile is the profile record of the admin portal.
type AdminProfile struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	Status    int    `json:"status"`
	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

// ProfileID extracts the numeric participant ID from a raw profile payload.
// The payload must be a JSON object carrying a positive "id".
func ProfileID(raw []byte) (int64, error) {
	var head struct {
		ID *int64 `json:"id"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return 0, fmt.Errorf("decode profile: %w", err)
	}
	if head.ID == nil || *head.ID <= 0 {
		return 0, fmt.Errorf("profile has no positive id")
	}
	return *head.ID, nil
}

// DisplayName picks the name a portal shows for the signed-in identity.
func (i *Identity) DisplayName() string {
	switch i.Role {
	case RoleCustomer:
		var p CustomerProfile
		if json.Unmarshal(i.Profile, &p) == nil && p.Nickname != "" {
			return p.Nickname
		}
	case RoleMerchant:
		var p MerchantProfile
		if json.Unmarshal(i.Profile, &p) == nil && p.CompanyName != "" {
			return p.CompanyName
		}
	case RoleAdmin:
		var p AdminProfile
		if json.Unmarshal(i.Profile, &p) == nil && p.Name != "" {
			return p.Name
		}
	}
	return fmt.Sprintf("%s %d", i.Role, i.ID)
}

// Session is the identity currently resolved for one rendering context.
type Session struct {
	IsAuthenticated bool      `json:"isAuthenticated"`
	Role            Role      `json:"role,omitempty"`
	Identity        *Identity `json:"identity,omitempty"`
}

// ParticipantID returns the active participant, or 0 when unauthenticated.
func (s Session) ParticipantID() int64 {
	if !s.IsAuthenticated || s.Identity == nil {
		return 0
	}
	return s.Identity.ID
}
