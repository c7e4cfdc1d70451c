// internal/models/user.go
package models

import "time"

// Role names. Buyers are companies or NGOs; suppliers place bids.
const (
	RoleCompany  string = "company"
	RoleSupplier string = "supplier"
	RoleNGO      string = "ngo"
	RoleAdmin    string = "admin"
)

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CompanyName  *string   `json:"company_name,omitempty"`
	ContactName  *string   `json:"contact_name,omitempty"`
	Phone        *string   `json:"phone,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsBuyer reports whether the user may own projects and pay for bids.
func (u *User) IsBuyer() bool {
	return u.Role == RoleCompany || u.Role == RoleNGO
}

type RegisterForm struct {
	Username    string `json:"username" validate:"required,min=3,max=64"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8,complex_password"`
	Role        string `json:"role" validate:"required,oneof=company supplier ngo"`
	CompanyName string `json:"company_name" validate:"omitempty,max=255"`
}

type LoginForm struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}
