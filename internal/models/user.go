package models

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleCustomer Role = "Customer"
	RoleManager  Role = "Manager"
)

const DefaultDepartment = "Banking Operations"

// Manager permissions.
const (
	PermViewCustomers    = "view_customers"
	PermAddCustomer      = "add_customer"
	PermRemoveCustomer   = "remove_customer"
	PermViewAccounts     = "view_accounts"
	PermViewTransactions = "view_transactions"
	PermGenerateReports  = "generate_reports"
	PermSystemStatistics = "system_statistics"
)

// DefaultPermissions is granted to every new manager.
func DefaultPermissions() []string {
	return []string{
		PermViewCustomers,
		PermAddCustomer,
		PermRemoveCustomer,
		PermViewAccounts,
		PermViewTransactions,
		PermGenerateReports,
		PermSystemStatistics,
	}
}

// Profile holds the role-specific part of a User. Only CustomerProfile and
// ManagerProfile implement it.
type Profile interface {
	Role() Role
	profile()
}

type CustomerProfile struct {
	CustomerSince time.Time
}

func (*CustomerProfile) Role() Role { return RoleCustomer }
func (*CustomerProfile) profile()   {}

type ManagerProfile struct {
	EmployeeID  string
	Department  string
	HireDate    time.Time
	Permissions []string
}

func (*ManagerProfile) Role() Role { return RoleManager }
func (*ManagerProfile) profile()   {}

func (m *ManagerProfile) HasPermission(perm string) bool {
	for _, p := range m.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

func (m *ManagerProfile) Grant(perm string) {
	if !m.HasPermission(perm) {
		m.Permissions = append(m.Permissions, perm)
	}
}

func (m *ManagerProfile) Revoke(perm string) {
	kept := m.Permissions[:0]
	for _, p := range m.Permissions {
		if p != perm {
			kept = append(kept, p)
		}
	}
	m.Permissions = kept
}

// User is a customer or a manager. The variant lives in Profile.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	Email        string
	FullName     string
	CreatedAt    time.Time
	LastLogin    *time.Time
	IsActive     bool
	Profile      Profile
}

// NewCustomer builds an active customer. FullName defaults to the username.
func NewCustomer(username, passwordHash, email, fullName string) *User {
	at := now()
	return newUser(username, passwordHash, email, fullName, at, &CustomerProfile{CustomerSince: at})
}

// NewManager builds an active manager with the default permission set. An
// empty employeeID is generated as "MGR" plus eight hex characters.
func NewManager(username, passwordHash, email, fullName, employeeID, department string) *User {
	at := now()
	if employeeID == "" {
		employeeID = "MGR" + strings.ToUpper(uuid.New().String()[:8])
	}
	if department == "" {
		department = DefaultDepartment
	}
	return newUser(username, passwordHash, email, fullName, at, &ManagerProfile{
		EmployeeID:  employeeID,
		Department:  department,
		HireDate:    at,
		Permissions: DefaultPermissions(),
	})
}

func newUser(username, passwordHash, email, fullName string, at time.Time, p Profile) *User {
	if fullName == "" {
		fullName = username
	}
	return &User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: passwordHash,
		Email:        email,
		FullName:     fullName,
		CreatedAt:    at,
		IsActive:     true,
		Profile:      p,
	}
}

func (u *User) Role() Role { return u.Profile.Role() }

func (u *User) IsCustomer() bool { return u.Role() == RoleCustomer }

func (u *User) IsManager() bool { return u.Role() == RoleManager }

// RequireCustomer returns the customer variant or ErrWrongRole.
func (u *User) RequireCustomer() (*CustomerProfile, error) {
	if p, ok := u.Profile.(*CustomerProfile); ok {
		return p, nil
	}
	return nil, fmt.Errorf("user %s is a %s: %w", u.Username, u.Role(), ErrWrongRole)
}

// RequireManager returns the manager variant or ErrWrongRole.
func (u *User) RequireManager() (*ManagerProfile, error) {
	if p, ok := u.Profile.(*ManagerProfile); ok {
		return p, nil
	}
	return nil, fmt.Errorf("user %s is a %s: %w", u.Username, u.Role(), ErrWrongRole)
}

// Clone returns a deep copy. Stored users are shared between readers, so
// changes are made on a clone and then put back.
func (u *User) Clone() *User {
	c := *u
	if u.LastLogin != nil {
		at := *u.LastLogin
		c.LastLogin = &at
	}
	switch p := u.Profile.(type) {
	case *CustomerProfile:
		cp := *p
		c.Profile = &cp
	case *ManagerProfile:
		mp := *p
		mp.Permissions = append([]string(nil), p.Permissions...)
		c.Profile = &mp
	}
	return &c
}

// Touch stamps the last login time.
func (u *User) Touch() {
	at := now()
	u.LastLogin = &at
}

// UserRecord is the persisted form of a User. Role-specific fields are
// omitted for the other variant.
type UserRecord struct {
	UserID        string     `json:"user_id"`
	Username      string     `json:"username"`
	PasswordHash  string     `json:"password_hash"`
	Email         string     `json:"email"`
	FullName      string     `json:"full_name"`
	CreatedAt     time.Time  `json:"created_at"`
	LastLogin     *time.Time `json:"last_login"`
	IsActive      bool       `json:"is_active"`
	UserType      string     `json:"user_type"`
	CustomerSince *time.Time `json:"customer_since,omitempty"`
	EmployeeID    string     `json:"employee_id,omitempty"`
	Department    string     `json:"department,omitempty"`
	HireDate      *time.Time `json:"hire_date,omitempty"`
	Permissions   []string   `json:"permissions,omitempty"`
}

func (u *User) ToRecord() UserRecord {
	r := UserRecord{
		UserID:       u.ID,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		Email:        u.Email,
		FullName:     u.FullName,
		CreatedAt:    u.CreatedAt,
		LastLogin:    u.LastLogin,
		IsActive:     u.IsActive,
		UserType:     string(u.Role()),
	}
	switch p := u.Profile.(type) {
	case *CustomerProfile:
		since := p.CustomerSince
		r.CustomerSince = &since
	case *ManagerProfile:
		hired := p.HireDate
		r.EmployeeID = p.EmployeeID
		r.Department = p.Department
		r.HireDate = &hired
		r.Permissions = append([]string(nil), p.Permissions...)
		sort.Strings(r.Permissions)
	}
	return r
}

// UserFromRecord rebuilds a User, dispatching on user_type.
func UserFromRecord(r UserRecord) (*User, error) {
	u := &User{
		ID:           r.UserID,
		Username:     r.Username,
		PasswordHash: r.PasswordHash,
		Email:        r.Email,
		FullName:     r.FullName,
		CreatedAt:    r.CreatedAt,
		LastLogin:    r.LastLogin,
		IsActive:     r.IsActive,
	}
	switch Role(r.UserType) {
	case RoleCustomer:
		p := &CustomerProfile{CustomerSince: r.CreatedAt}
		if r.CustomerSince != nil {
			p.CustomerSince = *r.CustomerSince
		}
		u.Profile = p
	case RoleManager:
		p := &ManagerProfile{
			EmployeeID:  r.EmployeeID,
			Department:  r.Department,
			HireDate:    r.CreatedAt,
			Permissions: append([]string(nil), r.Permissions...),
		}
		if r.HireDate != nil {
			p.HireDate = *r.HireDate
		}
		if p.Department == "" {
			p.Department = DefaultDepartment
		}
		u.Profile = p
	default:
		return nil, fmt.Errorf("user %s: unknown user type %q", r.UserID, r.UserType)
	}
	return u, nil
}
