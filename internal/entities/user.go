package entities

// Admin is the single operator account. It lives in configuration, not in the record store.
type Admin struct {
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
	Role         string `json:"role"`
}

const RoleAdmin = "admin"
