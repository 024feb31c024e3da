package types

// User is the signed-in account as reported by the auth backend
type User struct {
	UID         string `json:"uid" yaml:"uid"`
	Email       string `json:"email,omitempty" yaml:"email,omitempty"`
	DisplayName string `json:"display_name,omitempty" yaml:"display_name,omitempty"`
}
