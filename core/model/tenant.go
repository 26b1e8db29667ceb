package model

import "fmt"

// Tenant holds the credentials used to reach one platform account.
type Tenant struct {
	ID       string `json:"id"`
	BaseURL  string `json:"base_url"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// Validate checks mandatory fields.
func (t Tenant) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("tenant id is required")
	}
	if t.BaseURL == "" {
		return fmt.Errorf("tenant %s: base_url is required", t.ID)
	}
	if t.Username == "" {
		return fmt.Errorf("tenant %s: username is required", t.ID)
	}
	return nil
}
