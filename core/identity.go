package core

import "fmt"

// Identity is the session user reported by CURRENT_USER() and recorded on fixture snapshots.
type Identity struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (identity Identity) String() string {
	if identity.Email == "" {
		return identity.Name
	}
	return fmt.Sprintf("%s <%s>", identity.Name, identity.Email)
}
