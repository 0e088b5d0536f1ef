package models

// User is one entry of the backend's user directory.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username,omitempty"`
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role,omitempty"`
	Status   string `json:"status,omitempty"`
}

// DisplayName derives a human-friendly name for the user, falling back to a
// placeholder built from the id when the directory has nothing better.
func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	if u.Username != "" {
		return u.Username
	}
	if u.Email != "" {
		return u.Email
	}
	if u.ID != "" {
		id := u.ID
		if len(id) > 8 {
			id = id[:8]
		}
		return "User " + id
	}
	return "Unknown User"
}
