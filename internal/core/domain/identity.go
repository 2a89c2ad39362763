package domain

type UserID string

type Role string

const (
	RoleStudent Role = "student"
	RoleCreator Role = "creator"
	RoleAdmin   Role = "admin"
)

// Identity is the read-only view of a user the realtime and gating
// layers work with. The user directory owns the full record.
type Identity struct {
	ID          UserID `json:"id"`
	DisplayName string `json:"display_name"`
	Role        Role   `json:"role"`
	Banned      bool   `json:"-"`
}

func (i Identity) IsCreator() bool {
	return i.Role == RoleCreator
}
