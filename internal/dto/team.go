package dto

// TeamRequest создание и изменение команды.
type TeamRequest struct {
	Name        string  `json:"name" binding:"required"`
	Slug        string  `json:"slug"`
	Description *string `json:"description"`
}

// InviteRequest приглашение участника.
type InviteRequest struct {
	Email string `json:"email" binding:"required,email"`
	Role  string `json:"role"`
}

// MemberRoleRequest смена роли участника.
type MemberRoleRequest struct {
	Role string `json:"role" binding:"required"`
}
