package models

import (
	"time"

	"github.com/google/uuid"
)

// Team рабочая команда.
type Team struct {
	ID          uuid.UUID `db:"id" json:"id"`
	OwnerID     uuid.UUID `db:"owner_id" json:"owner_id"`
	Name        string    `db:"name" json:"name"`
	Slug        string    `db:"slug" json:"slug"`
	Description *string   `db:"description" json:"description,omitempty"`
	MemberCount int       `db:"member_count" json:"member_count"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// TeamMember участник команды.
type TeamMember struct {
	TeamID   uuid.UUID `db:"team_id" json:"team_id"`
	UserID   uuid.UUID `db:"user_id" json:"user_id"`
	Role     string    `db:"role" json:"role"`
	JoinedAt time.Time `db:"joined_at" json:"joined_at"`
}

// CanManage сообщает, может ли участник управлять составом команды.
func (m *TeamMember) CanManage() bool {
	return m.Role == TeamRoleOwner || m.Role == TeamRoleAdmin
}

// TeamInvitation приглашение в команду по email.
type TeamInvitation struct {
	ID        uuid.UUID `db:"id" json:"id"`
	TeamID    uuid.UUID `db:"team_id" json:"team_id"`
	Email     string    `db:"email" json:"email"`
	Role      string    `db:"role" json:"role"`
	Token     string    `db:"token" json:"token,omitempty"`
	Status    string    `db:"status" json:"status"`
	InvitedBy uuid.UUID `db:"invited_by" json:"invited_by"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
