package models

// Роли пользователей, приходящие в claim role access токена.
const (
	RoleAuthenticated = "authenticated"
	RoleAdmin         = "admin"
	RoleServiceRole   = "service_role"
)

// ContentStatus константы статусов материалов
const (
	ContentStatusDraft     = "draft"
	ContentStatusPublished = "published"
	ContentStatusArchived  = "archived"
)

// ProposalStatus константы статусов коммерческих предложений
const (
	ProposalStatusDraft    = "draft"
	ProposalStatusSent     = "sent"
	ProposalStatusViewed   = "viewed"
	ProposalStatusAccepted = "accepted"
	ProposalStatusDeclined = "declined"
	ProposalStatusExpired  = "expired"
)

// PurchaseStatus константы статусов покупок
const (
	PurchaseStatusPending   = "pending"
	PurchaseStatusCompleted = "completed"
	PurchaseStatusRefunded  = "refunded"
	PurchaseStatusFailed    = "failed"
)

// PurchaseItem константы типов покупаемых позиций
const (
	PurchaseItemPlan     = "plan"
	PurchaseItemTemplate = "template"
	PurchaseItemCourse   = "course"
	PurchaseItemAsset    = "asset"
)

// TimesheetStatus константы статусов табелей
const (
	TimesheetStatusDraft     = "draft"
	TimesheetStatusSubmitted = "submitted"
	TimesheetStatusApproved  = "approved"
	TimesheetStatusRejected  = "rejected"
)

// TeamRole роли участников команды
const (
	TeamRoleOwner  = "owner"
	TeamRoleAdmin  = "admin"
	TeamRoleMember = "member"
	TeamRoleViewer = "viewer"
)

// InvitationStatus статусы приглашений
const (
	InvitationStatusPending  = "pending"
	InvitationStatusAccepted = "accepted"
	InvitationStatusRevoked  = "revoked"
	InvitationStatusExpired  = "expired"
)

// ExecutionStatus статусы запусков сценариев
const (
	ExecutionStatusPending   = "pending"
	ExecutionStatusRunning   = "running"
	ExecutionStatusCompleted = "completed"
	ExecutionStatusFailed    = "failed"
	ExecutionStatusCancelled = "cancelled"
)

// SubscriptionStatus статусы подписок
const (
	SubscriptionStatusTrialing = "trialing"
	SubscriptionStatusActive   = "active"
	SubscriptionStatusPastDue  = "past_due"
	SubscriptionStatusCanceled = "canceled"
)

// AlertStatus статусы системных оповещений
const (
	AlertStatusOpen         = "open"
	AlertStatusAcknowledged = "acknowledged"
	AlertStatusResolved     = "resolved"
)

// ValidContentTypes допустимые типы материалов
var ValidContentTypes = map[string]struct{}{
	"article":    {},
	"page":       {},
	"post":       {},
	"newsletter": {},
}

// ValidBlockTypes допустимые типы блоков материала
var ValidBlockTypes = map[string]struct{}{
	"text":    {},
	"heading": {},
	"image":   {},
	"code":    {},
	"quote":   {},
	"embed":   {},
}

// ValidTeamRoles роли, которые можно назначить приглашением или сменой роли
var ValidTeamRoles = map[string]struct{}{
	TeamRoleAdmin:  {},
	TeamRoleMember: {},
	TeamRoleViewer: {},
}

// ValidPurchaseItemTypes типы покупаемых позиций
var ValidPurchaseItemTypes = map[string]struct{}{
	PurchaseItemPlan:     {},
	PurchaseItemTemplate: {},
	PurchaseItemCourse:   {},
	PurchaseItemAsset:    {},
}

// ValidLogLevels уровни системного журнала
var ValidLogLevels = map[string]struct{}{
	"debug": {},
	"info":  {},
	"warn":  {},
	"error": {},
}

// ValidAlertSeverities уровни оповещений
var ValidAlertSeverities = map[string]struct{}{
	"info":     {},
	"warning":  {},
	"critical": {},
}

// ValidDifficulties сложность уроков
var ValidDifficulties = map[string]struct{}{
	"beginner":     {},
	"intermediate": {},
	"advanced":     {},
}

// ValidTranslationStatuses статусы перевода
var ValidTranslationStatuses = map[string]struct{}{
	"draft":    {},
	"reviewed": {},
	"approved": {},
}
