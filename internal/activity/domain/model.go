package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const (
	ActionClaimCreate         = "claim.create"
	ActionClaimUpdate         = "claim.update"
	ActionClaimDelete         = "claim.delete"
	ActionClaimFileUpload     = "claim_file.upload"
	ActionClaimFileDelete     = "claim_file.delete"
	ActionProjectCreate       = "project.create"
	ActionProjectUpdate       = "project.update"
	ActionProjectDelete       = "project.delete"
	ActionTaxCreate           = "tax.create"
	ActionTaxUpdate           = "tax.update"
	ActionTaxDelete           = "tax.delete"
	ActionTaxSeed             = "tax.seed"
	ActionSettingsUpdate      = "settings.update"
	ActionTeamMemberCreate    = "team_member.create"
	ActionTeamMemberUpdate    = "team_member.update"
	ActionTeamMemberDelete    = "team_member.delete"
	ActionBackupImport        = "backup.import"
	ActionBackupSnapshot      = "backup.snapshot"
	ActionResetAll            = "admin.reset_all"
	ActionPaymentClaimsLoad   = "payment_claims.import"
	ActionExportAudit         = "export.audit"
	ActionAuthorizationDenied = "authorization.denied"
)

// Entry is one append-only activity record.
type Entry struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id"`
	ActorEmail string            `gorm:"column:actor_email;type:text;not null;index" json:"actorEmail"`
	ActorRole  string            `gorm:"column:actor_role;type:text" json:"actorRole,omitempty"`
	Action     string            `gorm:"type:text;not null;index" json:"action"`
	TargetType string            `gorm:"column:target_type;type:text;not null" json:"targetType"`
	TargetID   *string           `gorm:"column:target_id;type:text" json:"targetId,omitempty"`
	Metadata   datatypes.JSONMap `gorm:"type:json" json:"metadata,omitempty"`
	RequestID  *string           `gorm:"column:request_id;type:text" json:"requestId,omitempty"`
	IPAddress  *string           `gorm:"column:ip_address;type:text" json:"ipAddress,omitempty"`
	CreatedAt  time.Time         `gorm:"not null;index" json:"createdAt"`
}

func (Entry) TableName() string { return "activity_logs" }

type Cursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

type ListFilter struct {
	Action     string
	TargetType string
	TargetID   string
	ActorEmail string
	Cursor     *Cursor
	Limit      int
}
