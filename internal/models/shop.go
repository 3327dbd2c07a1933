package models

import (
	"encoding/json"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ModerationStatus is the approval state of a shop registration.
type ModerationStatus string

const (
	ModerationPending  ModerationStatus = "pending"
	ModerationApproved ModerationStatus = "approved"
	ModerationRejected ModerationStatus = "rejected"
	ModerationRevoked  ModerationStatus = "revoked"
)

// moderationTransitions lists the states each status may move to.
var moderationTransitions = map[ModerationStatus][]ModerationStatus{
	ModerationPending:  {ModerationApproved, ModerationRejected},
	ModerationApproved: {ModerationRevoked},
}

func (s ModerationStatus) IsValid() bool {
	switch s {
	case ModerationPending, ModerationApproved, ModerationRejected, ModerationRevoked:
		return true
	}
	return false
}

// CanTransitionTo reports whether the moderation state machine allows s -> next.
func (s ModerationStatus) CanTransitionTo(next ModerationStatus) bool {
	for _, allowed := range moderationTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Shop is the moderated business profile attached 1:1 to a shop account.
type Shop struct {
	Base             `bson:",inline"`
	UserID           primitive.ObjectID  `bson:"user_id" json:"userId"`
	ShopName         string              `bson:"shop_name" json:"shopName"`
	OwnerName        string              `bson:"owner_name" json:"ownerName"`
	ContactNumber    string              `bson:"contact_number" json:"contactNumber"`
	Address          string              `bson:"address" json:"address"`
	Location         string              `bson:"location" json:"location"`
	Description      string              `bson:"description,omitempty" json:"description,omitempty"`
	ModerationStatus ModerationStatus    `bson:"moderation_status" json:"moderationStatus"`
	ApprovedAt       *time.Time          `bson:"approved_at,omitempty" json:"approvedAt,omitempty"`
	ApprovedBy       *primitive.ObjectID `bson:"approved_by,omitempty" json:"approvedBy,omitempty"`
	RejectedAt       *time.Time          `bson:"rejected_at,omitempty" json:"rejectedAt,omitempty"`
	RejectedBy       *primitive.ObjectID `bson:"rejected_by,omitempty" json:"rejectedBy,omitempty"`
	RevokedAt        *time.Time          `bson:"revoked_at,omitempty" json:"revokedAt,omitempty"`
	RevokedBy        *primitive.ObjectID `bson:"revoked_by,omitempty" json:"revokedBy,omitempty"`
	DecisionReason   string              `bson:"decision_reason,omitempty" json:"decisionReason,omitempty"`

	// Display only, filled on reads
	Owner *UserSummary `bson:"-" json:"owner,omitempty"`
}

// IsApproved reports whether the shop may act as a shop.
func (s *Shop) IsApproved() bool {
	return s != nil && s.ModerationStatus == ModerationApproved
}

// MarshalJSON adds the derived isApproved flag next to moderationStatus.
func (s Shop) MarshalJSON() ([]byte, error) {
	type shopFields Shop
	return json.Marshal(struct {
		shopFields
		IsApproved bool `json:"isApproved"`
	}{shopFields(s), s.ModerationStatus == ModerationApproved})
}
