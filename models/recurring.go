package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Cadence string

const (
	CadenceDaily   Cadence = "daily"
	CadenceWeekly  Cadence = "weekly"
	CadenceMonthly Cadence = "monthly"
)

func (c Cadence) IsValid() bool {
	switch c {
	case CadenceDaily, CadenceWeekly, CadenceMonthly:
		return true
	}
	return false
}

// RecurringTask is a recurring task definition: the template from which the
// generator creates dated Task instances. StartDate anchors the cadence;
// EndDate is an inclusive upper bound, nil means unbounded.
type RecurringTask struct {
	ID           primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Name         string             `json:"name" bson:"name"`
	Description  string             `json:"description" bson:"description"`
	Cadence      Cadence            `json:"cadence" bson:"cadence"`
	StartDate    time.Time          `json:"startDate" bson:"startDate"`
	EndDate      *time.Time         `json:"endDate,omitempty" bson:"endDate,omitempty"`
	Priority     Priority           `json:"priority" bson:"priority"`
	AssignedByID primitive.ObjectID `json:"assignedById" bson:"assignedById"`
	AssignedToID primitive.ObjectID `json:"assignedToId" bson:"assignedToId"`
	// AssignedTo keeps the raw identifier (email or username) the creator
	// supplied, used as a display fallback if the user record is gone.
	AssignedTo    string     `json:"assignedTo" bson:"assignedTo"`
	CreatedBy     string     `json:"createdBy" bson:"createdBy"`
	CommunityID   string     `json:"communityId,omitempty" bson:"communityId,omitempty"`
	Department    string     `json:"department,omitempty" bson:"department,omitempty"`
	CompletedDate *time.Time `json:"completedDate,omitempty" bson:"completedDate,omitempty"`
	CreatedAt     time.Time  `json:"createdAt" bson:"createdAt"`
}
