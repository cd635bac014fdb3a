package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Task is one concrete, dated occurrence of a recurring definition, or a
// standalone one-off task. Fields copied from the definition are snapshots
// taken at generation time, not live references.
type Task struct {
	ID              primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	Name            string              `json:"name" bson:"name"`
	Description     string              `json:"description" bson:"description"`
	AssignedToEmail string              `json:"assignedToEmail" bson:"assignedToEmail"`
	AssignedToName  string              `json:"assignedToName" bson:"assignedToName"`
	Priority        Priority            `json:"priority" bson:"priority"`
	Cadence         string              `json:"cadence,omitempty" bson:"cadence,omitempty"`
	DueDate         time.Time           `json:"dueDate" bson:"dueDate"`
	CompletedDate   *time.Time          `json:"completedDate,omitempty" bson:"completedDate,omitempty"`
	SourceTaskID    *primitive.ObjectID `json:"sourceTaskId,omitempty" bson:"sourceTaskId,omitempty"`
	CommunityID     string              `json:"communityId,omitempty" bson:"communityId,omitempty"`
	Department      string              `json:"department,omitempty" bson:"department,omitempty"`
	CreatedAt       time.Time           `json:"createdAt" bson:"createdAt"`
}
