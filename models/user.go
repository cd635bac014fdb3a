package models

import "go.mongodb.org/mongo-driver/bson/primitive"

type User struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name            string             `bson:"name" json:"name"`
	LastName        string             `bson:"lastName" json:"lastName"`
	Username        string             `bson:"username" json:"username"`
	Email           string             `bson:"email" json:"email"`
	Role            string             `bson:"role" json:"role"`
	TasksAssigned   int                `bson:"tasksAssigned" json:"tasksAssigned"`
	TasksNotStarted int                `bson:"tasksNotStarted" json:"tasksNotStarted"`
	TasksCompleted  int                `bson:"tasksCompleted" json:"tasksCompleted"`
}

// DisplayName prefers the real name, falling back to the username.
func (u User) DisplayName() string {
	if u.Name != "" {
		if u.LastName != "" {
			return u.Name + " " + u.LastName
		}
		return u.Name
	}
	return u.Username
}
