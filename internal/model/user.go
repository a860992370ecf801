package model

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is the read-only projection of a user document owned by the accounts service
type User struct {
	ID       primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Username string             `json:"username" bson:"username"`
	Name     string             `json:"name" bson:"name"`
	Avatar   string             `json:"avatar" bson:"avatar"`
}

// UserSummary is the display identity attached to messages and conversation rows
type UserSummary struct {
	ID       string `json:"id" bson:"id"`
	Username string `json:"username" bson:"username"`
	Name     string `json:"name,omitempty" bson:"name"`
	Avatar   string `json:"avatar,omitempty" bson:"avatar"`
}

func (u *User) Summary() *UserSummary {
	return &UserSummary{
		ID:       u.ID.Hex(),
		Username: u.Username,
		Name:     u.Name,
		Avatar:   u.Avatar,
	}
}

// DisplayName prefers the full name and falls back to the username
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Username
}
