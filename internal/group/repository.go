package group

import (
	"context"
	"errors"
)

var (
	ErrGroupNotFound      = errors.New("group not found")
	ErrGroupAlreadyExists = errors.New("group already exists")
)

// Repository defines the interface for group storage
type Repository interface {
	Create(ctx context.Context, group *Group) error
	GetByID(ctx context.Context, id string) (*Group, error)
	GetByName(ctx context.Context, name string) (*Group, error)
	Update(ctx context.Context, group *Group) error
	List(ctx context.Context, limit, offset int) ([]*Group, error)
}
