package cont

import (
	"context"
	"fmt"
	"invisifeed/entity"
)

type ctxKey string

const OwnerKey ctxKey = "owner"

func PutOwner(c context.Context, username string) context.Context {
	return context.WithValue(c, OwnerKey, username)
}

func GetOwner(c context.Context) string {
	username, _ := c.Value(OwnerKey).(string)
	return username
}

// Resolve returns the authenticated owner; a requested username that
// belongs to someone else is rejected
func Resolve(c context.Context, requested string) (string, error) {
	username := GetOwner(c)
	if username == "" {
		return "", fmt.Errorf("%w: not authenticated", entity.ErrUnauthorized)
	}
	if requested != "" && requested != username {
		return "", fmt.Errorf("%w: token does not belong to %s", entity.ErrForbidden, requested)
	}
	return username, nil
}
