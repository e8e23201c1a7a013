package requestdata

import (
	"context"

	"github.com/google/uuid"
)

var requestDataKey = struct{}{}

// RequestData is the resolved caller identity for a single engine call.
// It is carried on the request context and never held in process-wide state;
// impersonation is an explicit override recorded next to the acting user.
type RequestData struct {
	UserID         uuid.UUID
	IsAdmin        bool
	ImpersonatorID *uuid.UUID
}

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
	val := ctx.Value(requestDataKey)
	if rd, ok := val.(*RequestData); ok {
		return rd
	}
	return nil
}

// Actor returns the user the call is attributed to. When an admin is
// impersonating, actions are still attributed to the impersonated user.
func (rd *RequestData) Actor() uuid.UUID {
	if rd == nil {
		return uuid.Nil
	}
	return rd.UserID
}
