// Package sweep finds promotional senders and runs bulk actions against them.
package sweep

import (
	"context"

	"promosweep/internal/model"
)

// Provider is the mail API surface the sweep needs. *gmail.Client satisfies
// it; tests use an in-memory fake.
type Provider interface {
	ListByLabel(ctx context.Context, labelIDs []string, pageToken string, pageSize int64) (*model.MessagePage, error)
	ListByQuery(ctx context.Context, query string, pageToken string, pageSize int64) (*model.MessagePage, error)
	GetMessage(ctx context.Context, id string, format model.MessageFormat) (*model.Message, error)
	CreateFilter(ctx context.Context, rule model.FilterRule) error
	BatchModify(ctx context.Context, req model.BatchModifyRequest) error
	SendMessage(ctx context.Context, raw []byte) error
}
