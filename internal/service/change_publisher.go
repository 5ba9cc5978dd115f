package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/scholarbridge-api/internal/models"
)

// ChangePublisher announces document writes to live subscriptions.
type ChangePublisher interface {
	Publish(ctx context.Context, change models.Change) error
}

// announce publishes a change after a successful write. A failed publish is
// logged; the write itself already succeeded.
func announce(ctx context.Context, pub ChangePublisher, logger *zap.Logger, collection models.Collection, op models.ChangeOp, id, ownerID string) {
	if pub == nil {
		return
	}
	change := models.Change{
		Collection: collection,
		DocumentID: id,
		OwnerID:    ownerID,
		Op:         op,
		At:         time.Now().UTC(),
	}
	if err := pub.Publish(ctx, change); err != nil {
		logger.Warn("change notification failed",
			zap.String("collection", string(collection)),
			zap.String("document_id", id),
			zap.Error(err))
	}
}
