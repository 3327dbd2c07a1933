package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pasindubuddhika1999/findmyphone/internal/models"
	"github.com/pasindubuddhika1999/findmyphone/internal/services"
)

var decisionTemplates = map[services.ModerationAction]string{
	services.ModerationApprove: TemplateShopApproved,
	services.ModerationReject:  TemplateShopRejected,
	services.ModerationRevoke:  TemplateShopRevoked,
}

// Dispatcher turns service events into queued tasks.
// It implements services.IModerationNotifier and services.IImageJobs.
type Dispatcher struct {
	client IAsynqClient
}

func NewDispatcher(client IAsynqClient) *Dispatcher {
	return &Dispatcher{client: client}
}

var (
	_ services.IModerationNotifier = (*Dispatcher)(nil)
	_ services.IImageJobs          = (*Dispatcher)(nil)
)

func (d *Dispatcher) enqueue(ctx context.Context, taskType string, payload interface{}, opts ...asynq.Option) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", taskType, err)
	}
	info, err := d.client.EnqueueContext(ctx, asynq.NewTask(taskType, data), opts...)
	if err != nil {
		return fmt.Errorf("failed to enqueue %s: %w", taskType, err)
	}
	log.Printf("Enqueued %s task %s on queue %s", taskType, info.ID, info.Queue)
	return nil
}

func (d *Dispatcher) NotifyShopRegistered(ctx context.Context, shop *models.Shop, owner *models.User) error {
	var sb strings.Builder
	sb.WriteString("New shop registration awaiting approval\n")
	sb.WriteString(fmt.Sprintf("Shop: %s\n", shop.ShopName))
	sb.WriteString(fmt.Sprintf("Owner: %s", shop.OwnerName))
	if owner != nil {
		sb.WriteString(fmt.Sprintf(" (@%s)", owner.Username))
	}
	sb.WriteString(fmt.Sprintf("\nLocation: %s\nContact: %s", shop.Location, shop.ContactNumber))

	return d.enqueue(ctx, TypeModerationNotifyAdmins, AdminNotificationPayload{
		ShopID: shop.ID.Hex(),
		Text:   sb.String(),
	}, asynq.Queue(QueueCritical), asynq.MaxRetry(5))
}

// NotifyShopDecision emails the owner about approve, reject and revoke.
// Owners without an email and other actions are skipped.
func (d *Dispatcher) NotifyShopDecision(ctx context.Context, shop *models.Shop, owner *models.User, action services.ModerationAction) error {
	templateID, ok := decisionTemplates[action]
	if !ok {
		return nil
	}
	to := owner.EmailAddress()
	if to == "" {
		log.Printf("Shop %s has no owner email, skipping %s notification", shop.ID.Hex(), action)
		return nil
	}
	return d.enqueue(ctx, TypeEmailDelivery, EmailTaskPayload{
		To:         to,
		TemplateID: templateID,
		Data: map[string]string{
			"ShopName":  shop.ShopName,
			"OwnerName": shop.OwnerName,
			"Reason":    shop.DecisionReason,
		},
	}, asynq.Queue(QueueDefault))
}

func (d *Dispatcher) EnqueueImageNormalisation(ctx context.Context, listingID primitive.ObjectID, key string) error {
	return d.enqueue(ctx, TypeImageNormalise, ImageTaskPayload{
		Key:       key,
		ListingID: listingID.Hex(),
	}, asynq.Queue(QueueImages), asynq.Timeout(2*time.Minute))
}
