package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/gif" // decoder for image.Decode
	"image/jpeg"
	"image/png"
	"log"

	"github.com/hibiken/asynq"
	"github.com/nfnt/resize"
	"github.com/redis/go-redis/v9"

	"github.com/pasindubuddhika1999/findmyphone/internal/config"
	"github.com/pasindubuddhika1999/findmyphone/internal/email"
	"github.com/pasindubuddhika1999/findmyphone/internal/notify"
	"github.com/pasindubuddhika1999/findmyphone/internal/storage"
)

// Task types.
const (
	TypeEmailDelivery          = "email:deliver"
	TypeImageNormalise         = "image:normalise"
	TypeModerationNotifyAdmins = "moderation:notify_admins"
)

// Queues.
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
	QueueImages   = "images"
)

// --- Task Client (Enqueuing tasks) ---

// IAsynqClient is the part of *asynq.Client used for enqueuing.
type IAsynqClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

func redisOpt(rdb *redis.Client) asynq.RedisClientOpt {
	opts := rdb.Options()
	return asynq.RedisClientOpt{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}
}

func NewClient(rdb *redis.Client) *asynq.Client {
	return asynq.NewClient(redisOpt(rdb))
}

// --- Task Server (Processing tasks) ---

// TaskProcessor holds what the task handlers need.
type TaskProcessor struct {
	cfg         *config.Config
	emailSender email.Sender
	objects     storage.IS3Storage // nil unless IMAGE_STORAGE=s3
	admins      notify.IAdminNotifier
}

func NewTaskProcessor(cfg *config.Config, emailSender email.Sender, objects storage.IS3Storage, admins notify.IAdminNotifier) *TaskProcessor {
	return &TaskProcessor{
		cfg:         cfg,
		emailSender: emailSender,
		objects:     objects,
		admins:      admins,
	}
}

// SetupServer configures an Asynq server and the handlers for the given worker
// roles. It returns nil values when neither role is requested.
func SetupServer(rdb *redis.Client, processor *TaskProcessor, isImageWorker bool, isBgWorker bool) (*asynq.Server, *asynq.ServeMux) {
	if !isBgWorker && !isImageWorker {
		log.Println("Running in API mode, no task server started.")
		return nil, nil
	}

	queues := map[string]int{}
	mux := asynq.NewServeMux()

	if isBgWorker {
		queues[QueueCritical] = 6
		queues[QueueDefault] = 3
		queues[QueueLow] = 1
		mux.HandleFunc(TypeEmailDelivery, processor.HandleEmailDeliveryTask)
		mux.HandleFunc(TypeModerationNotifyAdmins, processor.HandleModerationNotifyAdminsTask)
		log.Println("Registered background task handlers (email, admin notifications).")
	}
	if isImageWorker {
		queues[QueueImages] = 5
		mux.HandleFunc(TypeImageNormalise, processor.HandleImageNormaliseTask)
		log.Println("Registered image normalisation task handler.")
	}

	srv := asynq.NewServer(
		redisOpt(rdb),
		asynq.Config{
			Queues: queues,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Printf("[Asynq Error] Task Type: %s, Payload: %s, Error: %v", task.Type(), string(task.Payload()), err)
			}),
		},
	)
	return srv, mux
}

// --- Task Handlers ---

// EmailTaskPayload asks for one templated email to one recipient.
type EmailTaskPayload struct {
	To         string            `json:"to"`
	TemplateID string            `json:"template_id"`
	Data       map[string]string `json:"data"`
}

func (p *TaskProcessor) HandleEmailDeliveryTask(ctx context.Context, t *asynq.Task) error {
	var payload EmailTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal email task payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.To == "" {
		return fmt.Errorf("email task without recipient: %w", asynq.SkipRetry)
	}

	subject, body, err := renderEmail(payload.TemplateID, p.templateData(payload.Data))
	if err != nil {
		log.Printf("Error rendering email template %s: %v", payload.TemplateID, err)
		return fmt.Errorf("render email %s: %v: %w", payload.TemplateID, err, asynq.SkipRetry)
	}

	raw := buildMessage(p.cfg.SmtpFromAddress, payload.To, subject, body)
	if err := p.emailSender.Send(ctx, []string{payload.To}, subject, raw); err != nil {
		log.Printf("Email sending failed (will retry): %v", err)
		return err
	}

	log.Printf("Email task processed: To=%s, Template=%s", payload.To, payload.TemplateID)
	return nil
}

func (p *TaskProcessor) templateData(data map[string]string) map[string]string {
	out := map[string]string{"AppName": p.cfg.AppName}
	for k, v := range data {
		out[k] = v
	}
	return out
}

// ImageTaskPayload names a stored listing image to normalise in place.
type ImageTaskPayload struct {
	Key       string `json:"key"`
	ListingID string `json:"listing_id"`
}

// HandleImageNormaliseTask downsizes oversized listing images and overwrites
// the original object. The stored key and URL stay the same.
func (p *TaskProcessor) HandleImageNormaliseTask(ctx context.Context, t *asynq.Task) error {
	var payload ImageTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal image task payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.Key == "" {
		return fmt.Errorf("image task without key: %w", asynq.SkipRetry)
	}
	if p.objects == nil {
		return fmt.Errorf("image worker has no S3 storage configured: %w", asynq.SkipRetry)
	}

	log.Printf("Processing image task: Key=%s, ListingID=%s", payload.Key, payload.ListingID)

	data, _, err := p.objects.GetObject(ctx, payload.Key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			log.Printf("S3 object %s not found, listing %s may have been deleted.", payload.Key, payload.ListingID)
			return fmt.Errorf("s3 object not found: %w", asynq.SkipRetry)
		}
		return err
	}

	maxSizeBytes := int64(p.cfg.ImageMaxSizeMB) * 1024 * 1024
	if maxSizeBytes > 0 && int64(len(data)) > maxSizeBytes {
		log.Printf("Image %s exceeds max size (%d > %d bytes). Skipping.", payload.Key, len(data), maxSizeBytes)
		return fmt.Errorf("image exceeds max size: %w", asynq.SkipRetry)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		log.Printf("Error decoding image %s: %v", payload.Key, err)
		return fmt.Errorf("unsupported image format or corrupt image: %w", asynq.SkipRetry)
	}

	// Only the first frame of a GIF is decoded, so resizing would drop the animation
	if format == "gif" {
		log.Printf("Image %s is a GIF, left as uploaded.", payload.Key)
		return nil
	}

	maxDim := uint(p.cfg.ImageMaxDimension)
	width, height := uint(img.Bounds().Dx()), uint(img.Bounds().Dy())
	if maxDim == 0 || (width <= maxDim && height <= maxDim) {
		log.Printf("Image %s (%s, %dx%d) within bounds, nothing to do.", payload.Key, format, width, height)
		return nil
	}

	resized := resize.Thumbnail(maxDim, maxDim, img, resize.Lanczos3)
	encoded, contentType, err := encodeImage(resized, format)
	if err != nil {
		return fmt.Errorf("failed to re-encode resized image %s: %w", payload.Key, err)
	}

	if err := p.objects.PutObject(ctx, payload.Key, encoded, contentType); err != nil {
		log.Printf("Error uploading normalised image %s: %v", payload.Key, err)
		return err
	}

	log.Printf("Resized image %s from %dx%d to %dx%d", payload.Key, width, height, resized.Bounds().Dx(), resized.Bounds().Dy())
	return nil
}

// encodeImage writes img back in its source format, so the key's extension stays true.
func encodeImage(img image.Image, format string) ([]byte, string, error) {
	var buf bytes.Buffer
	switch format {
	case "png":
		if err := png.Encode(&buf, img); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "image/png", nil
	case "jpeg":
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "image/jpeg", nil
	}
	return nil, "", fmt.Errorf("cannot encode %s images", format)
}

// AdminNotificationPayload is a ready-to-send admin message.
type AdminNotificationPayload struct {
	ShopID string `json:"shop_id"`
	Text   string `json:"text"`
}

func (p *TaskProcessor) HandleModerationNotifyAdminsTask(ctx context.Context, t *asynq.Task) error {
	var payload AdminNotificationPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal admin notification payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.Text == "" {
		return fmt.Errorf("empty admin notification: %w", asynq.SkipRetry)
	}
	if err := p.admins.NotifyAdmins(ctx, payload.Text); err != nil {
		log.Printf("WARN: admin notification for shop %s failed: %v", payload.ShopID, err)
		return err
	}
	return nil
}
