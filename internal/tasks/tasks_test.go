package tasks_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pasindubuddhika1999/findmyphone/internal/config"
	"github.com/pasindubuddhika1999/findmyphone/internal/storage"
	"github.com/pasindubuddhika1999/findmyphone/internal/tasks"
)

// --- Mocks ---

type MockEmailSender struct {
	mock.Mock
}

func (m *MockEmailSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	args := m.Called(ctx, to, subject, rawMessage)
	return args.Error(0)
}

type MockAdminNotifier struct {
	mock.Mock
}

func (m *MockAdminNotifier) NotifyAdmins(ctx context.Context, text string) error {
	args := m.Called(ctx, text)
	return args.Error(0)
}

// memoryObjects is an in-memory storage.IS3Storage.
type memoryObjects struct {
	objects map[string][]byte
	types   map[string]string
	puts    int
}

func newMemoryObjects() *memoryObjects {
	return &memoryObjects{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memoryObjects) Backend() string { return config.ImageStorageS3 }

func (m *memoryObjects) Upload(ctx context.Context, img storage.ImageUpload) (*storage.StoredImage, error) {
	return nil, errors.New("not used")
}

func (m *memoryObjects) Delete(ctx context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

func (m *memoryObjects) GetObject(ctx context.Context, key string) ([]byte, string, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, "", storage.ErrObjectNotFound
	}
	return data, m.types[key], nil
}

func (m *memoryObjects) PutObject(ctx context.Context, key string, data []byte, contentType string) error {
	m.objects[key] = data
	m.types[key] = contentType
	m.puts++
	return nil
}

func pngOfSize(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, x%h, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTask(t *testing.T, taskType string, payload interface{}) *asynq.Task {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return asynq.NewTask(taskType, data)
}

func testConfig() *config.Config {
	return &config.Config{
		AppName:           "FindMyPhone",
		SmtpFromAddress:   "noreply@findmyphone.lk",
		ImageMaxDimension: 100,
		ImageMaxSizeMB:    5,
	}
}

// --- Email ---

func TestHandleEmailDeliveryTask_Success(t *testing.T) {
	sender := new(MockEmailSender)
	p := tasks.NewTaskProcessor(testConfig(), sender, nil, nil)

	task := newTask(t, tasks.TypeEmailDelivery, tasks.EmailTaskPayload{
		To:         "owner@example.com",
		TemplateID: tasks.TemplateShopRejected,
		Data:       map[string]string{"ShopName": "ACME Repairs", "OwnerName": "Nimal", "Reason": "Address could not be verified"},
	})

	sender.On("Send",
		mock.Anything,
		[]string{"owner@example.com"},
		"Your shop ACME Repairs was rejected",
		mock.MatchedBy(func(raw []byte) bool {
			return bytes.Contains(raw, []byte("From: noreply@findmyphone.lk")) &&
				bytes.Contains(raw, []byte("Subject: Your shop ACME Repairs was rejected")) &&
				bytes.Contains(raw, []byte("Reason: Address could not be verified")) &&
				bytes.Contains(raw, []byte("Hello Nimal"))
		}),
	).Return(nil)

	assert.NoError(t, p.HandleEmailDeliveryTask(context.Background(), task))
	sender.AssertExpectations(t)
}

func TestHandleEmailDeliveryTask_UnknownTemplateIsNotRetried(t *testing.T) {
	sender := new(MockEmailSender)
	p := tasks.NewTaskProcessor(testConfig(), sender, nil, nil)

	task := newTask(t, tasks.TypeEmailDelivery, tasks.EmailTaskPayload{To: "a@example.com", TemplateID: "welcome"})
	err := p.HandleEmailDeliveryTask(context.Background(), task)

	assert.ErrorIs(t, err, asynq.SkipRetry)
	sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleEmailDeliveryTask_SendFailureIsRetried(t *testing.T) {
	sender := new(MockEmailSender)
	p := tasks.NewTaskProcessor(testConfig(), sender, nil, nil)
	boom := errors.New("smtp timeout")
	sender.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(boom)

	task := newTask(t, tasks.TypeEmailDelivery, tasks.EmailTaskPayload{To: "a@example.com", TemplateID: tasks.TemplateShopApproved})
	err := p.HandleEmailDeliveryTask(context.Background(), task)

	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleEmailDeliveryTask_BadPayload(t *testing.T) {
	p := tasks.NewTaskProcessor(testConfig(), new(MockEmailSender), nil, nil)
	err := p.HandleEmailDeliveryTask(context.Background(), asynq.NewTask(tasks.TypeEmailDelivery, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

// --- Images ---

func TestHandleImageNormaliseTask_ResizesLargeImage(t *testing.T) {
	objects := newMemoryObjects()
	objects.objects["listings/big.png"] = pngOfSize(t, 400, 200)
	objects.types["listings/big.png"] = "image/png"
	p := tasks.NewTaskProcessor(testConfig(), nil, objects, nil)

	task := newTask(t, tasks.TypeImageNormalise, tasks.ImageTaskPayload{Key: "listings/big.png", ListingID: "abc"})
	require.NoError(t, p.HandleImageNormaliseTask(context.Background(), task))

	assert.Equal(t, 1, objects.puts)
	assert.Equal(t, "image/png", objects.types["listings/big.png"])
	img, format, err := image.Decode(bytes.NewReader(objects.objects["listings/big.png"]))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 100, img.Bounds().Dx())
	assert.Equal(t, 50, img.Bounds().Dy())

	// Transparent background survives the resize
	_, _, _, a := img.At(99, 0).RGBA()
	assert.Less(t, a, uint32(0xffff))
}

func TestHandleImageNormaliseTask_KeepsJPEG(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 300, 300))
	var raw bytes.Buffer
	require.NoError(t, jpeg.Encode(&raw, src, nil))
	objects := newMemoryObjects()
	objects.objects["listings/photo.jpg"] = raw.Bytes()
	p := tasks.NewTaskProcessor(testConfig(), nil, objects, nil)

	task := newTask(t, tasks.TypeImageNormalise, tasks.ImageTaskPayload{Key: "listings/photo.jpg"})
	require.NoError(t, p.HandleImageNormaliseTask(context.Background(), task))

	assert.Equal(t, "image/jpeg", objects.types["listings/photo.jpg"])
	img, format, err := image.Decode(bytes.NewReader(objects.objects["listings/photo.jpg"]))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 100, img.Bounds().Dx())
}

func TestHandleImageNormaliseTask_GIFLeftAsUploaded(t *testing.T) {
	src := image.NewPaletted(image.Rect(0, 0, 400, 200), color.Palette{color.Black, color.White})
	var raw bytes.Buffer
	require.NoError(t, gif.Encode(&raw, src, nil))
	objects := newMemoryObjects()
	objects.objects["listings/anim.gif"] = raw.Bytes()
	p := tasks.NewTaskProcessor(testConfig(), nil, objects, nil)

	task := newTask(t, tasks.TypeImageNormalise, tasks.ImageTaskPayload{Key: "listings/anim.gif"})
	require.NoError(t, p.HandleImageNormaliseTask(context.Background(), task))
	assert.Zero(t, objects.puts)
	assert.Equal(t, raw.Bytes(), objects.objects["listings/anim.gif"])
}

func TestHandleImageNormaliseTask_SmallImageUntouched(t *testing.T) {
	objects := newMemoryObjects()
	objects.objects["listings/small.png"] = pngOfSize(t, 80, 60)
	p := tasks.NewTaskProcessor(testConfig(), nil, objects, nil)

	task := newTask(t, tasks.TypeImageNormalise, tasks.ImageTaskPayload{Key: "listings/small.png"})
	require.NoError(t, p.HandleImageNormaliseTask(context.Background(), task))
	assert.Zero(t, objects.puts)
}

func TestHandleImageNormaliseTask_NonRetryableFailures(t *testing.T) {
	objects := newMemoryObjects()
	objects.objects["listings/garbage.png"] = []byte("definitely not an image")
	p := tasks.NewTaskProcessor(testConfig(), nil, objects, nil)

	for name, key := range map[string]string{
		"missing object": "listings/gone.png",
		"corrupt image":  "listings/garbage.png",
		"empty key":      "",
	} {
		t.Run(name, func(t *testing.T) {
			task := newTask(t, tasks.TypeImageNormalise, tasks.ImageTaskPayload{Key: key})
			assert.ErrorIs(t, p.HandleImageNormaliseTask(context.Background(), task), asynq.SkipRetry)
		})
	}

	noStorage := tasks.NewTaskProcessor(testConfig(), nil, nil, nil)
	task := newTask(t, tasks.TypeImageNormalise, tasks.ImageTaskPayload{Key: "listings/x.png"})
	assert.ErrorIs(t, noStorage.HandleImageNormaliseTask(context.Background(), task), asynq.SkipRetry)
}

// --- Admin notifications ---

func TestHandleModerationNotifyAdminsTask(t *testing.T) {
	admins := new(MockAdminNotifier)
	p := tasks.NewTaskProcessor(testConfig(), nil, nil, admins)
	admins.On("NotifyAdmins", mock.Anything, "New shop").Return(nil).Once()

	task := newTask(t, tasks.TypeModerationNotifyAdmins, tasks.AdminNotificationPayload{ShopID: "s1", Text: "New shop"})
	assert.NoError(t, p.HandleModerationNotifyAdminsTask(context.Background(), task))

	empty := newTask(t, tasks.TypeModerationNotifyAdmins, tasks.AdminNotificationPayload{ShopID: "s1"})
	assert.ErrorIs(t, p.HandleModerationNotifyAdminsTask(context.Background(), empty), asynq.SkipRetry)
	admins.AssertExpectations(t)
}
