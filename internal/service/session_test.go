package service

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"atma-secure/internal/classifier"
	"atma-secure/internal/dispatcher"
	"atma-secure/internal/models"
	"atma-secure/internal/repository"

	"atma-secure/common/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memoryLog 内存事件日志
type memoryLog struct {
	mu        sync.Mutex
	records   []models.EventRecord
	appendErr error
}

func (l *memoryLog) Append(_ context.Context, rec models.EventRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.appendErr != nil {
		return &models.PersistenceError{Op: "append event", Err: l.appendErr}
	}
	l.records = append(l.records, rec)
	return nil
}

func (l *memoryLog) ReadAll(_ context.Context) ([]models.EventRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]models.EventRecord, len(l.records))
	copy(out, l.records)
	return out, nil
}

func (l *memoryLog) Aggregate(ctx context.Context) (*models.EventStats, error) {
	records, _ := l.ReadAll(ctx)
	return models.StatsOf(records), nil
}

func (l *memoryLog) kinds() []models.EventKind {
	l.mu.Lock()
	defer l.mu.Unlock()
	kinds := make([]models.EventKind, 0, len(l.records))
	for _, r := range l.records {
		kinds = append(kinds, r.Event)
	}
	return kinds
}

type stubNotifier struct {
	hang map[string]bool
}

func (n *stubNotifier) Send(ctx context.Context, recipient, _ string) (string, error) {
	if n.hang[recipient] {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return "SM-" + recipient, nil
}

type stubPlayer struct{ plays int }

func (p *stubPlayer) Play(context.Context, string) error {
	p.plays++
	return nil
}

type stubPhotos struct{ saves int }

func (p *stubPhotos) Save([]byte, time.Time) (string, error) {
	p.saves++
	return "alerts/alert_photo_1.jpg", nil
}

type fixture struct {
	ctrl   *SessionController
	log    *memoryLog
	player *stubPlayer
	photos *stubPhotos
}

func newFixture(t *testing.T, recipients []string, hang map[string]bool) *fixture {
	t.Helper()
	logger := zap.NewNop()
	f := &fixture{log: &memoryLog{}, player: &stubPlayer{}, photos: &stubPhotos{}}
	d := dispatcher.NewDispatcher(&stubNotifier{hang: hang}, f.player, f.photos, dispatcher.Config{
		HelpPhrase:    "Help me!",
		NotifyTimeout: 50 * time.Millisecond,
	}, logger)
	f.ctrl = NewSessionController(classifier.NewAdapter(nil, nil, logger), d, f.log, SessionControllerConfig{
		Recipients:     recipients,
		DefaultMessage: models.DefaultMessage,
	}, logger)
	return f
}

func TestAutoCycle_BothSignalsRecordedBeforeAutoPhoto(t *testing.T) {
	f := newFixture(t, []string{"+1"}, nil)
	actx := f.ctrl.AlertContextFor("https://maps.google.com/?q=12.9,77.5", "")

	res, err := f.ctrl.AutoCycle(context.Background(), Capture{
		Frame:   []byte{0xff, 0xd8},
		Hand:    classifier.HandResult{Present: true},
		Emotion: classifier.EmotionResult{Label: "Fear"},
	}, actx)
	require.NoError(t, err)

	assert.Equal(t, models.VerdictBoth, res.Verdict.Kind)
	require.NotNil(t, res.Response)
	assert.True(t, res.Response.SoundPlayed)
	assert.Equal(t, "alerts/alert_photo_1.jpg", res.Response.PhotoPath)
	assert.NotEmpty(t, res.CycleID)

	assert.Equal(t, []models.EventKind{
		models.EventHandDetected,
		models.EventFearDetected,
		models.EventAutoPhoto,
	}, f.log.kinds())
	for _, r := range f.log.records {
		assert.Equal(t, "https://maps.google.com/?q=12.9,77.5", r.Location)
	}
}

func TestAutoCycle_HandOnly(t *testing.T) {
	f := newFixture(t, nil, nil)

	res, err := f.ctrl.AutoCycle(context.Background(), Capture{
		Frame:   []byte{1},
		Hand:    classifier.HandResult{Present: true},
		Emotion: classifier.EmotionResult{Label: "neutral"},
	}, f.ctrl.AlertContextFor("", ""))
	require.NoError(t, err)

	assert.Equal(t, models.VerdictHand, res.Verdict.Kind)
	assert.Equal(t, []models.EventKind{models.EventHandDetected, models.EventAutoPhoto}, f.log.kinds())
	assert.Equal(t, models.LocationUnavailable, f.log.records[0].Location)
}

func TestAutoCycle_NothingDetected(t *testing.T) {
	f := newFixture(t, []string{"+1"}, nil)

	res, err := f.ctrl.AutoCycle(context.Background(), Capture{
		Emotion: classifier.EmotionResult{Err: errors.New("no face")},
	}, f.ctrl.AlertContextFor("", ""))
	require.NoError(t, err)

	assert.Equal(t, models.VerdictNone, res.Verdict.Kind)
	assert.Equal(t, models.EmotionError, res.Observation.EmotionLabel)
	assert.Nil(t, res.Response)
	assert.Empty(t, f.log.kinds())
	assert.Zero(t, f.player.plays)
	assert.Zero(t, f.photos.saves)
}

func TestAutoCycle_AppendFailurePropagates(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.log.appendErr = errors.New("disk full")

	_, err := f.ctrl.AutoCycle(context.Background(), Capture{
		Hand:    classifier.HandResult{Present: true},
		Emotion: classifier.EmotionResult{Label: "happy"},
	}, f.ctrl.AlertContextFor("", ""))
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrPersistence)
	// 检测记录写入失败时不执行自动响应
	assert.Zero(t, f.player.plays)
}

func TestSOSCycle_OneRecipientTimesOut(t *testing.T) {
	f := newFixture(t, []string{"+1", "+2", "+3"}, map[string]bool{"+2": true})
	actx := f.ctrl.AlertContextFor("https://maps.google.com/?q=1,2", "Need help now")

	res, err := f.ctrl.SOSCycle(context.Background(), nil, actx)
	require.NoError(t, err)

	require.Len(t, res.Notifications, 3)
	assert.True(t, res.Notifications[0].Success)
	assert.False(t, res.Notifications[1].Success)
	assert.True(t, res.Notifications[1].TimedOut)
	assert.True(t, res.Notifications[2].Success)
	assert.Equal(t, 2, models.Delivered(res.Notifications))
	assert.True(t, res.SoundPlayed)
	assert.Zero(t, f.photos.saves)

	assert.Equal(t, []models.EventKind{models.EventSOS}, f.log.kinds())
}

func TestSOSCycle_RecordsEvenWhenNothingDelivered(t *testing.T) {
	f := newFixture(t, []string{"+1"}, map[string]bool{"+1": true})

	res, err := f.ctrl.SOSCycle(context.Background(), []byte{1}, f.ctrl.AlertContextFor("", ""))
	require.NoError(t, err)
	assert.Zero(t, models.Delivered(res.Notifications))
	assert.Equal(t, 1, f.photos.saves)
	assert.Equal(t, []models.EventKind{models.EventSOS}, f.log.kinds())
}

func TestNotifyContacts_RecordsManualAlert(t *testing.T) {
	f := newFixture(t, []string{"+1", "+2"}, nil)

	res, err := f.ctrl.NotifyContacts(context.Background(), f.ctrl.AlertContextFor("", ""))
	require.NoError(t, err)
	require.Len(t, res.Outcomes, 2)
	assert.Equal(t, 2, models.Delivered(res.Outcomes))
	assert.Equal(t, []models.EventKind{models.EventManualAlertSent}, f.log.kinds())
}

func TestAlertContextFor_Defaults(t *testing.T) {
	f := newFixture(t, []string{"+1", "+2"}, nil)

	actx := f.ctrl.AlertContextFor("", "")
	assert.Equal(t, models.DefaultMessage, actx.Message)
	assert.Equal(t, models.LocationUnavailable, actx.LocationURL)
	assert.Equal(t, []string{"+1", "+2"}, actx.Recipients)

	// 返回的联系人列表是副本
	actx.Recipients[0] = "+9"
	assert.Equal(t, []string{"+1", "+2"}, f.ctrl.AlertContextFor("", "x").Recipients)
}

// slowNotifier 固定延迟后发送成功，期间尊重 ctx
type slowNotifier struct{ delay time.Duration }

func (n slowNotifier) Send(ctx context.Context, recipient, _ string) (string, error) {
	select {
	case <-time.After(n.delay):
		return "SM-" + recipient, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func TestSOSCycle_CallerDeadlineDoesNotAbortCycle(t *testing.T) {
	logger := zap.NewNop()
	db, err := database.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	defer db.Close()

	eventLog := repository.NewSQLEventLog(db, repository.DialectSQLite, logger)
	require.NoError(t, eventLog.EnsureSchema(context.Background()))

	d := dispatcher.NewDispatcher(slowNotifier{delay: 30 * time.Millisecond}, &stubPlayer{}, &stubPhotos{}, dispatcher.Config{
		HelpPhrase:    "Help me!",
		NotifyTimeout: time.Second,
	}, logger)
	ctrl := NewSessionController(classifier.NewAdapter(nil, nil, logger), d, eventLog, SessionControllerConfig{
		Recipients:     []string{"+1", "+2", "+3"},
		DefaultMessage: models.DefaultMessage,
	}, logger)

	// 请求 ctx 在扇出完成前就已到期
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	res, err := ctrl.SOSCycle(ctx, nil, ctrl.AlertContextFor("", ""))
	require.NoError(t, err)
	require.Len(t, res.Notifications, 3)
	for _, o := range res.Notifications {
		assert.True(t, o.Success, o.Error)
		assert.False(t, o.TimedOut)
	}

	records, err := eventLog.ReadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.EventSOS, records[0].Event)
}

type stubDetector struct {
	hand    bool
	emotion string
	frames  int
}

func (d *stubDetector) DetectHand(_ context.Context, frame []byte) (classifier.HandResult, error) {
	d.frames++
	return classifier.HandResult{Present: d.hand}, nil
}

func (d *stubDetector) DetectEmotion(_ context.Context, frame []byte) (classifier.EmotionResult, error) {
	return classifier.EmotionResult{Label: d.emotion}, nil
}

func TestAutoCycle_UnclassifiedCaptureUsesDetectors(t *testing.T) {
	f := newFixture(t, nil, nil)
	detector := &stubDetector{emotion: "Fear"}
	f.ctrl.adapter = classifier.NewAdapter(detector, detector, zap.NewNop())

	capture, err := CaptureRequest{Frame: []byte{0xff, 0xd8}}.Capture()
	require.NoError(t, err)
	require.True(t, capture.Unclassified)

	res, err := f.ctrl.AutoCycle(context.Background(), capture, f.ctrl.AlertContextFor("", ""))
	require.NoError(t, err)

	assert.Equal(t, 1, detector.frames)
	assert.Equal(t, models.VerdictFear, res.Verdict.Kind)
	assert.Equal(t, []models.EventKind{models.EventFearDetected, models.EventAutoPhoto}, f.log.kinds())
}

func TestCaptureRequest_ClassifierOutputsTakePrecedence(t *testing.T) {
	capture, err := CaptureRequest{
		Frame: []byte{0xff, 0xd8},
		Hand:  json.RawMessage(`true`),
	}.Capture()
	require.NoError(t, err)
	assert.False(t, capture.Unclassified)
	assert.True(t, capture.Hand.Present)
	assert.Error(t, capture.Emotion.Err)

	// 没有画面时无从分类，按缺省输出处理
	capture, err = CaptureRequest{}.Capture()
	require.NoError(t, err)
	assert.False(t, capture.Unclassified)
}
