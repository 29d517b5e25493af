package consumer

import (
	"context"
	"errors"
	"testing"
	"time"

	"atma-secure/internal/models"
	"atma-secure/internal/service"

	mqttcommon "atma-secure/common/mqtt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSubscriber struct {
	topic        string
	handler      mqttcommon.MessageHandler
	unsubscribed []string
	subscribed   chan struct{}
}

func (s *fakeSubscriber) Subscribe(topic string, _ byte, handler mqttcommon.MessageHandler) error {
	s.topic, s.handler = topic, handler
	close(s.subscribed)
	return nil
}

func (s *fakeSubscriber) Unsubscribe(topics ...string) error {
	s.unsubscribed = append(s.unsubscribed, topics...)
	return nil
}

type fakeCycler struct {
	captures []service.Capture
	actxs    []models.AlertContext
	err      error
}

func (f *fakeCycler) AlertContextFor(locationURL, message string) models.AlertContext {
	return models.AlertContext{LocationURL: locationURL, Message: message}
}

func (f *fakeCycler) AutoCycle(_ context.Context, c service.Capture, actx models.AlertContext) (*service.CycleResult, error) {
	f.captures = append(f.captures, c)
	f.actxs = append(f.actxs, actx)
	if f.err != nil {
		return nil, f.err
	}
	return &service.CycleResult{CycleID: "c1"}, nil
}

func startConsumer(t *testing.T, cycler AutoCycler) (*fakeSubscriber, *CaptureConsumer, context.CancelFunc) {
	t.Helper()
	sub := &fakeSubscriber{subscribed: make(chan struct{})}
	c := NewCaptureConsumer(sub, cycler, "atma/+/capture", 1, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	select {
	case <-sub.subscribed:
	case <-time.After(time.Second):
		t.Fatal("consumer did not subscribe")
	}
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
	return sub, c, cancel
}

func TestCaptureConsumer_RunsAutoCycle(t *testing.T) {
	cycler := &fakeCycler{}
	sub, _, _ := startConsumer(t, cycler)
	assert.Equal(t, "atma/+/capture", sub.topic)

	payload := `{"hand":true,"emotion":{"dominant_emotion":"fear"},"latitude":1.5,"longitude":2.5}`
	require.NoError(t, sub.handler("atma/cam-01/capture", []byte(payload)))

	require.Len(t, cycler.captures, 1)
	assert.True(t, cycler.captures[0].Hand.Present)
	assert.Equal(t, "fear", cycler.captures[0].Emotion.Label)
	assert.Equal(t, "https://maps.google.com/?q=1.5,2.5", cycler.actxs[0].LocationURL)
}

func TestCaptureConsumer_RejectsBadMessages(t *testing.T) {
	cycler := &fakeCycler{}
	sub, _, _ := startConsumer(t, cycler)

	assert.Error(t, sub.handler("capture", []byte(`{}`)))
	assert.Error(t, sub.handler("atma/cam-01/capture", []byte(`not json`)))
	assert.Error(t, sub.handler("atma/cam-01/capture", []byte(`{"hand":"yes"}`)))
	assert.Empty(t, cycler.captures)
}

func TestCaptureConsumer_PropagatesCycleError(t *testing.T) {
	cycler := &fakeCycler{err: &models.PersistenceError{Op: "append event", Err: errors.New("disk full")}}
	sub, _, _ := startConsumer(t, cycler)

	err := sub.handler("atma/cam-01/capture", []byte(`{"hand":true}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrPersistence)
}

func TestCaptureConsumer_Stop(t *testing.T) {
	sub, c, _ := startConsumer(t, &fakeCycler{})
	c.Stop()
	assert.Equal(t, []string{"atma/+/capture"}, sub.unsubscribed)
}
