package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWhatsAppClient_Send_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2010-04-01/Accounts/AC123/Messages.json", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "AC123", user)
		assert.Equal(t, "secret", pass)

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "whatsapp:+14155238886", r.PostForm.Get("From"))
		assert.Equal(t, "whatsapp:+911111111111", r.PostForm.Get("To"))
		assert.Equal(t, "help\nLocation: x", r.PostForm.Get("Body"))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM42","status":"queued"}`))
	}))
	defer srv.Close()

	client := NewWhatsAppClient(srv.URL, "AC123", "secret", "whatsapp:+14155238886", 0, zap.NewNop())
	ref, err := client.Send(context.Background(), "whatsapp:+911111111111", "help\nLocation: x")

	require.NoError(t, err)
	assert.Equal(t, "SM42", ref)
}

func TestWhatsAppClient_Send_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":63007,"message":"Twilio could not find a Channel","status":400}`))
	}))
	defer srv.Close()

	client := NewWhatsAppClient(srv.URL, "AC123", "secret", "whatsapp:+1", 0, zap.NewNop())
	_, err := client.Send(context.Background(), "whatsapp:+2", "help")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not find a Channel")
	assert.Contains(t, err.Error(), "63007")
}

func TestWhatsAppClient_Send_ContextDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	client := NewWhatsAppClient(srv.URL, "AC123", "secret", "whatsapp:+1", 0, zap.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Send(ctx, "whatsapp:+2", "help")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

type recordingPublisher struct {
	topics   []string
	payloads [][]byte
	err      error
}

func (p *recordingPublisher) Publish(topic string, _ byte, _ bool, payload []byte) error {
	p.topics = append(p.topics, topic)
	p.payloads = append(p.payloads, payload)
	return p.err
}

func TestMQTTNotifier_Send(t *testing.T) {
	pub := &recordingPublisher{}
	n := NewMQTTNotifier(pub, "atma/alerts", 1)

	ref, err := n.Send(context.Background(), "whatsapp:+1", "help")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "mqtt:atma/alerts:"))

	var msg AlertMessage
	require.NoError(t, json.Unmarshal(pub.payloads[0], &msg))
	assert.Equal(t, "whatsapp:+1", msg.Recipient)
	assert.Equal(t, "help", msg.Body)
}

func TestMulti_MirrorFailureDoesNotAffectPrimary(t *testing.T) {
	mirror := NewMQTTNotifier(&recordingPublisher{err: errors.New("broker down")}, "atma/alerts", 0)
	m := NewMulti(zap.NewNop(), NewDryRunNotifier(zap.NewNop()), mirror)

	ref, err := m.Send(context.Background(), "whatsapp:+1", "help")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "dryrun-"))
	m.Wait()
}

type blockingNotifier struct {
	release chan struct{}
	sent    chan string
}

func (n *blockingNotifier) Send(ctx context.Context, recipient, _ string) (string, error) {
	<-n.release
	n.sent <- recipient
	return "blocked", ctx.Err()
}

func TestMulti_BlockedMirrorDoesNotDelayPrimary(t *testing.T) {
	mirror := &blockingNotifier{release: make(chan struct{}), sent: make(chan string, 1)}
	m := NewMulti(zap.NewNop(), NewDryRunNotifier(zap.NewNop()), mirror)

	ctx, cancel := context.WithCancel(context.Background())
	start := time.Now()
	ref, err := m.Send(ctx, "whatsapp:+1", "help")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "dryrun-"))
	assert.Less(t, time.Since(start), time.Second)

	// 主通道返回后调用方取消 ctx，镜像仍应完成发送
	cancel()
	close(mirror.release)
	m.Wait()
	assert.Equal(t, "whatsapp:+1", <-mirror.sent)
}
