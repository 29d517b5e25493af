package audio

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingPublisher struct {
	topic   string
	payload []byte
	err     error
}

func (p *recordingPublisher) Publish(topic string, _ byte, _ bool, payload []byte) error {
	p.topic = topic
	p.payload = payload
	return p.err
}

func TestPhrase(t *testing.T) {
	assert.Equal(t, "Help me! Help me! Help me! Help me! Help me!", Phrase("Help me!", 5))
	assert.Equal(t, "Help me!", Phrase("Help me!", 0))
}

func TestRemotePlayer_Play(t *testing.T) {
	pub := &recordingPublisher{}
	player := NewRemotePlayer(pub, "atma/speaker", 1, 180, 1)

	require.NoError(t, player.Play(context.Background(), "Help me!"))
	assert.Equal(t, "atma/speaker", pub.topic)

	var cmd SpeakCommand
	require.NoError(t, json.Unmarshal(pub.payload, &cmd))
	assert.Equal(t, SpeakCommand{Phrase: "Help me!", Rate: 180, Volume: 1}, cmd)
}

func TestRemotePlayer_PublishError(t *testing.T) {
	player := NewRemotePlayer(&recordingPublisher{err: errors.New("broker down")}, "t", 0, 180, 1)
	assert.Error(t, player.Play(context.Background(), "Help me!"))
}

func TestCommandPlayer(t *testing.T) {
	_, err := NewCommandPlayer("  ", zap.NewNop())
	assert.Error(t, err)

	player, err := NewCommandPlayer("definitely-not-a-real-tts-binary -s 180", zap.NewNop())
	require.NoError(t, err)
	assert.Error(t, player.Play(context.Background(), "Help me!"))
}

func TestNopPlayer(t *testing.T) {
	assert.Error(t, NopPlayer{}.Play(context.Background(), "x"))
}
