package audio

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"
)

// Player 语音提示播放（尽力而为）
type Player interface {
	Play(ctx context.Context, phrase string) error
}

// Phrase 生成重复的求救语句，如 "Help me! Help me! ..."
func Phrase(base string, repeat int) string {
	if repeat < 1 {
		repeat = 1
	}
	return strings.TrimSpace(strings.Repeat(base+" ", repeat))
}

// CommandPlayer 通过本地 TTS 命令播放（如 espeak）
// 短语作为最后一个参数追加到命令后
type CommandPlayer struct {
	command string
	args    []string
	logger  *zap.Logger
}

// NewCommandPlayer commandLine 例如 "espeak -s 180 -a 200"
func NewCommandPlayer(commandLine string, logger *zap.Logger) (*CommandPlayer, error) {
	fields := strings.Fields(commandLine)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty audio command")
	}
	return &CommandPlayer{command: fields[0], args: fields[1:], logger: logger}, nil
}

func (p *CommandPlayer) Play(ctx context.Context, phrase string) error {
	args := append(append([]string{}, p.args...), phrase)
	out, err := exec.CommandContext(ctx, p.command, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w (%s)", p.command, err, strings.TrimSpace(string(out)))
	}
	p.logger.Debug("Help phrase played", zap.String("command", p.command))
	return nil
}

// Publisher MQTT 发布能力（common/mqtt.Client 满足该接口）
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// SpeakCommand 发送给远端扬声器设备的指令
type SpeakCommand struct {
	Phrase string  `json:"phrase"`
	Rate   int     `json:"rate"`
	Volume float64 `json:"volume"`
}

// RemotePlayer 通过 MQTT 让扬声器设备播放
type RemotePlayer struct {
	publisher Publisher
	topic     string
	qos       byte
	rate      int
	volume    float64
}

func NewRemotePlayer(publisher Publisher, topic string, qos byte, rate int, volume float64) *RemotePlayer {
	return &RemotePlayer{publisher: publisher, topic: topic, qos: qos, rate: rate, volume: volume}
}

func (p *RemotePlayer) Play(_ context.Context, phrase string) error {
	payload, err := json.Marshal(SpeakCommand{Phrase: phrase, Rate: p.rate, Volume: p.volume})
	if err != nil {
		return err
	}
	return p.publisher.Publish(p.topic, p.qos, false, payload)
}

// NopPlayer 不播放任何声音
type NopPlayer struct{}

func (NopPlayer) Play(context.Context, string) error {
	return fmt.Errorf("audio disabled")
}
