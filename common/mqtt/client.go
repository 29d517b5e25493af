package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// MessageHandler 消息处理函数；返回的错误只记录日志
type MessageHandler func(topic string, payload []byte) error

// Options MQTT 连接参数
type Options struct {
	Broker         string        `yaml:"broker"`
	ClientID       string        `yaml:"client_id"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	QoS            byte          `yaml:"qos"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

type subscription struct {
	qos     byte
	handler MessageHandler
}

// Client 设备侧 MQTT 连接
// 会话为 clean session，重连后由 OnConnect 恢复已登记的订阅
type Client struct {
	client  paho.Client
	opts    Options
	timeout time.Duration
	logger  *zap.Logger

	mu   sync.Mutex
	subs map[string]subscription
}

// Dial 连接 broker
func Dial(opts Options, logger *zap.Logger) (*Client, error) {
	c := &Client{
		opts:    opts,
		timeout: opts.ConnectTimeout,
		logger:  logger,
		subs:    make(map[string]subscription),
	}
	if c.timeout <= 0 {
		c.timeout = 10 * time.Second
	}

	po := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetCleanSession(true).
		SetConnectTimeout(c.timeout).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			logger.Warn("MQTT connection lost", zap.String("broker", opts.Broker), zap.Error(err))
		})
	if opts.Username != "" {
		po.SetUsername(opts.Username)
		po.SetPassword(opts.Password)
	}

	c.client = paho.NewClient(po)
	if err := c.wait(c.client.Connect()); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: %w", opts.Broker, err)
	}
	logger.Info("MQTT connected", zap.String("broker", opts.Broker), zap.String("client_id", opts.ClientID))
	return c, nil
}

// Subscribe 订阅并登记主题
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	c.mu.Lock()
	c.subs[topic] = subscription{qos: qos, handler: handler}
	c.mu.Unlock()

	if err := c.wait(c.client.Subscribe(topic, qos, c.dispatch(handler))); err != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", topic, err)
	}
	return nil
}

// Unsubscribe 取消订阅并移除登记
func (c *Client) Unsubscribe(topics ...string) error {
	c.mu.Lock()
	for _, t := range topics {
		delete(c.subs, t)
	}
	c.mu.Unlock()

	if err := c.wait(c.client.Unsubscribe(topics...)); err != nil {
		return fmt.Errorf("failed to unsubscribe: %w", err)
	}
	return nil
}

// Publish 发布原始负载
func (c *Client) Publish(topic string, qos byte, retained bool, payload []byte) error {
	if err := c.wait(c.client.Publish(topic, qos, retained, payload)); err != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, err)
	}
	return nil
}

// QoS 配置的服务质量等级
func (c *Client) QoS() byte {
	return c.opts.QoS
}

// Disconnect 断开连接
func (c *Client) Disconnect() {
	c.client.Disconnect(250)
}

func (c *Client) wait(token paho.Token) error {
	if !token.WaitTimeout(c.timeout) {
		return fmt.Errorf("timed out after %s", c.timeout)
	}
	return token.Error()
}

func (c *Client) dispatch(handler MessageHandler) paho.MessageHandler {
	return func(_ paho.Client, msg paho.Message) {
		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			c.logger.Error("Error handling MQTT message",
				zap.String("topic", msg.Topic()),
				zap.Error(err),
			)
		}
	}
}

// onConnect 首次连接时 subs 为空；重连后恢复订阅
func (c *Client) onConnect(client paho.Client) {
	c.mu.Lock()
	subs := make(map[string]subscription, len(c.subs))
	for t, s := range c.subs {
		subs[t] = s
	}
	c.mu.Unlock()

	for topic, s := range subs {
		if err := c.wait(client.Subscribe(topic, s.qos, c.dispatch(s.handler))); err != nil {
			c.logger.Error("Failed to restore MQTT subscription", zap.String("topic", topic), zap.Error(err))
			continue
		}
		c.logger.Info("MQTT subscription restored", zap.String("topic", topic))
	}
}
