package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"atma-secure/common/database"
	mqttcommon "atma-secure/common/mqtt"
	rediscommon "atma-secure/common/redis"

	"gopkg.in/yaml.v3"
)

// 事件日志后端
const (
	BackendCSV      = "csv"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// 声音提示方式
const (
	AudioCommand = "command"
	AudioMQTT    = "mqtt"
	AudioNone    = "none"
)

// Config atma-secure 服务配置（启动时构建一次，之后只读）
type Config struct {
	HTTP struct {
		Addr string `yaml:"addr"`
	} `yaml:"http"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`

	EventLog EventLogConfig   `yaml:"event_log"`
	Database database.Options `yaml:"database"`
	Redis    RedisConfig      `yaml:"redis"`
	MQTT     MQTTConfig       `yaml:"mqtt"`
	Alert    AlertConfig      `yaml:"alert"`
	Twilio   TwilioConfig     `yaml:"twilio"`
	Audio    AudioConfig      `yaml:"audio"`

	Classifier ClassifierConfig `yaml:"classifier"`
}

// ClassifierConfig 远程分类服务（可选）；URL 为空时抓拍必须自带分类结果
type ClassifierConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// EventLogConfig 事件日志配置
type EventLogConfig struct {
	Backend    string `yaml:"backend"`     // csv | postgres | sqlite
	CSVPath    string `yaml:"csv_path"`    // 默认 event_log.csv
	SQLitePath string `yaml:"sqlite_path"` // 默认 event_log.db
}

// RedisConfig 事件转发（可选）
type RedisConfig struct {
	rediscommon.Options `yaml:",inline"`
	Enabled             bool   `yaml:"enabled"`
	EventStream         string `yaml:"event_stream"`
	StreamMaxLen        int64  `yaml:"stream_max_len"`
}

// MQTTConfig 摄像头/扬声器设备接入（可选）
type MQTTConfig struct {
	mqttcommon.Options `yaml:",inline"`
	Enabled            bool   `yaml:"enabled"`
	CaptureTopic       string `yaml:"capture_topic"` // 如 "atma/+/capture"
	SpeakerTopic       string `yaml:"speaker_topic"`
	AlertTopic         string `yaml:"alert_topic"`
}

// AlertConfig 报警配置
type AlertConfig struct {
	Recipients     []string      `yaml:"recipients"`
	SenderAddress  string        `yaml:"sender_address"`
	HelplineNumber string        `yaml:"helpline_number"`
	DefaultMessage string        `yaml:"default_message"`
	PhotoDir       string        `yaml:"photo_dir"`
	NotifyTimeout  time.Duration `yaml:"notify_timeout"`
}

// TwilioConfig 消息服务商凭证；AccountSID 为空时使用 dry-run
type TwilioConfig struct {
	BaseURL    string `yaml:"base_url"`
	AccountSID string `yaml:"account_sid"`
	AuthToken  string `yaml:"auth_token"`
	Retries    int    `yaml:"retries"`
}

// AudioConfig 声音提示配置
type AudioConfig struct {
	Mode    string  `yaml:"mode"`    // command | mqtt | none
	Command string  `yaml:"command"` // 如 "espeak -s 180"
	Phrase  string  `yaml:"phrase"`
	Repeat  int     `yaml:"repeat"`
	Rate    int     `yaml:"rate"`
	Volume  float64 `yaml:"volume"`
}

// Load 加载配置：环境变量（带默认值），若设置 CONFIG_FILE 则再叠加 YAML 文件
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")
	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	cfg.EventLog.Backend = getEnv("EVENT_LOG_BACKEND", BackendCSV)
	cfg.EventLog.CSVPath = getEnv("EVENT_LOG_CSV_PATH", "event_log.csv")
	cfg.EventLog.SQLitePath = getEnv("EVENT_LOG_SQLITE_PATH", "event_log.db")

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = parseInt(getEnv("DB_PORT", "5432"), 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Name = getEnv("DB_NAME", "atma")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxOpenConns = parseInt(getEnv("DB_MAX_OPEN_CONNS", "10"), 10)
	cfg.Database.ConnectTimeout = parseDuration(getEnv("DB_CONNECT_TIMEOUT", "5s"), 5*time.Second)

	cfg.Redis.Enabled = getEnv("REDIS_ENABLED", "false") == "true"
	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = parseInt(getEnv("REDIS_DB", "0"), 0)
	cfg.Redis.DialTimeout = parseDuration(getEnv("REDIS_DIAL_TIMEOUT", "2s"), 2*time.Second)
	cfg.Redis.EventStream = getEnv("REDIS_EVENT_STREAM", "atma:events")
	cfg.Redis.StreamMaxLen = int64(parseInt(getEnv("REDIS_STREAM_MAX_LEN", "10000"), 10000))

	cfg.MQTT.Enabled = getEnv("MQTT_ENABLED", "false") == "true"
	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "atma-secure")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.QoS = byte(parseInt(getEnv("MQTT_QOS", "1"), 1))
	cfg.MQTT.ConnectTimeout = parseDuration(getEnv("MQTT_CONNECT_TIMEOUT", "10s"), 10*time.Second)
	cfg.MQTT.CaptureTopic = getEnv("MQTT_CAPTURE_TOPIC", "atma/+/capture")
	cfg.MQTT.SpeakerTopic = getEnv("MQTT_SPEAKER_TOPIC", "atma/speaker/say")
	cfg.MQTT.AlertTopic = getEnv("MQTT_ALERT_TOPIC", "")

	cfg.Alert.Recipients = splitList(getEnv("ALERT_RECIPIENTS", ""))
	cfg.Alert.SenderAddress = getEnv("ALERT_SENDER", "whatsapp:+14155238886")
	cfg.Alert.HelplineNumber = getEnv("HELPLINE_NUMBER", "1091")
	cfg.Alert.DefaultMessage = getEnv("ALERT_DEFAULT_MESSAGE", "🚨 Emergency Alert! Need help!")
	cfg.Alert.PhotoDir = getEnv("ALERT_PHOTO_DIR", "alert_photos")
	cfg.Alert.NotifyTimeout = parseDuration(getEnv("ALERT_NOTIFY_TIMEOUT", "15s"), 15*time.Second)

	cfg.Twilio.BaseURL = getEnv("TWILIO_BASE_URL", "https://api.twilio.com")
	cfg.Twilio.AccountSID = getEnv("TWILIO_ACCOUNT_SID", "")
	cfg.Twilio.AuthToken = getEnv("TWILIO_AUTH_TOKEN", "")
	cfg.Twilio.Retries = parseInt(getEnv("TWILIO_RETRIES", "1"), 1)

	cfg.Audio.Mode = getEnv("AUDIO_MODE", AudioCommand)
	cfg.Audio.Command = getEnv("AUDIO_COMMAND", "espeak -s 180 -a 200")
	cfg.Audio.Phrase = getEnv("AUDIO_PHRASE", "Help me!")
	cfg.Audio.Repeat = parseInt(getEnv("AUDIO_REPEAT", "5"), 5)
	cfg.Audio.Rate = parseInt(getEnv("AUDIO_RATE", "180"), 180)
	cfg.Audio.Volume = 1

	cfg.Classifier.URL = getEnv("CLASSIFIER_URL", "")
	cfg.Classifier.Timeout = parseDuration(getEnv("CLASSIFIER_TIMEOUT", "5s"), 5*time.Second)

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile 叠加 YAML 配置（只覆盖文件中出现的字段）
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Validate 校验配置
func (c *Config) Validate() error {
	switch c.EventLog.Backend {
	case BackendCSV, BackendPostgres, BackendSQLite:
	default:
		return fmt.Errorf("unknown event log backend: %q", c.EventLog.Backend)
	}
	switch c.Audio.Mode {
	case AudioCommand, AudioMQTT, AudioNone:
	default:
		return fmt.Errorf("unknown audio mode: %q", c.Audio.Mode)
	}
	if c.Audio.Mode == AudioMQTT && !c.MQTT.Enabled {
		return fmt.Errorf("audio mode mqtt requires MQTT_ENABLED=true")
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt qos must be 0, 1 or 2, got %d", c.MQTT.QoS)
	}
	if c.Alert.NotifyTimeout <= 0 {
		return fmt.Errorf("alert notify timeout must be positive, got %s", c.Alert.NotifyTimeout)
	}
	if c.Classifier.URL != "" && c.Classifier.Timeout <= 0 {
		return fmt.Errorf("classifier timeout must be positive, got %s", c.Classifier.Timeout)
	}
	if c.Twilio.AccountSID != "" && c.Alert.SenderAddress == "" {
		return fmt.Errorf("alert sender address is required when messaging credentials are set")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

// splitList 逗号分隔，忽略空项，保留顺序
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
