package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// 环境变量前缀，例如 DH_MYSQL_DSN
const envPrefix = "DH"

// DefaultPath 默认配置文件位置
const DefaultPath = "config/config.yaml"

type ServerConfig struct {
	Port        string   `yaml:"port" envconfig:"PORT"`
	JWTSecret   string   `yaml:"jwt_secret" envconfig:"JWT_SECRET"`
	CORSOrigins []string `yaml:"cors_origins" envconfig:"CORS_ORIGINS"`
}

type MySQLConfig struct {
	DSN             string        `yaml:"dsn" envconfig:"DSN"`
	MaxOpen         int           `yaml:"max_open" envconfig:"MAX_OPEN"`
	MaxIdle         int           `yaml:"max_idle" envconfig:"MAX_IDLE"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" envconfig:"CONN_MAX_LIFETIME"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" envconfig:"ADDR"`
	Password string `yaml:"password" envconfig:"PASSWORD"`
	DB       int    `yaml:"db" envconfig:"DB"`
	Prefix   string `yaml:"prefix" envconfig:"PREFIX"`
}

// QueueConfig 后台执行器：local 进程内协程池，asynq 走 redis
type QueueConfig struct {
	Mode        string `yaml:"mode" envconfig:"MODE"`
	Concurrency int    `yaml:"concurrency" envconfig:"CONCURRENCY"`
}

type MinIOConfig struct {
	Endpoint      string        `yaml:"endpoint" envconfig:"ENDPOINT"`
	AccessKey     string        `yaml:"access_key" envconfig:"ACCESS_KEY"`
	SecretKey     string        `yaml:"secret_key" envconfig:"SECRET_KEY"`
	Bucket        string        `yaml:"bucket" envconfig:"BUCKET"`
	UseSSL        bool          `yaml:"use_ssl" envconfig:"USE_SSL"`
	PresignExpiry time.Duration `yaml:"presign_expiry" envconfig:"PRESIGN_EXPIRY"`
}

type LLMConfig struct {
	Provider   string `yaml:"provider" envconfig:"PROVIDER"`
	BaseURL    string `yaml:"base_url" envconfig:"BASE_URL"`
	APIKey     string `yaml:"api_key" envconfig:"API_KEY"`
	Model      string `yaml:"model" envconfig:"MODEL"`
	OllamaHost string `yaml:"ollama_host" envconfig:"OLLAMA_HOST"`
}

type ImageConfig struct {
	BaseURL string `yaml:"base_url" envconfig:"BASE_URL"`
	APIKey  string `yaml:"api_key" envconfig:"API_KEY"`
	Model   string `yaml:"model" envconfig:"MODEL"`
}

type FalConfig struct {
	BaseURL      string        `yaml:"base_url" envconfig:"BASE_URL"`
	APIKey       string        `yaml:"api_key" envconfig:"API_KEY"`
	VideoApp     string        `yaml:"video_app" envconfig:"VIDEO_APP"`
	MusicApp     string        `yaml:"music_app" envconfig:"MUSIC_APP"`
	CloneApp     string        `yaml:"clone_app" envconfig:"CLONE_APP"`
	PollInterval time.Duration `yaml:"poll_interval" envconfig:"POLL_INTERVAL"`
	Timeout      time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`
}

type TTSConfig struct {
	Provider     string `yaml:"provider" envconfig:"PROVIDER"`
	OpenAIAPIKey string `yaml:"openai_api_key" envconfig:"OPENAI_API_KEY"`
	OpenAIBase   string `yaml:"openai_base_url" envconfig:"OPENAI_BASE_URL"`
	VoiceID      string `yaml:"voice_id" envconfig:"VOICE_ID"`
}

type SocialConfig struct {
	BaseURL string `yaml:"base_url" envconfig:"BASE_URL"`
	APIKey  string `yaml:"api_key" envconfig:"API_KEY"`
	Host    string `yaml:"host" envconfig:"HOST"`
}

// TemplatesConfig 舞蹈/唱歌姿势参考图
type TemplatesConfig struct {
	DanceURL string `yaml:"dance_url" envconfig:"DANCE_URL"`
	SingURL  string `yaml:"sing_url" envconfig:"SING_URL"`
}

type QuotaConfig struct {
	DailyLimit int64 `yaml:"daily_limit" envconfig:"DAILY_LIMIT"`
}

type RabbitMQConfig struct {
	URL      string `yaml:"url" envconfig:"URL"`
	Exchange string `yaml:"exchange" envconfig:"EXCHANGE"`
}

type LogConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL"`
	Encoding string `yaml:"encoding" envconfig:"ENCODING"`
}

type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	MySQL     MySQLConfig     `yaml:"mysql" envconfig:"MYSQL"`
	Redis     RedisConfig     `yaml:"redis" envconfig:"REDIS"`
	Queue     QueueConfig     `yaml:"queue" envconfig:"QUEUE"`
	MinIO     MinIOConfig     `yaml:"minio" envconfig:"MINIO"`
	LLM       LLMConfig       `yaml:"llm" envconfig:"LLM"`
	Image     ImageConfig     `yaml:"image" envconfig:"IMAGE"`
	Fal       FalConfig       `yaml:"fal" envconfig:"FAL"`
	TTS       TTSConfig       `yaml:"tts" envconfig:"TTS"`
	Social    SocialConfig    `yaml:"social" envconfig:"SOCIAL"`
	Templates TemplatesConfig `yaml:"templates" envconfig:"TEMPLATES"`
	Quota     QuotaConfig     `yaml:"quota" envconfig:"QUOTA"`
	RabbitMQ  RabbitMQConfig  `yaml:"rabbitmq" envconfig:"RABBITMQ"`
	Log       LogConfig       `yaml:"log" envconfig:"LOG"`
}

// Load 读取 .env -> yaml 文件 -> 环境变量覆盖 -> 默认值
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("加载 .env 失败: %w", err)
	}
	if p := os.Getenv(envPrefix + "_CONFIG"); p != "" {
		path = p
	}
	if path == "" {
		path = DefaultPath
	}

	cfg := &Config{}
	f, err := os.Open(path)
	switch {
	case err == nil:
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
			return nil, fmt.Errorf("配置文件解析失败: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist):
		// 只用环境变量也可以启动
	default:
		return nil, fmt.Errorf("配置文件读取失败: %w", err)
	}

	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, fmt.Errorf("环境变量解析失败: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = ":8080"
	}
	if c.MySQL.MaxOpen == 0 {
		c.MySQL.MaxOpen = 25
	}
	if c.MySQL.MaxIdle == 0 {
		c.MySQL.MaxIdle = 5
	}
	if c.MySQL.ConnMaxLifetime == 0 {
		c.MySQL.ConnMaxLifetime = time.Hour
	}
	if c.Queue.Mode == "" {
		c.Queue.Mode = QueueModeLocal
	}
	if c.Queue.Concurrency == 0 {
		c.Queue.Concurrency = 5
	}
	if c.MinIO.PresignExpiry == 0 {
		c.MinIO.PresignExpiry = 72 * time.Hour
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = LLMProviderOpenAI
	}
	if c.Fal.BaseURL == "" {
		c.Fal.BaseURL = "https://queue.fal.run"
	}
	if c.Fal.PollInterval == 0 {
		c.Fal.PollInterval = 3 * time.Second
	}
	if c.Fal.Timeout == 0 {
		c.Fal.Timeout = 30 * time.Minute
	}
	if c.TTS.Provider == "" {
		c.TTS.Provider = TTSProviderVoiceClone
	}
	if c.TTS.VoiceID == "" {
		c.TTS.VoiceID = "Abbess"
	}
	if c.Quota.DailyLimit == 0 {
		c.Quota.DailyLimit = 20
	}
	if c.RabbitMQ.Exchange == "" {
		c.RabbitMQ.Exchange = "digital_human.events"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Encoding == "" {
		c.Log.Encoding = "json"
	}
}

const (
	QueueModeLocal = "local"
	QueueModeAsynq = "asynq"

	LLMProviderOpenAI = "openai"
	LLMProviderOllama = "ollama"

	TTSProviderOpenAI     = "openai"
	TTSProviderVoiceClone = "voice_clone"
)

func (c *Config) validate() error {
	switch c.Queue.Mode {
	case QueueModeLocal, QueueModeAsynq:
	default:
		return fmt.Errorf("未知的 queue.mode: %q", c.Queue.Mode)
	}
	switch c.LLM.Provider {
	case LLMProviderOpenAI, LLMProviderOllama:
	default:
		return fmt.Errorf("未知的 llm.provider: %q", c.LLM.Provider)
	}
	switch c.TTS.Provider {
	case TTSProviderOpenAI, TTSProviderVoiceClone:
	default:
		return fmt.Errorf("未知的 tts.provider: %q", c.TTS.Provider)
	}
	return nil
}
