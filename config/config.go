package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const ENV_FILE = ".env"
const CONFIG_FILE = "config.yaml"

// 환경변수 오버라이드 키
const (
	EnvAPIBaseURL     = "CONTEXTBASE_API_BASE_URL"
	EnvLogLevel       = "CONTEXTBASE_LOG_LEVEL"
	EnvKafkaBootstrap = "KAFKA_BOOTSTRAP_SERVERS"
)

type AppConfig struct {
	Logging       LoggingConfig      `yaml:"logging"`
	API           APIConfig          `yaml:"api"`
	Session       SessionConfig      `yaml:"session"`
	EventBus      EventBusConfig     `yaml:"eventbus"`
	Cache         CacheConfig        `yaml:"cache"`
	Bridge        BridgeConfig       `yaml:"bridge"`
	Notifications NotificationConfig `yaml:"notifications"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// APIConfig 는 원격 채팅 서비스 접속 정보다.
// Timeout 은 LLM 응답 대기를 포함하므로 일반 API 보다 길게 잡는다.
type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// SessionConfig 는 bearer 토큰을 읽을 환경변수 이름을 지정한다.
type SessionConfig struct {
	TokenEnv string `yaml:"token_env"`
}

type EventBusConfig struct {
	// Driver 는 memory 또는 kafka
	Driver     string `yaml:"driver"`
	Brokers    string `yaml:"brokers"`
	Topic      string `yaml:"topic"`
	Partitions int    `yaml:"partitions"`
}

type CacheConfig struct {
	// Driver 는 none, sqlite, mongo 중 하나다.
	Driver        string `yaml:"driver"`
	SQLitePath    string `yaml:"sqlite_path"`
	MongoURI      string `yaml:"mongo_uri"`
	MongoDatabase string `yaml:"mongo_database"`
	UserKey       string `yaml:"user_key"`
}

type BridgeConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type NotificationConfig struct {
	Keep int `yaml:"keep"`
}

// Default 는 설정 파일이 비어 있을 때 사용할 기본값이다.
func Default() AppConfig {
	return AppConfig{
		Logging: LoggingConfig{Level: "info"},
		API: APIConfig{
			BaseURL: "http://localhost:8000",
			Timeout: 2 * time.Minute,
		},
		Session: SessionConfig{TokenEnv: "CONTEXTBASE_TOKEN"},
		EventBus: EventBusConfig{
			Driver:     "memory",
			Topic:      "contextbase.client.events",
			Partitions: 1,
		},
		Cache: CacheConfig{
			Driver:        "none",
			SQLitePath:    "contextbase.db",
			MongoDatabase: "contextbase",
			UserKey:       "default",
		},
		Bridge: BridgeConfig{
			Addr:           ":8090",
			AllowedOrigins: []string{"http://localhost:5173"},
		},
		Notifications: NotificationConfig{Keep: 20},
	}
}

var config *AppConfig

// Load 는 path 의 YAML 을 기본값 위에 덮어쓰고 환경변수 오버라이드를 적용한다.
func Load(path string) (AppConfig, error) {
	c := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("parse config %s: %w", path, err)
	}
	applyEnv(&c)
	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

func applyEnv(c *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvAPIBaseURL)); v != "" {
		c.API.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		c.Logging.Level = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvKafkaBootstrap)); v != "" {
		c.EventBus.Brokers = v
	}
}

// Validate 는 드라이버 선택과 필수 값의 조합을 검사한다.
func (c AppConfig) Validate() error {
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return fmt.Errorf("config: api.base_url is required")
	}
	switch c.EventBus.Driver {
	case "", "memory":
	case "kafka":
		if c.EventBus.Brokers == "" {
			return fmt.Errorf("config: eventbus.brokers is required for kafka driver")
		}
	default:
		return fmt.Errorf("config: unknown eventbus driver %q", c.EventBus.Driver)
	}
	switch c.Cache.Driver {
	case "", "none":
	case "sqlite":
		if c.Cache.SQLitePath == "" {
			return fmt.Errorf("config: cache.sqlite_path is required for sqlite driver")
		}
	case "mongo":
		if c.Cache.MongoURI == "" {
			return fmt.Errorf("config: cache.mongo_uri is required for mongo driver")
		}
	default:
		return fmt.Errorf("config: unknown cache driver %q", c.Cache.Driver)
	}
	return nil
}

func InitApp() {
	// load environment variables
	godotenv.Load(filepath.Join(GetBasePath(), ENV_FILE))

	c, err := Load(filepath.Join(GetBasePath(), CONFIG_FILE))
	if err != nil {
		panic(err)
	}
	config = &c
}

func GetConfig() AppConfig {
	if config == nil {
		InitApp()
	}

	return *config
}

// GetBasePath 는 cwd 에서 위로 올라가며 config.yaml 이 있는 디렉터리를 찾는다.
func GetBasePath() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	dir := cwd
	for {
		cfgPath := filepath.Join(dir, CONFIG_FILE)
		if info, err := os.Stat(cfgPath); err == nil && !info.IsDir() {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}
