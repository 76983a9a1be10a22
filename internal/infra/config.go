package infra

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"futures_go/internal/domain"
)

// Config는 애플리케이션의 모든 설정을 담습니다.
// LoadConfig로 로드된 후에 환경 변수를 통해 민감 내용을 덮어씁니다.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	API struct {
		Binance struct {
			BaseURL           string  `yaml:"base_url"`
			StreamURL         string  `yaml:"stream_url"`
			APIKey            string  `yaml:"api_key"`
			APISecret         string  `yaml:"api_secret"`
			RecvWindowMS      int64   `yaml:"recv_window_ms"`
			TimeoutSec        int     `yaml:"timeout_sec"`
			RequestsPerSecond float64 `yaml:"requests_per_second"`
		} `yaml:"binance"`
	} `yaml:"api"`

	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`

	Logging struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"logging"`
}

// LoadConfig는 설정 파일을 읽고 파싱합니다.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrConfigNotFound, path)
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// 보안 우선 - 환경 변수 오버라이드 지원
	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	b := &c.API.Binance

	// 빈 값은 클라이언트 기본값(테스트넷)으로 대체됩니다.
	if b.BaseURL != "" && !strings.HasPrefix(b.BaseURL, "http://") && !strings.HasPrefix(b.BaseURL, "https://") {
		return fmt.Errorf("invalid Binance base URL: %s", b.BaseURL)
	}
	if b.StreamURL != "" && !strings.HasPrefix(b.StreamURL, "ws://") && !strings.HasPrefix(b.StreamURL, "wss://") {
		return fmt.Errorf("invalid Binance stream URL: %s", b.StreamURL)
	}
	if b.RecvWindowMS < 0 || b.RecvWindowMS > 60000 {
		return fmt.Errorf("recv window must be between 0 and 60000 ms, got %d", b.RecvWindowMS)
	}
	if b.TimeoutSec < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	if b.RequestsPerSecond < 0 {
		return fmt.Errorf("requests per second must not be negative")
	}

	return nil
}

// overrideWithEnv는 환경 변수가 존재할 경우 설정 값을 덮어씁니다.
func overrideWithEnv(cfg *Config) {
	if key := os.Getenv("BINANCE_API_KEY"); key != "" {
		cfg.API.Binance.APIKey = key
	}
	if secret := os.Getenv("BINANCE_API_SECRET"); secret != "" {
		cfg.API.Binance.APISecret = secret
	}
	if baseURL := os.Getenv("BINANCE_BASE_URL"); baseURL != "" {
		cfg.API.Binance.BaseURL = baseURL
	}
	if streamURL := os.Getenv("BINANCE_STREAM_URL"); streamURL != "" {
		cfg.API.Binance.StreamURL = streamURL
	}
}

// APIKey implements domain.CredentialsProvider.
func (c *Config) APIKey() string {
	return c.API.Binance.APIKey
}

// APISecret implements domain.CredentialsProvider.
func (c *Config) APISecret() string {
	return c.API.Binance.APISecret
}
