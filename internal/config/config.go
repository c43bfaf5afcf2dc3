package config

import (
	"io/ioutil"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации сервера арены.

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Arena    ArenaConfig    `yaml:"arena"`
	Auth     AuthConfig     `yaml:"auth"`
	EventBus EventBusConfig `yaml:"eventbus"`
	Redis    RedisConfig    `yaml:"redis"`
	Maria    MariaConfig    `yaml:"maria"`
	Mongo    MongoConfig    `yaml:"mongo"`
	History  HistoryConfig  `yaml:"history"`
}

type ServerConfig struct {
	TCPPort     int `yaml:"tcp_port"`
	KCPPort     int `yaml:"kcp_port"`
	RESTPort    int `yaml:"rest_port"`
	MetricsPort int `yaml:"metrics_port"`
}

// ArenaConfig содержит тюнинг симуляции.
// Нулевые значения заменяются дефолтами (см. Normalize).
type ArenaConfig struct {
	TickRate    int     `yaml:"tick_rate"`    // тиков в секунду
	WorldWidth  float64 `yaml:"world_width"`  // мировые единицы
	WorldHeight float64 `yaml:"world_height"` // мировые единицы
	Seed        int64   `yaml:"seed"`         // сид генерации стен
	WallCount   int     `yaml:"wall_count"`   // количество стен на карте
}

type EventBusConfig struct {
	URL       string `yaml:"url"`
	Stream    string `yaml:"stream"`
	Retention int    `yaml:"retention_hours"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// AuthConfig выбирает бэкенд репозитория пользователей.
type AuthConfig struct {
	Backend string `yaml:"backend"` // memory | mariadb | mongo
}

// GetBackend возвращает бэкенд с приоритетом: config -> env -> memory
func (a *AuthConfig) GetBackend() string {
	if a.Backend != "" {
		return a.Backend
	}
	if env := os.Getenv("ARENA_AUTH_BACKEND"); env != "" {
		return env
	}
	return "memory"
}

type MariaConfig struct {
	DSN string `yaml:"dsn"`
}

type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

type HistoryConfig struct {
	Path string `yaml:"path"`
}

// GetTCPPort возвращает TCP порт с поддержкой fallback значений
func (s *ServerConfig) GetTCPPort() int {
	return getPortWithEnvFallback(s.TCPPort, "ARENA_TCP_PORT", 7777)
}

// GetKCPPort возвращает KCP порт с поддержкой fallback значений
func (s *ServerConfig) GetKCPPort() int {
	return getPortWithEnvFallback(s.KCPPort, "ARENA_KCP_PORT", 7778)
}

// GetRESTPort возвращает REST API порт с поддержкой fallback значений
func (s *ServerConfig) GetRESTPort() int {
	return getPortWithEnvFallback(s.RESTPort, "ARENA_REST_PORT", 8088)
}

// GetMetricsPort возвращает Prometheus метрики порт с поддержкой fallback значений
func (s *ServerConfig) GetMetricsPort() int {
	return getPortWithEnvFallback(s.MetricsPort, "ARENA_METRICS_PORT", 2112)
}

// Normalize подставляет дефолты вместо нулевых значений тюнинга арены
func (a *ArenaConfig) Normalize() {
	if a.TickRate <= 0 {
		a.TickRate = 60
	}
	if a.WorldWidth <= 0 {
		a.WorldWidth = 2000
	}
	if a.WorldHeight <= 0 {
		a.WorldHeight = 2000
	}
	if a.Seed == 0 {
		a.Seed = 1234
	}
	if a.WallCount < 0 {
		a.WallCount = 0
	}
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	// Если порт задан в конфиге и больше 0, используем его
	if configPort > 0 {
		return configPort
	}

	// Пробуем прочитать из environment variable
	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	// Используем дефолтное значение
	return defaultPort
}

// Load читает YAML файл конфигурации.
// Если path == "", пытается прочитать из ENV ARENA_CONFIG или возвращает nil, nil.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("ARENA_CONFIG")
		if path == "" {
			return nil, nil // конфиг не задан — использовать дефолты
		}
	}

	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.Arena.Normalize()
	return &cfg, nil
}
