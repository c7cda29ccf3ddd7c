package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config — корневая структура конфигурации сервера
type Config struct {
	World   WorldConfig   `yaml:"world"`
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Redis   RedisConfig   `yaml:"redis"`
	NATS    NATSConfig    `yaml:"nats"`
}

// WorldConfig — настройки планировщика мира
type WorldConfig struct {
	Seed                     int64 `yaml:"seed"`
	HorizontalViewDistance   int   `yaml:"horizontal_view_distance"`
	VerticalViewDistance     int   `yaml:"vertical_view_distance"`
	MaxGeneratedCubesPerTick int   `yaml:"max_generated_cubes_per_tick"`
	GenerationDeadlineMs     int   `yaml:"generation_deadline_ms"`
	MaxSentCubesPerTick      int   `yaml:"max_sent_cubes_per_tick"`
	BlockDeltaLimit          int   `yaml:"block_delta_limit"`
	TickRate                 int   `yaml:"tick_rate"`
	SpectatorsGenerateChunks bool  `yaml:"spectators_generate_chunks"`
	CanRespawnHere           bool  `yaml:"can_respawn_here"`
	Debug                    bool  `yaml:"debug"`
}

// ServerConfig — сетевые порты
type ServerConfig struct {
	GamePort    int `yaml:"game_port"`
	RESTPort    int `yaml:"rest_port"`
	MetricsPort int `yaml:"metrics_port"`
}

// StorageConfig — настройки постоянного хранилища
type StorageConfig struct {
	DataPath string `yaml:"data_path"`
	InMemory bool   `yaml:"in_memory"`
}

// RedisConfig — подключение к Redis для позиций игроков
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// NATSConfig — подключение к шине событий
type NATSConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Stream  string `yaml:"stream"`
}

// GetGamePort возвращает игровой порт с приоритетом: config -> env -> default
func (s *ServerConfig) GetGamePort() int {
	return getPortWithEnvFallback(s.GamePort, "CC_GAME_PORT", 7777)
}

// GetRESTPort возвращает REST API порт с приоритетом: config -> env -> default
func (s *ServerConfig) GetRESTPort() int {
	return getPortWithEnvFallback(s.RESTPort, "CC_REST_PORT", 8088)
}

// GetMetricsPort возвращает порт Prometheus с приоритетом: config -> env -> default
func (s *ServerConfig) GetMetricsPort() int {
	return getPortWithEnvFallback(s.MetricsPort, "CC_METRICS_PORT", 2112)
}

// GetDataPath возвращает каталог данных
func (s *StorageConfig) GetDataPath() string {
	if s.DataPath != "" {
		return s.DataPath
	}
	if envVal := os.Getenv("CC_DATA_PATH"); envVal != "" {
		return envVal
	}
	return "data"
}

// GetTickRate возвращает частоту тиков в секунду
func (w *WorldConfig) GetTickRate() int {
	if w.TickRate > 0 {
		return w.TickRate
	}
	return 20
}

// GetGenerationDeadline возвращает дедлайн генерации внутри тика
func (w *WorldConfig) GetGenerationDeadline() time.Duration {
	if w.GenerationDeadlineMs > 0 {
		return time.Duration(w.GenerationDeadlineMs) * time.Millisecond
	}
	return 50 * time.Millisecond
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	if configPort > 0 {
		return configPort
	}
	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}
	return defaultPort
}

// Load читает YAML файл конфигурации.
// Если path == "", пытается прочитать из ENV CC_CONFIG или возвращает дефолты.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("CC_CONFIG")
		if path == "" {
			return Default(), nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	return &Config{
		World: WorldConfig{
			Seed:                   1,
			HorizontalViewDistance: 8,
			VerticalViewDistance:   8,
			CanRespawnHere:         true,
		},
		Storage: StorageConfig{},
		Redis:   RedisConfig{Addr: "localhost:6379"},
		NATS:    NATSConfig{URL: "nats://localhost:4222", Stream: "WORLD_EVENTS"},
	}
}
