package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisConfig содержит настройки подключения к Redis
type RedisConfig struct {
	Addr      string        // Адрес Redis сервера
	Password  string        // Пароль (пустой если не требуется)
	DB        int           // Номер базы данных
	KeyPrefix string        // Префикс для ключей
	TTL       time.Duration // Время жизни записей
}

// DefaultRedisConfig возвращает конфигурацию по умолчанию
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:      "localhost:6379",
		KeyPrefix: "cc:pos:",
		TTL:       24 * time.Hour,
	}
}

// RedisPositionRepository хранит позиции игроков в Redis.
// Используется при нескольких игровых узлах: игрок может переподключиться
// к любому из них и продолжить с последней позиции.
type RedisPositionRepository struct {
	client    *redis.Client
	ctx       context.Context
	keyPrefix string
	ttl       time.Duration
}

// NewRedisPositionRepository создаёт репозиторий и проверяет подключение
func NewRedisPositionRepository(config *RedisConfig) (*RedisPositionRepository, error) {
	if config == nil {
		config = DefaultRedisConfig()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("не удалось подключиться к Redis: %w", err)
	}

	return &RedisPositionRepository{
		client:    client,
		ctx:       ctx,
		keyPrefix: config.KeyPrefix,
		ttl:       config.TTL,
	}, nil
}

// SavePosition сохраняет позицию игрока с TTL
func (r *RedisPositionRepository) SavePosition(pos *PlayerPosition) error {
	copied := *pos
	copied.UpdatedAt = time.Now()

	data, err := json.Marshal(&copied)
	if err != nil {
		return fmt.Errorf("ошибка сериализации позиции игрока %d: %w", pos.PlayerID, err)
	}
	if err := r.client.Set(r.ctx, r.key(pos.PlayerID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("ошибка записи позиции в Redis: %w", err)
	}
	return nil
}

// LoadPosition возвращает позицию игрока или nil, если запись истекла
func (r *RedisPositionRepository) LoadPosition(playerID uint64) (*PlayerPosition, error) {
	data, err := r.client.Get(r.ctx, r.key(playerID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения позиции из Redis: %w", err)
	}

	var pos PlayerPosition
	if err := json.Unmarshal(data, &pos); err != nil {
		return nil, fmt.Errorf("ошибка десериализации позиции игрока %d: %w", playerID, err)
	}
	return &pos, nil
}

// RemovePosition удаляет позицию игрока
func (r *RedisPositionRepository) RemovePosition(playerID uint64) error {
	if err := r.client.Del(r.ctx, r.key(playerID)).Err(); err != nil {
		return fmt.Errorf("ошибка удаления позиции из Redis: %w", err)
	}
	return nil
}

// Close закрывает подключение к Redis
func (r *RedisPositionRepository) Close() error {
	return r.client.Close()
}

func (r *RedisPositionRepository) key(playerID uint64) string {
	return fmt.Sprintf("%s%d", r.keyPrefix, playerID)
}
