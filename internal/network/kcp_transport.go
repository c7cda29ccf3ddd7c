package network

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/xtaci/kcp-go/v5"

	"github.com/Foghrye4/CubicChunks/internal/logging"
	"github.com/Foghrye4/CubicChunks/internal/world"
)

// Предельный размер кадра на проводе
const maxFrameSize = 16 * 1024 * 1024

// Таймаут записи кадра в сессию
const writeTimeout = 5 * time.Second

// KCPTransport доставляет батчи сообщений клиентам по KCP (надёжный UDP).
// Реализует world.Transport. Кадр на проводе: uint32 длина (big-endian) +
// zstd-сжатый JSON батча. Потокобезопасен.
type KCPTransport struct {
	logger   *logging.Logger
	mu       sync.RWMutex
	sessions map[uint64]*kcp.UDPSession
	encoder  *zstd.Encoder
}

// NewKCPTransport создаёт транспорт без привязанных сессий
func NewKCPTransport() (*KCPTransport, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("не удалось создать компрессор: %w", err)
	}
	return &KCPTransport{
		logger:   logging.GetNetworkLogger(),
		sessions: make(map[uint64]*kcp.UDPSession),
		encoder:  encoder,
	}, nil
}

// Bind привязывает сессию к игроку. Существующая сессия закрывается:
// клиент мог переподключиться с нового адреса.
func (t *KCPTransport) Bind(playerID uint64, conn *kcp.UDPSession) {
	t.mu.Lock()
	old, existed := t.sessions[playerID]
	t.sessions[playerID] = conn
	t.mu.Unlock()

	if existed && old != conn {
		_ = old.Close()
		t.logger.Info("Игрок %d переподключился, старая сессия закрыта", playerID)
	}
}

// Unbind отвязывает и закрывает сессию игрока
func (t *KCPTransport) Unbind(playerID uint64) {
	t.mu.Lock()
	conn, ok := t.sessions[playerID]
	delete(t.sessions, playerID)
	t.mu.Unlock()

	if ok {
		_ = conn.Close()
	}
}

// SendBatch отправляет игроку батч одним кадром
func (t *KCPTransport) SendBatch(playerID uint64, batch []world.CubeMessage) error {
	t.mu.RLock()
	conn, ok := t.sessions[playerID]
	t.mu.RUnlock()
	if !ok {
		return fmt.Errorf("нет сессии для игрока %d", playerID)
	}

	data, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("ошибка сериализации батча: %w", err)
	}
	compressed := t.encoder.EncodeAll(data, nil)

	frame := make([]byte, 4+len(compressed))
	binary.BigEndian.PutUint32(frame, uint32(len(compressed)))
	copy(frame[4:], compressed)

	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return fmt.Errorf("ошибка установки дедлайна записи: %w", err)
	}
	if _, err := conn.Write(frame); err != nil {
		return fmt.Errorf("ошибка записи кадра игроку %d: %w", playerID, err)
	}
	return nil
}

// ReadBatch читает из потока один кадр батча и распаковывает его.
// Используется клиентской стороной протокола.
func ReadBatch(r io.Reader, decoder *zstd.Decoder) ([]world.CubeMessage, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	size := binary.BigEndian.Uint32(lenBuf[:])
	if size == 0 || size > maxFrameSize {
		return nil, fmt.Errorf("недопустимый размер кадра: %d байт", size)
	}

	compressed := make([]byte, size)
	if _, err := io.ReadFull(r, compressed); err != nil {
		return nil, fmt.Errorf("ошибка чтения кадра: %w", err)
	}
	raw, err := decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("ошибка распаковки кадра: %w", err)
	}

	var batch []world.CubeMessage
	if err := json.Unmarshal(raw, &batch); err != nil {
		return nil, fmt.Errorf("ошибка десериализации батча: %w", err)
	}
	return batch, nil
}

// ActiveSessions возвращает число привязанных сессий
func (t *KCPTransport) ActiveSessions() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}

// Close закрывает все сессии
func (t *KCPTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, conn := range t.sessions {
		_ = conn.Close()
		delete(t.sessions, id)
	}
	return nil
}
