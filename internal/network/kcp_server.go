package network

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/xtaci/kcp-go/v5"

	"github.com/Foghrye4/CubicChunks/internal/logging"
)

// SessionHandlers — колбэки жизненного цикла клиентской сессии.
// Вызываются из горутин сервера; реализация отвечает за синхронизацию.
type SessionHandlers struct {
	OnConnect    func(playerID uint64)
	OnDisconnect func(playerID uint64)
}

// KCPServer принимает входящие KCP-сессии и привязывает их к транспорту.
// Первый кадр сессии — hello: 8 байт идентификатора игрока (big-endian).
type KCPServer struct {
	addr      string
	transport *KCPTransport
	handlers  SessionHandlers
	logger    *logging.Logger

	listener *kcp.Listener
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewKCPServer создаёт сервер, слушающий addr
func NewKCPServer(addr string, transport *KCPTransport, handlers SessionHandlers) *KCPServer {
	ctx, cancel := context.WithCancel(context.Background())
	return &KCPServer{
		addr:      addr,
		transport: transport,
		handlers:  handlers,
		logger:    logging.GetNetworkLogger(),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start начинает принимать подключения. Неблокирующий.
func (s *KCPServer) Start() error {
	listener, err := kcp.ListenWithOptions(s.addr, nil, 10, 3)
	if err != nil {
		return fmt.Errorf("не удалось открыть KCP listener на %s: %w", s.addr, err)
	}
	s.listener = listener
	s.logger.Info("KCP сервер слушает %s", s.addr)

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Stop останавливает сервер и дожидается горутин
func (s *KCPServer) Stop() error {
	s.cancel()
	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	s.wg.Wait()
	return err
}

func (s *KCPServer) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.AcceptKCP()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
				s.logger.Warn("Ошибка приёма KCP сессии: %v", err)
				continue
			}
		}

		// Параметры из кадра настройки KCP: быстрый режим без задержки Nagle
		conn.SetNoDelay(1, 10, 2, 1)
		conn.SetStreamMode(true)

		s.wg.Add(1)
		go s.handleSession(conn)
	}
}

// handleSession читает hello, регистрирует игрока и держит сессию до
// разрыва. Клиент ничего не шлёт после hello: канал используется только
// для доставки мира, управление идёт по основному игровому протоколу.
func (s *KCPServer) handleSession(conn *kcp.UDPSession) {
	defer s.wg.Done()

	var hello [8]byte
	if _, err := io.ReadFull(conn, hello[:]); err != nil {
		s.logger.Warn("Сессия %s закрыта до hello: %v", conn.RemoteAddr(), err)
		_ = conn.Close()
		return
	}
	playerID := binary.BigEndian.Uint64(hello[:])

	s.transport.Bind(playerID, conn)
	s.logger.Info("Игрок %d подключён с %s", playerID, conn.RemoteAddr())
	if s.handlers.OnConnect != nil {
		s.handlers.OnConnect(playerID)
	}

	// Блокируемся до разрыва сессии
	var drain [1]byte
	for {
		if _, err := conn.Read(drain[:]); err != nil {
			break
		}
	}

	s.transport.Unbind(playerID)
	s.logger.Info("Игрок %d отключён", playerID)
	if s.handlers.OnDisconnect != nil {
		s.handlers.OnDisconnect(playerID)
	}
}
