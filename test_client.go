package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/xtaci/kcp-go/v5"

	"github.com/Foghrye4/CubicChunks/internal/network"
	"github.com/Foghrye4/CubicChunks/internal/vec"
	"github.com/Foghrye4/CubicChunks/internal/world"
)

// Тестовый клиент: подключается к серверу, отправляет hello и печатает
// сводку по принятому потоку кубов. Нужен для проверки протокола без
// игрового клиента.
func main() {
	addr := flag.String("addr", "localhost:7777", "адрес игрового сервера")
	playerID := flag.Uint64("player", 1, "идентификатор игрока")
	duration := flag.Duration("duration", 30*time.Second, "длительность приёма")
	flag.Parse()

	fmt.Println("=== ТЕСТОВЫЙ КЛИЕНТ ПОТОКА КУБОВ ===")

	conn, err := kcp.DialWithOptions(*addr, nil, 10, 3)
	if err != nil {
		log.Fatalf("Ошибка подключения к %s: %v", *addr, err)
	}
	defer conn.Close()
	conn.SetNoDelay(1, 10, 2, 1)
	conn.SetStreamMode(true)

	fmt.Printf("✅ Подключен к %s как игрок %d\n", *addr, *playerID)

	var hello [8]byte
	binary.BigEndian.PutUint64(hello[:], *playerID)
	if _, err := conn.Write(hello[:]); err != nil {
		log.Fatalf("Ошибка отправки hello: %v", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		log.Fatalf("Ошибка создания декомпрессора: %v", err)
	}
	serializer, err := network.NewZstdSerializer()
	if err != nil {
		log.Fatalf("Ошибка создания сериализатора: %v", err)
	}

	cubes := make(map[vec.Vec3]*world.Cube)
	columns := make(map[vec.Vec2]*world.Column)
	var fullCount, deltaCount, columnCount, badCount int

	deadline := time.Now().Add(*duration)
	for time.Now().Before(deadline) {
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		batch, err := network.ReadBatch(conn, decoder)
		if err != nil {
			fmt.Printf("❌ Приём остановлен: %v\n", err)
			break
		}

		for _, msg := range batch {
			switch msg.Kind {
			case world.MessageCubeFull:
				cube, err := serializer.DecodeCube(msg.Payload)
				if err != nil {
					badCount++
					continue
				}
				cubes[cube.Coords] = cube
				fullCount++
			case world.MessageCubeDeltas:
				cube, ok := cubes[vec.Vec3{X: msg.X, Y: msg.Y, Z: msg.Z}]
				if !ok {
					// Изменения до полного куба: сервер так не шлёт
					badCount++
					continue
				}
				if err := serializer.ApplyBlockDeltas(cube, msg.Payload); err != nil {
					badCount++
					continue
				}
				deltaCount++
			case world.MessageColumn:
				column, err := serializer.DecodeColumn(msg.Payload)
				if err != nil {
					badCount++
					continue
				}
				columns[column.Coords] = column
				columnCount++
			default:
				badCount++
			}
		}

		fmt.Printf("📥 Батч из %d сообщений: кубов %d, колонок %d\n",
			len(batch), len(cubes), len(columns))
	}

	fmt.Println("\n=== ИТОГ ===")
	fmt.Printf("Полных кубов: %d, пакетов изменений: %d, колонок: %d\n",
		fullCount, deltaCount, columnCount)
	if badCount > 0 {
		fmt.Printf("❌ Некорректных сообщений: %d\n", badCount)
	} else {
		fmt.Println("✅ Все сообщения декодированы")
	}
}
