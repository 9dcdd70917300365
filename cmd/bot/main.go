package main

import (
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"officegame/client"
)

// 压测/陪玩机器人：按给定数量接入在场服务，在房间内随机游走。
// 用法示例：bot -server ws://localhost:3001/ws -n 5 -room open-space
func main() {
	var (
		serverURL string
		name      string
		room      string
		count     int
	)
	flag.StringVar(&serverURL, "server", "ws://localhost:3001/ws", "presence server ws url")
	flag.StringVar(&name, "name", "bot", "bot name prefix")
	flag.StringVar(&room, "room", "open-space", "starting room id")
	flag.IntVar(&count, "n", 1, "number of bots")
	flag.Parse()

	rooms := []string{"open-space", "kitchen", "meeting-room"}

	stop := make(chan struct{})
	for i := 0; i < count; i++ {
		go runBot(fmt.Sprintf("%s-%d", name, i+1), serverURL, room, rooms, stop)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	close(stop)
	// 给各机器人一点时间发完断开
	time.Sleep(200 * time.Millisecond)
}

// runBot 单个机器人：随机选路点匀速走过去，偶尔换房间
func runBot(name, serverURL, room string, rooms []string, stop <-chan struct{}) {
	m := client.NewManager(serverURL, nil, nil)
	defer m.Disconnect()

	x, y := 100+rand.Float64()*600, 100+rand.Float64()*400
	if err := m.Connect(name, "player", room, x, y); err != nil {
		fmt.Fprintf(os.Stderr, "%s: 接入失败: %v\n", name, err)
		return
	}

	targetX, targetY := x, y
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	repick := time.NewTicker(3 * time.Second)
	defer repick.Stop()
	relocate := time.NewTicker(45 * time.Second)
	defer relocate.Stop()

	const speed = 8.0 // 每 tick 前进的像素
	for {
		select {
		case <-stop:
			return
		case <-repick.C:
			targetX, targetY = 100+rand.Float64()*600, 100+rand.Float64()*400
		case <-relocate.C:
			room = rooms[rand.Intn(len(rooms))]
			m.SendLocationChange(room)
		case <-ticker.C:
			dx, dy := targetX-x, targetY-y
			if dist := math.Hypot(dx, dy); dist > speed {
				dx, dy = dx/dist*speed, dy/dist*speed
			}
			x += dx
			y += dy
			m.SendPosition(x, y)
		}
	}
}
