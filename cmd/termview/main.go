package main

import (
	"flag"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/nsf/termbox-go"

	"officegame/client"
	"officegame/protocol"
)

// 终端旁观端：以普通玩家身份接入某个房间，在终端里实时画出
// 房间内其他玩家的插值位置，直观看到平滑效果。
// Esc / q 退出。
func main() {
	var (
		serverURL string
		name      string
		room      string
	)
	flag.StringVar(&serverURL, "server", "ws://localhost:3001/ws", "presence server ws url")
	flag.StringVar(&name, "name", "observer", "display name")
	flag.StringVar(&room, "room", "open-space", "room to watch")
	flag.Parse()

	view := &view{status: "connecting..."}
	m := client.NewManager(serverURL, view, nil)
	if err := m.Connect(name, "player", room, 400, 300); err != nil {
		fmt.Fprintf(os.Stderr, "接入失败: %v\n", err)
		os.Exit(1)
	}
	defer m.Disconnect()

	if err := termbox.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "终端初始化失败: %v\n", err)
		os.Exit(1)
	}
	defer termbox.Close()

	quit := make(chan struct{})
	go func() {
		for {
			switch ev := termbox.PollEvent(); ev.Type {
			case termbox.EventKey:
				if ev.Key == termbox.KeyEsc || ev.Ch == 'q' {
					close(quit)
					return
				}
			case termbox.EventError:
				close(quit)
				return
			}
		}
	}()

	ticker := time.NewTicker(50 * time.Millisecond) // 20fps 足够看清插值
	defer ticker.Stop()
	for {
		select {
		case <-quit:
			return
		case <-ticker.C:
			m.StepAll()
			draw(m, room, view.line())
		}
	}
}

// view 订阅在场事件，拼到状态行里。回调来自读循环协程，加锁即可。
type view struct {
	client.NopEvents
	mu     sync.Mutex
	status string
}

func (v *view) set(s string) {
	v.mu.Lock()
	v.status = s
	v.mu.Unlock()
}

func (v *view) Connected(playerID string)      { v.set("connected as " + playerID) }
func (v *view) RemoteJoined(p protocol.Player) { v.set(p.Name + " joined") }
func (v *view) RemoteLeft(id, name string)     { v.set(name + " left") }
func (v *view) Error(message string)           { v.set("error: " + message) }
func (v *view) Disconnected()                  { v.set("disconnected") }

func (v *view) line() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.status
}

// draw 把 800x600 的房间坐标系缩放到终端网格
func draw(m *client.Manager, room, status string) {
	_ = termbox.Clear(termbox.ColorDefault, termbox.ColorDefault)
	w, h := termbox.Size()
	if h < 3 {
		_ = termbox.Flush()
		return
	}

	drawText(0, 0, fmt.Sprintf("room=%s players=%d  %s", room, len(m.Players()), status), termbox.ColorYellow)

	for _, p := range m.Players() {
		x, y := p.Position()
		cx := int(x / 800 * float64(w-1))
		cy := 1 + int(y/600*float64(h-2))
		if cx < 0 || cx >= w || cy < 1 || cy >= h {
			continue
		}
		termbox.SetCell(cx, cy, '@', termbox.ColorGreen, termbox.ColorDefault)
		label := p.Name()
		if lw := runewidth.StringWidth(label); cx+1+lw < w {
			drawText(cx+1, cy, label, termbox.ColorWhite)
		}
	}
	_ = termbox.Flush()
}

func drawText(x, y int, s string, fg termbox.Attribute) {
	for _, r := range s {
		termbox.SetCell(x, y, r, fg, termbox.ColorDefault)
		x += runewidth.RuneWidth(r)
	}
}
