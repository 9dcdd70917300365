package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"officegame/protocol"
)

// startTestServer 起一个真实的 HTTP+WS 在场服务，返回 ws 地址
func startTestServer(t *testing.T) string {
	t.Helper()
	cfg := DefaultConfig()
	reg := NewRegistry(cfg)
	stop := make(chan struct{})
	go reg.Run(stop)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", HandleWS(reg, cfg))
	ts := httptest.NewServer(mux)

	t.Cleanup(func() {
		close(stop)
		ts.Close()
	})
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func dialTest(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("拨号失败: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("序列化失败: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		t.Fatalf("写失败: %v", err)
	}
}

// readFrame 读一帧并解出 type，5 秒兜底超时
func readFrame(t *testing.T, conn *websocket.Conn) (string, []byte) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("读失败: %v", err)
	}
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("帧无法解析: %v", err)
	}
	return env.Type, data
}

// 双人入场场景：A 先进厨房，B 后进。B 拿到含 A 的快照，A 收到 B 的 joined。
func TestTwoPlayerJoinOverRealSockets(t *testing.T) {
	url := startTestServer(t)

	connA := dialTest(t, url)
	sendJSON(t, connA, protocol.Join{Type: protocol.TypeJoin, Name: "Alice", Sprite: "player", X: 100, Y: 360, Location: "kitchen"})
	typ, data := readFrame(t, connA)
	if typ != protocol.TypeSnapshot {
		t.Fatalf("A 首帧应为 snapshot, got %s", typ)
	}
	var snapA protocol.Snapshot
	_ = json.Unmarshal(data, &snapA)
	if len(snapA.Players) != 0 {
		t.Fatalf("A 的快照应为空, got %d", len(snapA.Players))
	}

	connB := dialTest(t, url)
	sendJSON(t, connB, protocol.Join{Type: protocol.TypeJoin, Name: "Bob", Sprite: "player", X: 120, Y: 360, Location: "kitchen"})
	typ, data = readFrame(t, connB)
	if typ != protocol.TypeSnapshot {
		t.Fatalf("B 首帧应为 snapshot, got %s", typ)
	}
	var snapB protocol.Snapshot
	_ = json.Unmarshal(data, &snapB)
	if len(snapB.Players) != 1 || snapB.Players[0].Name != "Alice" || snapB.Players[0].ID != snapA.ID {
		t.Fatalf("B 的快照应只含 Alice: %+v", snapB.Players)
	}

	typ, data = readFrame(t, connA)
	if typ != protocol.TypeJoined {
		t.Fatalf("A 应收到 joined, got %s", typ)
	}
	var joined protocol.Joined
	_ = json.Unmarshal(data, &joined)
	if joined.Name != "Bob" || joined.ID != snapB.ID {
		t.Fatalf("joined 载荷不对: %+v", joined)
	}

	// B 动一下，A 收到 moved；B 自己收不到
	sendJSON(t, connB, protocol.Move{Type: protocol.TypeMove, X: 130, Y: 350})
	typ, data = readFrame(t, connA)
	if typ != protocol.TypeMoved {
		t.Fatalf("A 应收到 moved, got %s", typ)
	}
	var moved protocol.Moved
	_ = json.Unmarshal(data, &moved)
	if moved.ID != snapB.ID || moved.X != 130 || moved.Y != 350 {
		t.Fatalf("moved 载荷不对: %+v", moved)
	}

	// B 断开，A 收到 left
	connB.Close()
	typ, data = readFrame(t, connA)
	if typ != protocol.TypeLeft {
		t.Fatalf("A 应收到 left, got %s", typ)
	}
	var left protocol.Left
	_ = json.Unmarshal(data, &left)
	if left.ID != snapB.ID || left.Name != "Bob" {
		t.Fatalf("left 载荷不对: %+v", left)
	}
}

// 广播不按房间过滤：不同房间也能收到 moved，按 id 对上即可
func TestMovedBroadcastReachesOtherRooms(t *testing.T) {
	url := startTestServer(t)

	connA := dialTest(t, url)
	sendJSON(t, connA, protocol.Join{Type: protocol.TypeJoin, Name: "Alice", Sprite: "player", X: 0, Y: 0, Location: "open-space"})
	_, data := readFrame(t, connA)
	var snapA protocol.Snapshot
	_ = json.Unmarshal(data, &snapA)

	connB := dialTest(t, url)
	sendJSON(t, connB, protocol.Join{Type: protocol.TypeJoin, Name: "Bob", Sprite: "player", X: 0, Y: 0, Location: "kitchen"})
	_, _ = readFrame(t, connB) // B 的快照

	sendJSON(t, connA, protocol.Move{Type: protocol.TypeMove, X: 5, Y: 5})
	typ, data := readFrame(t, connB)
	if typ != protocol.TypeMoved {
		t.Fatalf("B 应收到未过滤的 moved, got %s", typ)
	}
	var moved protocol.Moved
	_ = json.Unmarshal(data, &moved)
	if moved.ID != snapA.ID {
		t.Fatalf("moved id 不对: %+v", moved)
	}
}
