package protocol

// 客户端与服务端共享的线上协议。所有消息都是一条 JSON 文本帧，
// 统一携带 type 字段做分发，载荷字段平铺（与前端约定，避免嵌套 payload）。
const (
	// 客户端 → 服务端
	TypeJoin     = "join"
	TypeMove     = "move"
	TypeLocation = "location"
	TypeUpdate   = "update"

	// 服务端 → 客户端
	TypeSnapshot        = "snapshot"
	TypeJoined          = "joined"
	TypeMoved           = "moved"
	TypeLocationChanged = "location_changed"
	TypeUpdated         = "updated"
	TypeLeft            = "left"
	TypeError           = "error"
)

// Envelope 只解出 type，用于第一次分发
type Envelope struct {
	Type string `json:"type"`
}

// Player 对外可见的玩家公开字段。lastSeen 与底层连接句柄永不出现在线上。
type Player struct {
	ID          string  `json:"id" jsonschema:"description=连接层分配的唯一标识"`
	Name        string  `json:"name"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Location    string  `json:"location" jsonschema:"description=当前所在房间 id"`
	Sprite      string  `json:"sprite" jsonschema:"description=远端渲染外观"`
	CareerPath  string  `json:"careerPath,omitempty"`
	CareerLevel string  `json:"careerLevel,omitempty"`
}

// Join 入场请求（建连后的第一条消息）
type Join struct {
	Type        string  `json:"type"`
	Name        string  `json:"name"`
	Sprite      string  `json:"sprite"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Location    string  `json:"location"`
	CareerPath  string  `json:"careerPath,omitempty"`
	CareerLevel string  `json:"careerLevel,omitempty"`
}

// Move 位置上报，50ms 节流后发送
type Move struct {
	Type string  `json:"type"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// Location 房间切换上报
type Location struct {
	Type     string `json:"type"`
	Location string `json:"location"`
}

// Update 公开字段的部分更新。指针字段区分“未携带”与“显式清空”。
type Update struct {
	Type        string   `json:"type"`
	X           *float64 `json:"x,omitempty"`
	Y           *float64 `json:"y,omitempty"`
	Location    *string  `json:"location,omitempty"`
	CareerPath  *string  `json:"careerPath,omitempty"`
	CareerLevel *string  `json:"careerLevel,omitempty"`
}

// Snapshot 仅发给新入场者：自己的连接 id + 其余在线玩家全量
type Snapshot struct {
	Type    string   `json:"type"`
	ID      string   `json:"id" jsonschema:"description=接收方自己的连接 id"`
	Players []Player `json:"players"`
}

// Joined 新玩家入场广播（发给其他人）
type Joined struct {
	Type string `json:"type"`
	Player
}

// Moved 位置增量广播，只带 id 与坐标
type Moved struct {
	Type string  `json:"type"`
	ID   string  `json:"id"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// LocationChanged 房间切换广播。接收方据此销毁对应代理，
// 协议不会另行通知目的房间“有人进来了”。
type LocationChanged struct {
	Type     string `json:"type"`
	ID       string `json:"id"`
	Location string `json:"location"`
}

// Updated 部分更新后的全量公开记录广播
type Updated struct {
	Type string `json:"type"`
	Player
}

// Left 离场广播（显式断开或超时剔除）
type Left struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Error 服务端错误回执（目前只用于容量拒绝）
type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
