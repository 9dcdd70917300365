package client

import (
	"sync"

	"officegame/protocol"
)

// lerpFactor 每帧向目标位置靠近的固定比例
const lerpFactor = 0.15

// RemotePlayer 远端玩家在本地的代理：渲染位置每帧朝权威目标插值，
// 网络到帧不要求一一对应。代理只有“存在/不存在”两态，
// 离场即销毁，重入再新建，不保留旧的插值状态。
type RemotePlayer struct {
	mu sync.Mutex

	id          string
	name        string
	careerLevel string

	x, y             float64 // 当前渲染位置，只被 Step 改写
	targetX, targetY float64 // 最新权威位置，只被入站消息改写
}

func newRemotePlayer(info protocol.Player) *RemotePlayer {
	return &RemotePlayer{
		id:          info.ID,
		name:        info.Name,
		careerLevel: info.CareerLevel,
		x:           info.X,
		y:           info.Y,
		targetX:     info.X,
		targetY:     info.Y,
	}
}

func (p *RemotePlayer) ID() string { return p.id }

func (p *RemotePlayer) Name() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.name
}

func (p *RemotePlayer) CareerLevel() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.careerLevel
}

// Position 当前渲染位置
func (p *RemotePlayer) Position() (x, y float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.x, p.y
}

// Target 最新权威位置
func (p *RemotePlayer) Target() (x, y float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.targetX, p.targetY
}

// setTarget 入站 moved 只改目标，渲染位置留给 Step 追赶
func (p *RemotePlayer) setTarget(x, y float64) {
	p.mu.Lock()
	p.targetX, p.targetY = x, y
	p.mu.Unlock()
}

// applyUpdate 元数据直接覆盖，不做插值；坐标仍走目标位置
func (p *RemotePlayer) applyUpdate(info protocol.Player) {
	p.mu.Lock()
	p.name = info.Name
	p.careerLevel = info.CareerLevel
	p.targetX, p.targetY = info.X, info.Y
	p.mu.Unlock()
}

// Step 每个渲染帧调用一次：按固定比例朝目标衰减，
// 不会过冲，目标不动时渐近收敛
func (p *RemotePlayer) Step() {
	p.mu.Lock()
	p.x += (p.targetX - p.x) * lerpFactor
	p.y += (p.targetY - p.y) * lerpFactor
	p.mu.Unlock()
}
