package client

import (
	"math"
	"testing"

	"officegame/protocol"
)

func TestStepConvergesMonotonicallyWithoutOvershoot(t *testing.T) {
	p := newRemotePlayer(protocol.Player{ID: "a", Name: "Alice", X: 0, Y: 0})
	p.setTarget(100, 50)

	prev := math.Inf(1)
	for i := 0; i < 200; i++ {
		p.Step()
		x, y := p.Position()
		if x > 100 || y > 50 {
			t.Fatalf("第 %d 步过冲: (%v,%v)", i, x, y)
		}
		dist := math.Hypot(100-x, 50-y)
		if dist >= prev {
			t.Fatalf("第 %d 步距离未减小: %v >= %v", i, dist, prev)
		}
		prev = dist
	}
	if prev > 1e-6 {
		t.Fatalf("200 步后仍未收敛: 距离 %v", prev)
	}
}

func TestStepLeavesTargetUntouched(t *testing.T) {
	p := newRemotePlayer(protocol.Player{ID: "a", X: 0, Y: 0})
	p.setTarget(10, 20)
	p.Step()
	if tx, ty := p.Target(); tx != 10 || ty != 20 {
		t.Fatalf("Step 不应改动目标位置: (%v,%v)", tx, ty)
	}
	if x, _ := p.Position(); x != 10*lerpFactor {
		t.Fatalf("单步插值量不对: %v", x)
	}
}

func TestMetadataAppliedDirectly(t *testing.T) {
	p := newRemotePlayer(protocol.Player{ID: "a", Name: "Alice"})
	p.applyUpdate(protocol.Player{ID: "a", Name: "Alice Wang", CareerLevel: "Team Lead", X: 30, Y: 40})

	if p.Name() != "Alice Wang" || p.CareerLevel() != "Team Lead" {
		t.Fatal("元数据应立即生效，不做插值")
	}
	if x, y := p.Position(); x != 0 || y != 0 {
		t.Fatalf("元数据更新不应直接改渲染位置: (%v,%v)", x, y)
	}
	if tx, ty := p.Target(); tx != 30 || ty != 40 {
		t.Fatalf("坐标应落到目标位置: (%v,%v)", tx, ty)
	}
}
