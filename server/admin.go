package server

import (
	"encoding/json"
	"net/http"
	"time"
)

// HandleAdminConfig 提供在场服务配置的读取与热更新
// GET /admin/config   返回当前生效配置
// POST /admin/config  以 JSON 载荷更新部分字段（指针字段，省略即不改）
func HandleAdminConfig(reg *Registry) http.HandlerFunc {
	type cfg struct {
		MaxPlayers       *int `json:"maxPlayers,omitempty"`
		PlayerTimeoutSec *int `json:"playerTimeoutSec,omitempty"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			cur := reg.ConfigSnapshot()
			maxPlayers := cur.MaxPlayers
			timeoutSec := int(cur.PlayerTimeout / time.Second)
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(cfg{MaxPlayers: &maxPlayers, PlayerTimeoutSec: &timeoutSec})
			return
		case http.MethodPost:
			var body cfg
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				http.Error(w, "invalid json", http.StatusBadRequest)
				return
			}
			if body.MaxPlayers != nil && *body.MaxPlayers <= 0 {
				http.Error(w, "maxPlayers must be positive", http.StatusBadRequest)
				return
			}
			if body.PlayerTimeoutSec != nil && *body.PlayerTimeoutSec <= 0 {
				http.Error(w, "playerTimeoutSec must be positive", http.StatusBadRequest)
				return
			}
			var timeout *time.Duration
			if body.PlayerTimeoutSec != nil {
				d := time.Duration(*body.PlayerTimeoutSec) * time.Second
				timeout = &d
			}
			// 清扫周期启动时已定，这里只热更新容量与超时阈值
			reg.ApplyConfig(body.MaxPlayers, timeout)
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
			Log.Infof("配置已更新: maxPlayers=%v playerTimeoutSec=%v", body.MaxPlayers, body.PlayerTimeoutSec)
			return
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
	}
}
