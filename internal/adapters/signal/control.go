package signal

import (
	"time"

	"github.com/dkeye/roomrelay/internal/core"
)

func (ctl *SignalWSController) handlePing(sess core.MemberSession) {
	ctl.sendJSON(sess, EventPong, struct {
		Time int64 `json:"time"`
	}{
		Time: time.Now().UnixMilli(),
	})
}
