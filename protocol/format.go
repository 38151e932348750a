package protocol

import (
	"github.com/vconn/obdlink/canbus"
	"github.com/vconn/obdlink/config"
	"github.com/vconn/obdlink/hexcodec"
)

// formatCanLine builds the ASCII host line for one physical CAN frame's
// payload: with PAR_HEADER_SHOW set it is prefixed with the frame's
// identifier (hexcodec.CanIDToHex), matching isocan.cpp/j1939.cpp's
// formatReplyWithHeader; otherwise it is the hex payload alone, matching
// the plain processFrame/processNextFrame/processDtFrame path.
func formatCanLine(store *config.Store, msg canbus.CanMsgBuffer, payload []byte) string {
	spacer := config.NewSpacer(store)
	if store.GetBool(config.ParHeaderShow) {
		b := []byte(hexcodec.CanIDToHex(msg.ID, msg.Extended, spacer))
		b = hexcodec.AppendHex(b, payload, spacer)
		return string(b)
	}
	return hexcodec.BytesToHex(payload, spacer.IsSpaces())
}
