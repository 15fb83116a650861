package server

import (
	"net/http"
	"time"

	"github.com/cyclopcam/detectd/pkg/nn"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

// httpFrames is a live feed over a websocket.
// Each binary message from the client is one encoded frame (eg JPEG), and each reply is the
// JSON list of detections for that frame. Failures produce an empty list, as with /predict-frame.
func (s *Server) httpFrames(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	c, err := s.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Log.Errorf("httpFrames websocket upgrade failed: %v", err)
		return
	}
	defer c.Close()

	maxBytes := int64(s.config.MaxUploadMB) * 1024 * 1024
	c.SetReadLimit(maxBytes)
	timeout := time.Duration(s.config.FrameTimeout) * time.Second

	s.Log.Infof("httpFrames starting (%v)", r.RemoteAddr)
	nFrames := 0
	for {
		if timeout > 0 {
			c.SetReadDeadline(time.Now().Add(timeout))
		}
		msgType, data, err := c.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.Log.Infof("httpFrames read error: %v", err)
			}
			break
		}
		if msgType != websocket.BinaryMessage {
			s.Log.Infof("httpFrames ignoring non-binary message from client")
			continue
		}
		records, err := s.service.InferBytes(data, s.params)
		if err != nil {
			s.Log.Warnf("httpFrames: %v", err)
			records = []nn.DetectionRecord{}
		}
		if err := c.WriteJSON(records); err != nil {
			s.Log.Infof("httpFrames write error: %v", err)
			break
		}
		nFrames++
	}
	s.Log.Infof("httpFrames finished after %v frames", nFrames)
}
