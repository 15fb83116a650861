package server

import (
	"net/http"

	"github.com/cyclopcam/detectd/pkg/nn"
	"github.com/cyclopcam/www"
	"github.com/julienschmidt/httprouter"
)

func (s *Server) httpPing(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	type pingJSON struct {
		OK bool `json:"ok"`
	}
	www.SendJSON(w, &pingJSON{OK: true})
}

type modelJSON struct {
	Architecture string             `json:"architecture"`
	Width        int                `json:"width"`
	Height       int                `json:"height"`
	Classes      []string           `json:"classes"`
	Weights      string             `json:"weights"`
	Device       nn.Device          `json:"device"`
	Detection    nn.DetectionParams `json:"detection"`
}

// deviceReporter is implemented by detectors that know which device they ended up on
type deviceReporter interface {
	Device() nn.Device
}

func (s *Server) httpModel(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	model := s.service.Model()
	cfg := model.Config()
	device := s.config.Device
	if dr, ok := model.(deviceReporter); ok {
		device = dr.Device()
	}
	www.SendJSON(w, &modelJSON{
		Architecture: cfg.Architecture,
		Width:        cfg.Width,
		Height:       cfg.Height,
		Classes:      cfg.Classes,
		Weights:      s.config.Weights,
		Device:       device,
		Detection:    *s.params,
	})
}

// httpStats reports how long decoding and detection have taken so far
func (s *Server) httpStats(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	www.SendJSON(w, s.service.Stats.Snapshot())
}

func (s *Server) httpStatsReset(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	s.service.Stats.Reset()
	www.SendOK(w)
}
