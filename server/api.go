package server

import (
	"embed"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/cyclopcam/staticfiles"
	"github.com/cyclopcam/www"
	"github.com/go-chi/httprate"
	"github.com/julienschmidt/httprouter"
)

//go:embed www
var staticWWW embed.FS

func (s *Server) setupHttpRoutes() error {
	router := httprouter.New()

	handle := func(method, route string, h httprouter.Handle) {
		www.Handle(s.Log, router, method, route, h)
	}

	// predict routes can be rate limited per IP, if configured
	predict := func(route string, h httprouter.Handle) {
		if s.config.RateLimit.Requests <= 0 {
			handle("POST", route, h)
			return
		}
		window := time.Duration(s.config.RateLimit.WindowSeconds) * time.Second
		limited := httprate.Limit(s.config.RateLimit.Requests, window, httprate.WithKeyFuncs(httprate.KeyByIP))
		handle("POST", route, func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
			limited(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				h(w, r, params)
			})).ServeHTTP(w, r)
		})
	}

	predict("/predict-image", s.predictPipeline("image", FailurePropagate))
	predict("/predict-frame", s.predictPipeline("frame", FailureDegrade))

	handle("GET", "/api/ping", s.httpPing)
	handle("GET", "/api/model", s.httpModel)
	handle("GET", "/api/stats", s.httpStats)
	handle("POST", "/api/stats/reset", s.httpStatsReset)
	handle("GET", "/ws/frames", s.httpFrames)

	isImmutable := true
	var fsys fs.FS
	fsysRoot := "www"
	fsys = staticWWW
	if s.HotReloadWWW {
		relRoot := "server/www"
		absRoot, err := filepath.Abs(relRoot)
		if err != nil {
			s.Log.Errorf("Failed to resolve static file directory %v: %v", relRoot, err)
			return errors.New("Failed to resolve static file directory for hot reload")
		}
		s.Log.Infof("Serving static files from %v, with hot reload", absRoot)
		fsys = os.DirFS(absRoot)
		fsysRoot = ""
		isImmutable = false
	}

	static, err := staticfiles.NewCachedStaticFileServer(fsys, fsysRoot, []string{"/api/", "/ws/", "/predict-"}, s.Log, isImmutable, nil)
	if err != nil {
		return err
	}
	router.NotFound = static

	s.httpRouter = router
	return nil
}
