package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/cyclopcam/detectd/pkg/nn"
	"github.com/cyclopcam/www"
	"github.com/julienschmidt/httprouter"
)

// FailurePolicy decides what a predict route does when it cannot produce detections
type FailurePolicy int

const (
	// FailurePropagate reports the failure to the client, with a 4xx or 5xx status and a JSON error body
	FailurePropagate FailurePolicy = iota
	// FailureDegrade logs the failure, and responds with 200 and an empty list
	FailureDegrade
)

const (
	msgNoImage       = "No image uploaded"
	msgEmptyFilename = "Empty filename"
)

// uploadError is a failure to extract the image from the request
type uploadError struct {
	code    int
	message string
}

func (e *uploadError) Error() string {
	return e.message
}

type errorJSON struct {
	Error string `json:"error"`
}

// sendJSONError sends {"error": message} with the given status code
func sendJSONError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	b, _ := json.Marshal(errorJSON{Error: message})
	w.Write(b)
}

// readUpload returns the content of the file part named field, from a multipart/form-data request.
// A part without a filename parameter is not a file, so it counts as missing.
func readUpload(w http.ResponseWriter, r *http.Request, field string, maxBytes int64) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, &uploadError{http.StatusBadRequest, msgNoImage}
	}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return nil, &uploadError{http.StatusBadRequest, msgNoImage}
		}
		if err != nil {
			return nil, uploadReadError(err)
		}
		if part.FormName() != field {
			part.Close()
			continue
		}
		_, dispParams, _ := mime.ParseMediaType(part.Header.Get("Content-Disposition"))
		filename, isFile := dispParams["filename"]
		if !isFile {
			part.Close()
			continue
		}
		if filename == "" {
			return nil, &uploadError{http.StatusBadRequest, msgEmptyFilename}
		}
		data, err := io.ReadAll(part)
		part.Close()
		if err != nil {
			return nil, uploadReadError(err)
		}
		return data, nil
	}
}

func uploadReadError(err error) error {
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		return &uploadError{http.StatusRequestEntityTooLarge, fmt.Sprintf("Upload exceeds %v bytes", tooBig.Limit)}
	}
	return &uploadError{http.StatusBadRequest, msgNoImage}
}

// detectUpload runs the whole pipeline for one request: extract, decode, infer, normalize
func (s *Server) detectUpload(w http.ResponseWriter, r *http.Request, field string) ([]nn.DetectionRecord, int, error) {
	maxBytes := int64(s.config.MaxUploadMB) * 1024 * 1024
	data, err := readUpload(w, r, field, maxBytes)
	if err != nil {
		var uerr *uploadError
		if errors.As(err, &uerr) {
			return nil, uerr.code, err
		}
		return nil, http.StatusBadRequest, err
	}
	records, err := s.service.InferBytes(data, s.params)
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}
	return records, http.StatusOK, nil
}

// predictPipeline builds the handler of a predict route
func (s *Server) predictPipeline(field string, policy FailurePolicy) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
		start := time.Now()
		records, code, err := s.detectUpload(w, r, field)
		if err != nil {
			switch policy {
			case FailureDegrade:
				s.Log.Warnf("%v: %v", r.URL.Path, err)
				www.SendJSON(w, []nn.DetectionRecord{})
			default:
				if code >= 500 {
					s.Log.Errorf("%v: %v", r.URL.Path, err)
				} else {
					s.Log.Infof("%v: %v", r.URL.Path, err)
				}
				sendJSONError(w, code, err.Error())
			}
			return
		}
		if s.config.LogRequests {
			s.Log.Infof("%v: %v detections in %v", r.URL.Path, len(records), time.Since(start))
		}
		www.SendJSON(w, records)
	}
}
