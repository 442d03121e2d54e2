package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/matzehuels/trajgroups/pkg/buildinfo"
	"github.com/matzehuels/trajgroups/pkg/dataset"
	trajerr "github.com/matzehuels/trajgroups/pkg/errors"
	"github.com/matzehuels/trajgroups/pkg/pipeline"
)

// DatasetInfo describes a registered dataset.
type DatasetInfo struct {
	Name       string `json:"name"`
	Entities   int    `json:"entities"`
	Frames     int    `json:"frames"`
	FirstFrame int    `json:"first_frame"`
	Hash       string `json:"hash"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": buildinfo.Version,
		"session": s.sess.ID,
	})
}

func (s *Server) listDatasets(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string][]string{"datasets": s.sess.Datasets()})
}

func (s *Server) uploadDataset(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	body := http.MaxBytesReader(w, r.Body, s.opts.MaxUpload)
	ds, err := dataset.Load(body, name)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, r, trajerr.Wrap(trajerr.ErrCodeInvalidInput, err, "dataset exceeds %d bytes", s.opts.MaxUpload))
			return
		}
		respondError(w, r, err)
		return
	}
	s.sess.PutDataset(ds)
	s.logger.Info("registered dataset", "name", name, "entities", ds.Entities(), "frames", ds.Frames())

	respondJSON(w, http.StatusCreated, DatasetInfo{
		Name:       ds.Name,
		Entities:   ds.Entities(),
		Frames:     ds.Frames(),
		FirstFrame: ds.First,
		Hash:       ds.Hash(),
	})
}

func (s *Server) startRun(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var opts pipeline.Options
	dec := json.NewDecoder(io.LimitReader(r.Body, maxOptionsBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&opts); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, r, trajerr.Wrap(trajerr.ErrCodeInvalidInput, err, "decode options"))
		return
	}

	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))
	if wait {
		run, err := s.sess.Execute(r.Context(), name, opts)
		if run == nil {
			respondError(w, r, err)
			return
		}
		// A failed run is still a completed request; the record carries
		// the error.
		respondJSON(w, http.StatusOK, run)
		return
	}

	run, err := s.sess.Start(r.Context(), name, opts)
	if err != nil {
		respondError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/runs/"+run.ID)
	respondJSON(w, http.StatusAccepted, run)
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.sess.Run(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, run)
}
