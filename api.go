/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Seednode/partyquiz/games/packs"
	"github.com/Seednode/partyquiz/games/quiz"
	"github.com/julienschmidt/httprouter"
)

const maxPackSize = 4 << 20

type healthMessage struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
	TS      int64  `json:"ts"`
}

// packDocument is a pack as the editor sees it: its content plus its id.
type packDocument struct {
	ID string `json:"id"`
	quiz.PackContent
}

type savedMessage struct {
	OK bool   `json:"ok"`
	ID string `json:"id"`
}

type uploadMessage struct {
	Path string `json:"path"`
}

func serveAPIHealth(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		writeJSON(cfg, w, http.StatusOK, healthMessage{
			OK:      true,
			Message: "Server is reachable",
			TS:      time.Now().UnixMilli(),
		}, errs)
	}
}

func serveListPacks(cfg *Config, store *packs.Store, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		list, err := store.List(func(name string, err error) {
			cfg.logger.Warn().Err(err).Str("file", name).Msg("skipping unreadable pack")
		})
		if err != nil {
			writeError(cfg, w, http.StatusInternalServerError, err, errs)
			return
		}

		writeJSON(cfg, w, http.StatusOK, list, errs)
	}
}

func serveGetPack(cfg *Config, store *packs.Store, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		id := packs.SanitizeID(p.ByName("id"))
		if id == "" {
			writeError(cfg, w, http.StatusBadRequest, packs.ErrInvalidID, errs)
			return
		}

		content, err := store.LoadPack(id)
		switch {
		case errors.Is(err, packs.ErrNotFound):
			writeError(cfg, w, http.StatusNotFound, packs.ErrNotFound, errs)
		case err != nil:
			writeError(cfg, w, http.StatusInternalServerError, err, errs)
		default:
			writeJSON(cfg, w, http.StatusOK, packDocument{ID: id, PackContent: content}, errs)
		}
	}
}

func serveSavePack(cfg *Config, store *packs.Store, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var doc packDocument
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPackSize)).Decode(&doc); err != nil {
			writeError(cfg, w, http.StatusBadRequest, fmt.Errorf("invalid pack: %w", err), errs)
			return
		}

		id, err := store.Save(doc.ID, doc.PackContent)
		switch {
		case errors.Is(err, packs.ErrInvalidPack), errors.Is(err, packs.ErrInvalidID):
			writeError(cfg, w, http.StatusBadRequest, err, errs)
			return
		case err != nil:
			writeError(cfg, w, http.StatusInternalServerError, err, errs)
			return
		}

		cfg.logger.Info().Str("pack", id).Str("remote", realIP(r)).Msg("pack saved")

		writeJSON(cfg, w, http.StatusOK, savedMessage{OK: true, ID: id}, errs)
	}
}

// serveUploadMedia streams the multipart field "file" straight into the
// pack's media directory.
func serveUploadMedia(cfg *Config, store *packs.Store, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		id := packs.SanitizeID(p.ByName("id"))
		if id == "" {
			writeError(cfg, w, http.StatusBadRequest, packs.ErrInvalidID, errs)
			return
		}

		tooLarge := fmt.Errorf("%w (max %s)", packs.ErrTooLarge, humanReadableSize(cfg.maxUpload))

		r.Body = http.MaxBytesReader(w, r.Body, cfg.maxUpload+1<<20)

		mr, err := r.MultipartReader()
		if err != nil {
			writeError(cfg, w, http.StatusBadRequest, packs.ErrNoFile, errs)
			return
		}

		for {
			part, err := mr.NextPart()
			var maxBytes *http.MaxBytesError
			switch {
			case errors.Is(err, io.EOF):
				writeError(cfg, w, http.StatusBadRequest, packs.ErrNoFile, errs)
				return
			case errors.As(err, &maxBytes):
				writeError(cfg, w, http.StatusBadRequest, tooLarge, errs)
				return
			case err != nil:
				writeError(cfg, w, http.StatusBadRequest, err, errs)
				return
			}

			if part.FormName() != "file" || part.FileName() == "" {
				_ = part.Close()
				continue
			}

			path, err := store.SaveMedia(id, part.FileName(), part, cfg.maxUpload)
			_ = part.Close()

			switch {
			case errors.Is(err, packs.ErrTooLarge), errors.As(err, &maxBytes):
				writeError(cfg, w, http.StatusBadRequest, tooLarge, errs)
			case err != nil:
				writeError(cfg, w, http.StatusInternalServerError, err, errs)
			default:
				logf(cfg, "UPLOAD: %s for pack %s from %s", path, id, realIP(r))
				writeJSON(cfg, w, http.StatusOK, uploadMessage{Path: path}, errs)
			}

			return
		}
	}
}

func registerAPI(cfg *Config, store *packs.Store, mux *httprouter.Router, errs chan<- error) {
	mux.GET(cfg.prefix+"/api/health", serveAPIHealth(cfg, errs))

	mux.GET(cfg.prefix+"/api/packs", serveListPacks(cfg, store, errs))
	mux.GET(cfg.prefix+"/api/packs/:id", serveGetPack(cfg, store, errs))
	mux.POST(cfg.prefix+"/api/packs", serveSavePack(cfg, store, errs))
	mux.POST(cfg.prefix+"/api/packs/:id/media", serveUploadMedia(cfg, store, errs))

	mux.ServeFiles(cfg.prefix+"/media/*filepath", store.Media())
}
