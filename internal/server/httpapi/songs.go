package httpapi

import (
	"net/http"
	"strings"

	"github.com/dmitrijs2005/indiec/internal/server/models"
	"github.com/dmitrijs2005/indiec/internal/server/services"
)

type songRequest struct {
	Title           string              `json:"title" validate:"required,max=200"`
	AlbumID         *int64              `json:"album_id" validate:"omitempty,gt=0"`
	ArtistID        int64               `json:"artist_id" validate:"required,gt=0"`
	DurationSeconds *int                `json:"duration_seconds" validate:"omitempty,gt=0"`
	Year            *int                `json:"year" validate:"omitempty,gte=1900,lte=2100"`
	GenreID         *int64              `json:"genre_id" validate:"omitempty,gt=0"`
	StateID         int64               `json:"state_id" validate:"omitempty,gt=0"`
	TrackNumber     *int                `json:"track_number" validate:"omitempty,gt=0"`
	Price           float64             `json:"price" validate:"gte=0"`
	Content         *models.SongContent `json:"content"`
}

type songPatchRequest struct {
	Title           *string             `json:"title" validate:"omitempty,min=1,max=200"`
	AlbumID         *int64              `json:"album_id" validate:"omitempty,gt=0"`
	DurationSeconds *int                `json:"duration_seconds" validate:"omitempty,gt=0"`
	Year            *int                `json:"year" validate:"omitempty,gte=1900,lte=2100"`
	GenreID         *int64              `json:"genre_id" validate:"omitempty,gt=0"`
	StateID         *int64              `json:"state_id" validate:"omitempty,gt=0"`
	TrackNumber     *int                `json:"track_number" validate:"omitempty,gt=0"`
	Price           *float64            `json:"price" validate:"omitempty,gte=0"`
	Content         *models.SongContent `json:"content"`
}

type playRequest struct {
	SessionID string  `json:"session_id" validate:"max=100"`
	Platform  string  `json:"platform" validate:"max=50"`
	Download  bool    `json:"download"`
	Seconds   float64 `json:"seconds" validate:"gte=0"`
}

func (s *Server) createSong(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req songRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(s.logger, w, r, err)
		return
	}

	song, err := s.Songs.Create(ctx, &models.Song{
		Title:           strings.TrimSpace(req.Title),
		AlbumID:         req.AlbumID,
		ArtistID:        req.ArtistID,
		DurationSeconds: req.DurationSeconds,
		Year:            req.Year,
		GenreID:         req.GenreID,
		StateID:         req.StateID,
		TrackNumber:     req.TrackNumber,
		Price:           models.RoundMoney(req.Price),
	}, req.Content)
	if err != nil {
		writeError(s.logger, w, r, err)
		return
	}
	writeCreated(w, "song created", song)
}

func (s *Server) getSong(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r, "id")
	if err != nil {
		writeError(s.logger, w, r, err)
		return
	}

	song, err := s.Songs.Get(ctx, id)
	if err != nil {
		writeError(s.logger, w, r, err)
		return
	}
	writeOK(w, song)
}

func (s *Server) updateSong(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r, "id")
	if err != nil {
		writeError(s.logger, w, r, err)
		return
	}

	var req songPatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(s.logger, w, r, err)
		return
	}

	song, err := s.Songs.Update(ctx, id, models.SongPatch{
		Title:           req.Title,
		AlbumID:         req.AlbumID,
		DurationSeconds: req.DurationSeconds,
		Year:            req.Year,
		GenreID:         req.GenreID,
		StateID:         req.StateID,
		TrackNumber:     req.TrackNumber,
		Price:           req.Price,
	}, req.Content)
	if err != nil {
		writeError(s.logger, w, r, err)
		return
	}
	writeOK(w, song)
}

func (s *Server) deleteSong(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r, "id")
	if err != nil {
		writeError(s.logger, w, r, err)
		return
	}

	if err := s.Songs.Delete(ctx, id); err != nil {
		writeError(s.logger, w, r, err)
		return
	}
	writeMessage(w, "song deleted")
}

func (s *Server) listSongs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter := models.SongFilter{Title: strings.TrimSpace(r.URL.Query().Get("title"))}
	err := queryInt64s(r, map[string]*int64{
		"album_id":  &filter.AlbumID,
		"artist_id": &filter.ArtistID,
		"genre_id":  &filter.GenreID,
		"state_id":  &filter.StateID,
	})
	if err != nil {
		writeError(s.logger, w, r, err)
		return
	}

	page := pageRequest(r)
	songs, total, err := s.Songs.List(ctx, filter, page)
	if err != nil {
		writeError(s.logger, w, r, err)
		return
	}
	writePage(w, songs, page, total)
}

// recordPlay counts a play or download. Anonymous listeners are allowed.
func (s *Server) recordPlay(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r, "id")
	if err != nil {
		writeError(s.logger, w, r, err)
		return
	}

	var req playRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(s.logger, w, r, err)
			return
		}
	}

	in := services.PlayInput{
		SessionID: req.SessionID,
		Platform:  req.Platform,
		Download:  req.Download,
		Seconds:   req.Seconds,
	}
	if ident, ok := identityFrom(ctx); ok {
		in.UserID = &ident.UserID
	}

	content, err := s.Songs.RecordPlay(ctx, id, in)
	if err != nil {
		writeError(s.logger, w, r, err)
		return
	}
	writeOK(w, content)
}
