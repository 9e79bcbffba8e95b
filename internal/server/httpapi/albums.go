package httpapi

import (
	"net/http"
	"strings"

	"github.com/dmitrijs2005/indiec/internal/server/models"
)

type albumRequest struct {
	Title       string               `json:"title" validate:"required,max=200"`
	ArtistID    int64                `json:"artist_id" validate:"required,gt=0"`
	Year        int                  `json:"year" validate:"required,gte=1900,lte=2100"`
	GenreID     *int64               `json:"genre_id" validate:"omitempty,gt=0"`
	StateID     int64                `json:"state_id" validate:"omitempty,gt=0"`
	ReleaseDate *string              `json:"release_date" validate:"omitempty,datetime=2006-01-02"`
	Price       float64              `json:"price" validate:"gte=0"`
	Content     *models.AlbumContent `json:"content"`
}

type albumPatchRequest struct {
	Title       *string              `json:"title" validate:"omitempty,min=1,max=200"`
	Year        *int                 `json:"year" validate:"omitempty,gte=1900,lte=2100"`
	GenreID     *int64               `json:"genre_id" validate:"omitempty,gt=0"`
	StateID     *int64               `json:"state_id" validate:"omitempty,gt=0"`
	ReleaseDate *string              `json:"release_date" validate:"omitempty,datetime=2006-01-02"`
	Price       *float64             `json:"price" validate:"omitempty,gte=0"`
	Content     *models.AlbumContent `json:"content"`
}

func (s *Server) createAlbum(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req albumRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(s.logger, w, r, err)
		return
	}

	album, err := s.Albums.Create(ctx, &models.Album{
		Title:       strings.TrimSpace(req.Title),
		ArtistID:    req.ArtistID,
		Year:        req.Year,
		GenreID:     req.GenreID,
		StateID:     req.StateID,
		ReleaseDate: parseDate(req.ReleaseDate),
		Price:       models.RoundMoney(req.Price),
	}, req.Content)
	if err != nil {
		writeError(s.logger, w, r, err)
		return
	}
	writeCreated(w, "album created", album)
}

func (s *Server) getAlbum(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r, "id")
	if err != nil {
		writeError(s.logger, w, r, err)
		return
	}

	album, err := s.Albums.Get(ctx, id)
	if err != nil {
		writeError(s.logger, w, r, err)
		return
	}
	writeOK(w, album)
}

func (s *Server) updateAlbum(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r, "id")
	if err != nil {
		writeError(s.logger, w, r, err)
		return
	}

	var req albumPatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(s.logger, w, r, err)
		return
	}

	album, err := s.Albums.Update(ctx, id, models.AlbumPatch{
		Title:       req.Title,
		Year:        req.Year,
		GenreID:     req.GenreID,
		StateID:     req.StateID,
		ReleaseDate: parseDate(req.ReleaseDate),
		Price:       req.Price,
	}, req.Content)
	if err != nil {
		writeError(s.logger, w, r, err)
		return
	}
	writeOK(w, album)
}

func (s *Server) uploadCover(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r, "id")
	if err != nil {
		writeError(s.logger, w, r, err)
		return
	}

	upload, err := s.saveUpload(w, r, "albums")
	if err != nil {
		writeError(s.logger, w, r, err)
		return
	}

	content, err := s.Albums.SetCover(ctx, id, upload.Key)
	if err != nil {
		s.discardUpload(ctx, upload)
		writeError(s.logger, w, r, err)
		return
	}
	writeOK(w, map[string]any{"upload": upload, "content": content})
}

func (s *Server) deleteAlbum(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r, "id")
	if err != nil {
		writeError(s.logger, w, r, err)
		return
	}

	if err := s.Albums.Delete(ctx, id); err != nil {
		writeError(s.logger, w, r, err)
		return
	}
	writeMessage(w, "album deleted")
}

func (s *Server) listAlbums(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter := models.AlbumFilter{Title: strings.TrimSpace(r.URL.Query().Get("title"))}
	var year int64
	err := queryInt64s(r, map[string]*int64{
		"artist_id": &filter.ArtistID,
		"genre_id":  &filter.GenreID,
		"state_id":  &filter.StateID,
		"year":      &year,
	})
	if err != nil {
		writeError(s.logger, w, r, err)
		return
	}
	filter.Year = int(year)

	page := pageRequest(r)
	albums, total, err := s.Albums.List(ctx, filter, page)
	if err != nil {
		writeError(s.logger, w, r, err)
		return
	}
	writePage(w, albums, page, total)
}
