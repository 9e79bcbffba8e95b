package httpapi

import (
	"net/http"
	"strings"

	"github.com/dmitrijs2005/indiec/internal/server/models"
)

type artistRequest struct {
	Name      string                `json:"name" validate:"required,max=150"`
	StageName *string               `json:"stage_name" validate:"omitempty,max=150"`
	GenreID   *int64                `json:"genre_id" validate:"omitempty,gt=0"`
	CountryID *int64                `json:"country_id" validate:"omitempty,gt=0"`
	StateID   int64                 `json:"state_id" validate:"omitempty,gt=0"`
	ManagerID *int64                `json:"manager_id" validate:"omitempty,gt=0"`
	Verified  bool                  `json:"verified"`
	Profile   *models.ArtistProfile `json:"profile"`
}

type artistPatchRequest struct {
	Name      *string               `json:"name" validate:"omitempty,min=1,max=150"`
	StageName *string               `json:"stage_name" validate:"omitempty,max=150"`
	GenreID   *int64                `json:"genre_id" validate:"omitempty,gt=0"`
	CountryID *int64                `json:"country_id" validate:"omitempty,gt=0"`
	StateID   *int64                `json:"state_id" validate:"omitempty,gt=0"`
	ManagerID *int64                `json:"manager_id" validate:"omitempty,gt=0"`
	Verified  *bool                 `json:"verified"`
	Profile   *models.ArtistProfile `json:"profile"`
}

type artistStatsRequest struct {
	Followers      *int64 `json:"followers" validate:"omitempty,gte=0"`
	MonthlyPlays   *int64 `json:"monthly_plays" validate:"omitempty,gte=0"`
	TotalPlays     *int64 `json:"total_plays" validate:"omitempty,gte=0"`
	AlbumsReleased *int64 `json:"albums_released" validate:"omitempty,gte=0"`
}

func (s *Server) createArtist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req artistRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(s.logger, w, r, err)
		return
	}

	artist, err := s.Artists.Create(ctx, &models.Artist{
		Name:      strings.TrimSpace(req.Name),
		StageName: req.StageName,
		GenreID:   req.GenreID,
		CountryID: req.CountryID,
		StateID:   req.StateID,
		ManagerID: req.ManagerID,
		Verified:  req.Verified,
	}, req.Profile)
	if err != nil {
		writeError(s.logger, w, r, err)
		return
	}
	writeCreated(w, "artist created", artist)
}

func (s *Server) getArtist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r, "id")
	if err != nil {
		writeError(s.logger, w, r, err)
		return
	}

	artist, err := s.Artists.Get(ctx, id)
	if err != nil {
		writeError(s.logger, w, r, err)
		return
	}
	writeOK(w, artist)
}

func (s *Server) updateArtist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r, "id")
	if err != nil {
		writeError(s.logger, w, r, err)
		return
	}

	var req artistPatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(s.logger, w, r, err)
		return
	}

	artist, err := s.Artists.Update(ctx, id, models.ArtistPatch{
		Name:      req.Name,
		StageName: req.StageName,
		GenreID:   req.GenreID,
		CountryID: req.CountryID,
		StateID:   req.StateID,
		ManagerID: req.ManagerID,
		Verified:  req.Verified,
	}, req.Profile)
	if err != nil {
		writeError(s.logger, w, r, err)
		return
	}
	writeOK(w, artist)
}

func (s *Server) updateArtistStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r, "id")
	if err != nil {
		writeError(s.logger, w, r, err)
		return
	}

	var req artistStatsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(s.logger, w, r, err)
		return
	}

	profile, err := s.Artists.UpdateStats(ctx, id, models.ArtistStats{
		Followers:      req.Followers,
		MonthlyPlays:   req.MonthlyPlays,
		TotalPlays:     req.TotalPlays,
		AlbumsReleased: req.AlbumsReleased,
	})
	if err != nil {
		writeError(s.logger, w, r, err)
		return
	}
	writeOK(w, profile)
}

func (s *Server) deleteArtist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r, "id")
	if err != nil {
		writeError(s.logger, w, r, err)
		return
	}

	if err := s.Artists.Delete(ctx, id); err != nil {
		writeError(s.logger, w, r, err)
		return
	}
	writeMessage(w, "artist deleted")
}

func (s *Server) listArtists(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter := models.ArtistFilter{Name: strings.TrimSpace(r.URL.Query().Get("name"))}
	err := queryInt64s(r, map[string]*int64{
		"genre_id":   &filter.GenreID,
		"country_id": &filter.CountryID,
		"state_id":   &filter.StateID,
	})
	if err != nil {
		writeError(s.logger, w, r, err)
		return
	}

	page := pageRequest(r)
	artists, total, err := s.Artists.List(ctx, filter, page)
	if err != nil {
		writeError(s.logger, w, r, err)
		return
	}
	writePage(w, artists, page, total)
}
