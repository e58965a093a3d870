package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/star/orbitscreen/internal/bodies"
	"github.com/star/orbitscreen/internal/cache"
	"github.com/star/orbitscreen/internal/elements"
	"github.com/star/orbitscreen/internal/epoch"
	"github.com/star/orbitscreen/internal/events"
	"github.com/star/orbitscreen/internal/httputil"
	"github.com/star/orbitscreen/internal/passes"
	"github.com/star/orbitscreen/internal/propagation"
	"github.com/star/orbitscreen/internal/tle"
	"github.com/star/orbitscreen/internal/transform"
)

// Request budgets.
const (
	maxScreenSpan     = 7 * 24 * time.Hour
	maxScreenKm       = 1000.0
	maxPassHours      = 72
	maxPassSatellites = 50
)

// writeServiceError maps service errors onto status codes.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, cache.ErrNoCatalog):
		httputil.WriteError(w, http.StatusServiceUnavailable, "no catalog loaded")
	case errors.Is(err, bodies.ErrNotFound):
		httputil.WriteError(w, http.StatusNotFound, "satellite not found")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		httputil.WriteError(w, http.StatusServiceUnavailable, "request cancelled")
	default:
		logger.Error("request failed", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}

// queryEpoch parses an ISO epoch parameter, defaulting to now.
func queryEpoch(r *http.Request, name string) (epoch.Epoch, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return epoch.FromTime(time.Now()), nil
	}
	return epoch.FromISO(v)
}

type catalogResponse struct {
	Name       string    `json:"name"`
	Source     string    `json:"source"`
	FetchedAt  time.Time `json:"fetched_at"`
	AgeSeconds int       `json:"age_seconds"`
	Count      int       `json:"count"`
	EpochMin   time.Time `json:"epoch_min"`
	EpochMax   time.Time `json:"epoch_max"`
	Version    uint64    `json:"version"`
}

func catalogHandler(store *tle.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := store.Get()
		if c == nil {
			httputil.WriteError(w, http.StatusServiceUnavailable, "no catalog loaded")
			return
		}
		httputil.WriteJSON(w, http.StatusOK, catalogResponse{
			Name:       c.Name,
			Source:     c.Source,
			FetchedAt:  c.FetchedAt,
			AgeSeconds: int(store.AgeSeconds()),
			Count:      c.Len(),
			EpochMin:   c.EpochRange.Min,
			EpochMax:   c.EpochRange.Max,
			Version:    store.Version(),
		})
	}
}

type stateResponse struct {
	SatelliteID int        `json:"satellite_id"`
	Name        string     `json:"name,omitempty"`
	Epoch       string     `json:"epoch"`
	Frame       string     `json:"frame"`
	Position    [3]float64 `json:"position_km"`
	Velocity    [3]float64 `json:"velocity_kms"`
	Latitude    *float64   `json:"latitude,omitempty"`
	Longitude   *float64   `json:"longitude,omitempty"`
	Altitude    *float64   `json:"altitude_km,omitempty"`
}

func newStateResponse(id int, s elements.CartesianState) stateResponse {
	return stateResponse{
		SatelliteID: id,
		Epoch:       s.Epoch.ISO(),
		Frame:       s.Frame.String(),
		Position:    [3]float64{s.Position.X, s.Position.Y, s.Position.Z},
		Velocity:    [3]float64{s.Velocity.X, s.Velocity.Y, s.Velocity.Z},
	}
}

type statesResponse struct {
	Epoch  string          `json:"epoch"`
	Count  int             `json:"count"`
	Failed []int           `json:"failed,omitempty"`
	States []stateResponse `json:"states"`
}

// GET /api/v1/states?epoch=2025-04-15T12:00:00Z
func statesHandler(logger *slog.Logger, s *cache.Screener) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, err := queryEpoch(r, "epoch")
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "invalid epoch parameter, expected ISO 8601")
			return
		}

		states, err := s.StatesAt(r.Context(), e)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}

		resp := statesResponse{Epoch: e.ISO(), States: make([]stateResponse, 0, len(states))}
		for id, st := range states {
			if st == nil {
				resp.Failed = append(resp.Failed, id)
				continue
			}
			resp.States = append(resp.States, newStateResponse(id, *st))
		}
		sort.Ints(resp.Failed)
		sort.Slice(resp.States, func(i, j int) bool {
			return resp.States[i].SatelliteID < resp.States[j].SatelliteID
		})
		resp.Count = len(resp.States)
		httputil.WriteJSON(w, http.StatusOK, resp)
	}
}

// GET /api/v1/states/{satellite_id}?epoch=...&frame=J2000
func stateHandler(logger *slog.Logger, s *cache.Screener) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.Atoi(r.PathValue("satellite_id"))
		if err != nil || id < 1 {
			httputil.WriteError(w, http.StatusBadRequest, "invalid satellite_id, must be a positive integer")
			return
		}
		e, err := queryEpoch(r, "epoch")
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "invalid epoch parameter, expected ISO 8601")
			return
		}
		frame := elements.TEME
		if v := r.URL.Query().Get("frame"); v != "" {
			if frame, err = elements.ParseReferenceFrame(v); err != nil {
				httputil.WriteError(w, http.StatusBadRequest, err.Error())
				return
			}
		}

		sat, err := s.Satellite(r.Context(), id)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		defer sat.Close()

		teme, err := sat.StateAt(e)
		if err != nil {
			httputil.WriteError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		out, err := transform.ConvertFrame(teme, frame)
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}

		resp := newStateResponse(id, out)
		resp.Name = sat.Name()
		geo := transform.EFGToGeodetic(transform.TEMEToEFG(teme).Position)
		resp.Latitude, resp.Longitude, resp.Altitude = &geo.LatDeg, &geo.LonDeg, &geo.AltKm
		httputil.WriteJSON(w, http.StatusOK, resp)
	}
}

type screenRequest struct {
	Start       epoch.Epoch `json:"start"`
	End         epoch.Epoch `json:"end"`
	ThresholdKm float64     `json:"threshold_km"`
	SatelliteID int         `json:"satellite_id"`
}

type screenResponse struct {
	Cached bool           `json:"cached"`
	Report *events.Report `json:"report"`
}

// POST /api/v1/screen
func screenHandler(logger *slog.Logger, s *cache.Screener, defaultThreshold float64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req screenRequest
		if err := httputil.DecodeJSON(r, &req); err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
		if req.ThresholdKm == 0 {
			req.ThresholdKm = defaultThreshold
		}

		switch {
		case !req.End.After(req.Start):
			httputil.WriteError(w, http.StatusBadRequest, "end must be after start")
			return
		case req.End.Sub(req.Start).Seconds() > maxScreenSpan.Seconds():
			httputil.WriteError(w, http.StatusBadRequest, "screening window exceeds 7 days")
			return
		case req.ThresholdKm <= 0 || req.ThresholdKm > maxScreenKm:
			httputil.WriteError(w, http.StatusBadRequest, "threshold_km must be in (0, 1000]")
			return
		case req.SatelliteID < 0:
			httputil.WriteError(w, http.StatusBadRequest, "satellite_id must be positive")
			return
		}

		report, cached, err := s.Screen(r.Context(), req.Start, req.End, req.ThresholdKm, req.SatelliteID)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, screenResponse{Cached: cached, Report: report})
	}
}

func latestHandler(s *cache.Screener) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := s.Latest()
		if report == nil {
			httputil.WriteError(w, http.StatusNotFound, "no screening completed yet")
			return
		}
		httputil.WriteJSON(w, http.StatusOK, report)
	}
}

func cacheStatsHandler(s *cache.Screener) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, s.Stats())
	}
}

type passesResponse struct {
	Site       *bodies.Observatory       `json:"site"`
	Start      string                    `json:"start"`
	Hours      float64                   `json:"hours"`
	Satellites []passes.SatelliteWindows `json:"satellites"`
}

// GET /api/v1/passes?lat=40.7&lon=-74&alt=0.01&satellite_id=25544,48274&hours=24&min_el=10&ground_track=true
func passesHandler(logger *slog.Logger, s *cache.Screener, pool *propagation.WorkerPool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lat, err := httputil.QueryFloat(r, "lat", 0)
		if err != nil || lat < -90 || lat > 90 || r.URL.Query().Get("lat") == "" {
			httputil.WriteError(w, http.StatusBadRequest, "lat is required and must be in [-90, 90]")
			return
		}
		lon, err := httputil.QueryFloat(r, "lon", 0)
		if err != nil || lon < -180 || lon > 180 || r.URL.Query().Get("lon") == "" {
			httputil.WriteError(w, http.StatusBadRequest, "lon is required and must be in [-180, 180]")
			return
		}
		alt, err := httputil.QueryFloat(r, "alt", 0)
		if err != nil || alt < -1 || alt > 10 {
			httputil.WriteError(w, http.StatusBadRequest, "alt must be in [-1, 10] km")
			return
		}
		hours, err := httputil.QueryFloat(r, "hours", 24)
		if err != nil || hours <= 0 || hours > maxPassHours {
			httputil.WriteError(w, http.StatusBadRequest, "hours must be in (0, 72]")
			return
		}
		minEl, err := httputil.QueryFloat(r, "min_el", 10)
		if err != nil || minEl < 0 || minEl >= 90 {
			httputil.WriteError(w, http.StatusBadRequest, "min_el must be in [0, 90)")
			return
		}
		start, err := queryEpoch(r, "start")
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "invalid start parameter, expected ISO 8601")
			return
		}

		var ids []int
		for _, f := range strings.Split(r.URL.Query().Get("satellite_id"), ",") {
			if f = strings.TrimSpace(f); f == "" {
				continue
			}
			id, err := strconv.Atoi(f)
			if err != nil || id < 1 {
				httputil.WriteError(w, http.StatusBadRequest, "invalid satellite_id list")
				return
			}
			ids = append(ids, id)
		}
		if len(ids) == 0 || len(ids) > maxPassSatellites {
			httputil.WriteError(w, http.StatusBadRequest, "satellite_id must list between 1 and 50 ids")
			return
		}

		sats := make([]*bodies.Satellite, 0, len(ids))
		defer func() {
			for _, sat := range sats {
				sat.Close()
			}
		}()
		for _, id := range ids {
			sat, err := s.Satellite(r.Context(), id)
			if err != nil {
				writeServiceError(w, logger, err)
				return
			}
			sats = append(sats, sat)
		}

		req := passes.Request{
			Site:         bodies.NewObservatory("request", lat, lon, alt),
			Satellites:   sats,
			Start:        start,
			Horizon:      epoch.FromHours(hours),
			MinElevation: minEl,
			GroundTrack:  r.URL.Query().Get("ground_track") == "true",
		}
		httputil.WriteJSON(w, http.StatusOK, passesResponse{
			Site:       req.Site,
			Start:      start.ISO(),
			Hours:      hours,
			Satellites: passes.Predict(r.Context(), pool, req),
		})
	}
}
