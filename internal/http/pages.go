package http

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/mhutchens/bikeshare-dashboard/internal/format"
	"github.com/mhutchens/bikeshare-dashboard/internal/service"
	"github.com/mhutchens/bikeshare-dashboard/internal/validation"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// navItem is one sidebar entry.
type navItem struct {
	Name   string
	Label  string
	Active bool
}

// pageLabels maps canonical page names to the sidebar labels.
var pageLabels = map[string]string{
	"intro":           "Intro page",
	"weather":         "Weather component and bike usage",
	"stations":        "Most popular stations",
	"map":             "Interactive map with aggregated bike trips",
	"recommendations": "Recommendations",
}

// seasonOption is one entry of the stations-page season filter.
type seasonOption struct {
	Label   string
	Checked bool
}

// barView is one bar of the server-rendered station chart. Label is the
// shortened tick label; Station the full name for the tooltip.
type barView struct {
	Label   string
	Station string
	Trips   int
	Pct     int
}

// weatherRow is one date of the rides-vs-temperature table.
type weatherRow struct {
	Date     string
	Rides    float64
	RidesPct int
	AvgTemp  float64
}

// pageData is the template payload for every dashboard page.
type pageData struct {
	Title string
	Page  string
	Nav   []navItem

	// stations page
	Seasons      []seasonOption
	Bars         []barView
	TotalLabel   string
	EmptyMessage string

	// weather page
	Weather []weatherRow

	// intro / recommendations pages
	IntroImage string
	RecsImage  string
	Summary    service.Summary

	// map page
	MapAvailable bool

	Warnings []string
}

// pageAssets tells the page renderer which asset file names to reference.
type pageAssets struct {
	IntroImage string
	RecsImage  string
}

var handlerPageAssets pageAssets

// SetPageAssets configures the image file names referenced by the intro and
// recommendations pages. Call once from main before serving.
func SetPageAssets(introImage, recsImage string) {
	handlerPageAssets = pageAssets{IntroImage: introImage, RecsImage: recsImage}
}

// GetDashboard handles GET / and GET /dashboard/{page}.
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	page, err := validation.ValidatePage(mux.Vars(r)["page"])
	if err != nil {
		writeError(w, r, http.StatusNotFound, "UNKNOWN_PAGE", "unknown dashboard page")
		return
	}

	data := pageData{
		Title:    "Bikeshare Strategy Dashboard",
		Page:     page,
		Warnings: h.assets.Warnings(),
		Summary:  h.svc.Summarize(r.Context()),
	}
	for _, name := range validation.Pages {
		data.Nav = append(data.Nav, navItem{Name: name, Label: pageLabels[name], Active: name == page})
	}

	switch page {
	case "stations":
		if done := h.fillStationsPage(w, r, &data); done {
			return
		}
	case "weather":
		h.fillWeatherPage(r, &data)
	case "intro":
		if _, err := h.assets.Image(handlerPageAssets.IntroImage); err == nil {
			data.IntroImage = "/assets/" + handlerPageAssets.IntroImage
		}
	case "recommendations":
		if _, err := h.assets.Image(handlerPageAssets.RecsImage); err == nil {
			data.RecsImage = "/assets/" + handlerPageAssets.RecsImage
		}
	case "map":
		_, err := h.assets.MapHTML()
		data.MapAvailable = err == nil
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplates.ExecuteTemplate(w, "layout.html", data); err != nil {
		if logger, ok := r.Context().Value("logger").(*zap.Logger); ok && logger != nil {
			logger.Error("render page", zap.String("page", page), zap.Error(err))
		}
	}
}

// fillStationsPage populates the season filter and the ranking bars. Returns
// true when it already wrote a response (invalid season input).
func (h *Handler) fillStationsPage(w http.ResponseWriter, r *http.Request, data *pageData) bool {
	seasons, _, err := h.seasonsFromRequest(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_SEASON", err.Error())
		return true
	}

	selected := make(map[string]struct{}, len(seasons))
	for _, s := range seasons {
		selected[s] = struct{}{}
	}
	for _, s := range h.svc.Seasons() {
		_, checked := selected[s]
		data.Seasons = append(data.Seasons, seasonOption{Label: s, Checked: checked})
	}

	ranking, err := h.svc.TopStations(r.Context(), seasons)
	if err != nil {
		writeServiceError(w, r, err)
		return true
	}
	if len(ranking.Stations) == 0 {
		data.EmptyMessage = "No data for the selected season(s). Please choose different season(s)."
		return false
	}
	data.TotalLabel = totalRidesLabel(ranking.TotalTrips)
	maxTrips := ranking.Stations[0].Trips
	for _, sc := range ranking.Stations {
		pct := 0
		if maxTrips > 0 {
			pct = sc.Trips * 100 / maxTrips
		}
		data.Bars = append(data.Bars, barView{
			Label:   format.ShortenLabel(sc.Station, h.labelMaxLen),
			Station: sc.Station,
			Trips:   sc.Trips,
			Pct:     pct,
		})
	}
	return false
}

// fillWeatherPage populates the daily rides-vs-temperature rows.
func (h *Handler) fillWeatherPage(r *http.Request, data *pageData) {
	points := h.svc.WeatherSeries(r.Context())
	maxRides := 0.0
	for _, p := range points {
		if p.Rides > maxRides {
			maxRides = p.Rides
		}
	}
	for _, p := range points {
		pct := 0
		if maxRides > 0 {
			pct = int(p.Rides * 100 / maxRides)
		}
		data.Weather = append(data.Weather, weatherRow{
			Date:     p.Date.Format("2006-01-02"),
			Rides:    p.Rides,
			RidesPct: pct,
			AvgTemp:  p.AvgTemp,
		})
	}
}
