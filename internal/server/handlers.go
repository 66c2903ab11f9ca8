package server

import (
	"net/http"
	"strings"

	"github.com/enori/stock-skills/internal/models"
)

// writeServiceError maps service errors onto HTTP status codes.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	code := classifyError(err)
	if code == CodeInternal {
		s.logger.Error().Err(err).Msg("Request failed")
	}
	WriteError(w, code, err.Error())
}

// handleRiskAnalyze handles POST /api/risk/analyze with a complete analysis request body.
func (s *Server) handleRiskAnalyze(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	var req models.AnalysisRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	report, err := s.app.RiskService.Analyze(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, report)
}

// handleScenarioList handles GET /api/scenarios.
func (s *Server) handleScenarioList(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"scenarios": s.app.Catalog.Scenarios(),
	})
}

// handleReportGet handles GET /api/reports/{id}.
func (s *Server) handleReportGet(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	id := PathParam(r, "/api/reports/", "")
	if id == "" {
		WriteError(w, CodeBadRequest, "Report id is required")
		return
	}
	report, err := s.app.Reports.GetReport(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, report)
}

// handlePortfolioList handles GET /api/portfolios.
func (s *Server) handlePortfolioList(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	names, err := s.app.Portfolios.ListSnapshots(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"portfolios": names})
}

// routePortfolios dispatches /api/portfolios/{name} and /api/portfolios/{name}/risk.
func (s *Server) routePortfolios(w http.ResponseWriter, r *http.Request) {
	name := PathParam(r, "/api/portfolios/", "")
	if name == "" {
		s.handlePortfolioList(w, r)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/portfolios/"+name)
	switch rest {
	case "", "/":
		s.handlePortfolioGet(w, r, name)
	case "/risk":
		rateLimited(s.limiter, func(w http.ResponseWriter, r *http.Request) {
			s.handlePortfolioRisk(w, r, name)
		})(w, r)
	default:
		WriteError(w, CodeNotFound, "Not found")
	}
}

func (s *Server) handlePortfolioGet(w http.ResponseWriter, r *http.Request, name string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	snapshot, err := s.app.Portfolios.GetSnapshot(r.Context(), name)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, snapshot)
}

// handlePortfolioRisk analyses a stored portfolio. GET computes; POST also
// persists the report.
func (s *Server) handlePortfolioRisk(w http.ResponseWriter, r *http.Request, name string) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodPost) {
		return
	}
	report, err := s.app.Analyze(r.Context(), name, r.Method == http.MethodPost)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, report)
}
