package api

import (
	"vectorquant/internal/domain"
	"vectorquant/internal/metrics"
)

type controlsRequest struct {
	Mode        string   `json:"mode" binding:"required,oneof=Shadow Live"`
	RiskLimit   *float64 `json:"risk_limit" binding:"required"`
	Temperature *float64 `json:"temperature" binding:"required"`
}

func (r controlsRequest) controls() domain.Controls {
	return domain.Controls{
		Mode:        domain.Mode(r.Mode),
		RiskLimit:   *r.RiskLimit,
		Temperature: *r.Temperature,
	}
}

type controlsResponse struct {
	Message string             `json:"message"`
	State   domain.MetricsView `json:"state"`
}

type alertsResponse struct {
	Alerts    []domain.AlertView `json:"alerts"`
	Timestamp float64            `json:"timestamp"`
}

type priceRow struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Change24h float64 `json:"change_24h"`
	Volume24h float64 `json:"volume_24h"`
	MarketCap float64 `json:"market_cap"`
	Timestamp float64 `json:"timestamp"`
}

type priceHistoryResponse struct {
	Prices []priceRow `json:"prices"`
	Source string     `json:"source"`
}

func newPriceRows(prices []*domain.CryptoPrice) []priceRow {
	out := make([]priceRow, 0, len(prices))
	for _, p := range prices {
		out = append(out, priceRow{
			Symbol:    p.Symbol,
			Price:     domain.Round(p.Price, 2),
			Change24h: domain.Round(p.Change24h, 4),
			Volume24h: domain.Round(p.Volume24h, 2),
			MarketCap: domain.Round(p.MarketCap, 2),
			Timestamp: domain.UnixSeconds(p.Timestamp),
		})
	}
	return out
}

type alertRow struct {
	AlertID   string  `json:"alert_id"`
	AlertType string  `json:"alert_type"`
	Message   string  `json:"message"`
	Severity  string  `json:"severity"`
	Timestamp float64 `json:"timestamp"`
	Resolved  bool    `json:"resolved"`
}

func newAlertRow(a *domain.AlertRecord) alertRow {
	return alertRow{
		AlertID:   a.AlertID,
		AlertType: a.AlertType,
		Message:   a.Message,
		Severity:  a.Severity,
		Timestamp: domain.UnixSeconds(a.Timestamp),
		Resolved:  a.Resolved,
	}
}

type alertHistoryResponse struct {
	Alerts []alertRow `json:"alerts"`
}

type summaryRow struct {
	Name        string  `json:"name"`
	Count       int     `json:"count"`
	First       float64 `json:"first"`
	Last        float64 `json:"last"`
	Change      float64 `json:"change"`
	Mean        float64 `json:"mean"`
	Median      float64 `json:"median"`
	P10         float64 `json:"p10"`
	P25         float64 `json:"p25"`
	P75         float64 `json:"p75"`
	P90         float64 `json:"p90"`
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	Stddev      float64 `json:"stddev"`
	MaxDrawdown float64 `json:"max_drawdown"`
}

// newSummaryRow rounds every statistic to four places.
func newSummaryRow(s *metrics.Summary) summaryRow {
	return summaryRow{
		Name:        s.Name,
		Count:       s.Count,
		First:       domain.Round(s.First, 4),
		Last:        domain.Round(s.Last, 4),
		Change:      domain.Round(s.Change, 4),
		Mean:        domain.Round(s.Mean, 4),
		Median:      domain.Round(s.Median, 4),
		P10:         domain.Round(s.P10, 4),
		P25:         domain.Round(s.P25, 4),
		P75:         domain.Round(s.P75, 4),
		P90:         domain.Round(s.P90, 4),
		Min:         domain.Round(s.Min, 4),
		Max:         domain.Round(s.Max, 4),
		Stddev:      domain.Round(s.Stddev, 4),
		MaxDrawdown: domain.Round(s.MaxDrawdown, 4),
	}
}

type summaryResponse struct {
	Window    string       `json:"window"`
	Summaries []summaryRow `json:"summaries"`
}

type errorResponse struct {
	Error string `json:"error"`
}
