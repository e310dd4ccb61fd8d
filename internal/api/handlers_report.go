// handlers_report.go - Ticket template handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/har-viewer/backend/internal/report"
)

// ReportHandlerImpl implements the ReportHandler interface
type ReportHandlerImpl struct {
	sessions SessionManager
	tpl      *report.Template
}

// NewReportHandler creates a report handler. A nil template selects the built-in one.
func NewReportHandler(sessions SessionManager, tpl *report.Template) ReportHandler {
	if tpl == nil {
		tpl = report.Default()
	}
	return &ReportHandlerImpl{sessions: sessions, tpl: tpl}
}

type reportResponse struct {
	Template *report.Template `json:"template"`
	Text     string           `json:"text"`
}

// HandleGetTemplate returns the blank ticket template
func (h *ReportHandlerImpl) HandleGetTemplate(c echo.Context) error {
	return c.JSON(http.StatusOK, reportResponse{
		Template: h.tpl,
		Text:     report.Render(h.tpl, nil),
	})
}

// HandleRecordReport returns the ticket template prefilled from a displayed record
func (h *ReportHandlerImpl) HandleRecordReport(c echo.Context) error {
	id := c.Param("id")
	idx, err := indexParam(c)
	if err != nil {
		return err
	}

	row, err := h.sessions.Record(id, idx)
	if err != nil {
		return sessionError(err, id)
	}
	return c.JSON(http.StatusOK, reportResponse{
		Template: h.tpl,
		Text:     report.Render(h.tpl, &row.Record),
	})
}
