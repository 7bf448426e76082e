package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"billbot/internal/bill"
	"billbot/internal/export"
	"billbot/internal/mail"
	"billbot/internal/scanning"
)

type processRequest struct {
	Owner     string `json:"user_id"`
	ImagePath string `json:"image_path"`
}

// handleProcess parses an already-stored bill image and commits it. This
// is the non-interactive path; the chat flow goes through the intake
// controller.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Owner == "" || req.ImagePath == "" {
		writeError(w, http.StatusBadRequest, "user_id and image_path are required")
		return
	}

	record, err := s.bills.ProcessStored(r.Context(), req.Owner, req.ImagePath)
	if err != nil {
		slog.Error("Error processing bill", "owner", req.Owner, "error", err)
		if kind, ok := scanning.KindOf(err); ok {
			writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("could not read the bill (%s)", kind))
			return
		}
		writeError(w, http.StatusInternalServerError, "error processing bill")
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

// handleList returns an owner's bills, optionally bounded by
// start_date/end_date (inclusive, YYYY-MM-DD)
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	owner := r.PathValue("owner")

	start, end, err := bill.ParseDateRange(r.URL.Query().Get("start_date"), r.URL.Query().Get("end_date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := s.bills.List(owner, start, end)
	if err != nil {
		slog.Error("Error listing bills", "owner", owner, "error", err)
		writeError(w, http.StatusInternalServerError, "error fetching bills")
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// handleExport streams the xlsx report for an owner's date range
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	owner := r.PathValue("owner")
	startStr := r.URL.Query().Get("start_date")
	endStr := r.URL.Query().Get("end_date")

	start, end, err := bill.ParseDateRange(startStr, endStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := s.bills.List(owner, start, end)
	if err != nil {
		slog.Error("Error listing bills for export", "owner", owner, "error", err)
		writeError(w, http.StatusInternalServerError, "error fetching bills")
		return
	}

	data, _, err := export.BuildWorkbook(records)
	if err != nil {
		slog.Error("Error building export", "owner", owner, "error", err)
		writeError(w, http.StatusInternalServerError, "error generating export")
		return
	}

	filename := "bills_all.xlsx"
	if startStr != "" || endStr != "" {
		filename = fmt.Sprintf("bills_%s_to_%s.xlsx", orWord(startStr, "start"), orWord(endStr, "now"))
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if _, err := w.Write(data); err != nil {
		slog.Error("Error writing export response", "error", err)
	}
}

type emailRequest struct {
	Owner     string `json:"user_id"`
	Email     string `json:"email"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// handleEmail builds the report and sends it to the given address with the
// bill images attached
func (s *Server) handleEmail(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Owner == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if err := bill.ValidateEmail(req.Email); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	start, end, err := bill.ParseDateRange(req.StartDate, req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := s.bills.List(req.Owner, start, end)
	if err != nil {
		slog.Error("Error listing bills for email", "owner", req.Owner, "error", err)
		writeError(w, http.StatusInternalServerError, "error fetching bills")
		return
	}

	data, _, err := export.BuildWorkbook(records)
	if err != nil {
		slog.Error("Error building email report", "owner", req.Owner, "error", err)
		writeError(w, http.StatusInternalServerError, "error generating report")
		return
	}

	attachments := []mail.Attachment{{Filename: "bills_report.xlsx", Content: data}}
	for i, rec := range records {
		if rec.ImagePath == "" {
			continue
		}
		img, err := s.storage.Get(rec.ImagePath)
		if err != nil {
			slog.Warn("Skipping missing bill image", "path", rec.ImagePath, "error", err)
			continue
		}
		attachments = append(attachments, mail.Attachment{
			Filename: fmt.Sprintf("bill_%d%s", i+1, pathExt(rec.ImagePath)),
			Content:  img,
		})
	}

	subject := "Your Bill Report"
	if req.StartDate != "" && req.EndDate != "" {
		subject = fmt.Sprintf("Your Bill Report - %s to %s", req.StartDate, req.EndDate)
	}

	if err := s.mailer.SendReport(r.Context(), req.Email, subject, emailBody(req.StartDate, req.EndDate), attachments); err != nil {
		slog.Error("Error sending report email", "owner", req.Owner, "error", err)
		if kind, ok := mail.DeliveryKindOf(err); ok && kind == mail.TooLarge {
			writeError(w, http.StatusRequestEntityTooLarge, "report attachments are too large to email")
			return
		}
		writeError(w, http.StatusBadGateway, "error sending email")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "success",
		"message":     fmt.Sprintf("Bills sent to %s", req.Email),
		"bills_count": len(records),
	})
}

// handleGet returns one bill
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	owner := r.PathValue("owner")
	id := r.PathValue("id")

	record, err := s.bills.Get(owner, id)
	if err != nil {
		if errors.Is(err, bill.ErrNotFound) {
			writeError(w, http.StatusNotFound, "bill not found")
			return
		}
		slog.Error("Error fetching bill", "owner", owner, "bill_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "error fetching bill")
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// handleImage streams the stored bill image
func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	owner := r.PathValue("owner")
	id := r.PathValue("id")

	data, contentType, err := s.bills.Image(owner, id)
	if err != nil {
		if errors.Is(err, bill.ErrNotFound) {
			writeError(w, http.StatusNotFound, "bill not found")
			return
		}
		slog.Error("Error fetching bill image", "owner", owner, "bill_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "error fetching bill image")
		return
	}
	w.Header().Set("Content-Type", contentType)
	if _, err := w.Write(data); err != nil {
		slog.Error("Error writing image response", "error", err)
	}
}

// handleDelete removes one bill and its image
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	owner := r.PathValue("owner")
	id := r.PathValue("id")

	if err := s.bills.Delete(owner, id); err != nil {
		if errors.Is(err, bill.ErrNotFound) {
			writeError(w, http.StatusNotFound, "bill not found")
			return
		}
		slog.Error("Error deleting bill", "owner", owner, "bill_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "error deleting bill")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func orWord(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func pathExt(path string) string {
	for i := len(path) - 1; i >= 0 && path[i] != '/'; i-- {
		if path[i] == '.' {
			return path[i:]
		}
	}
	return ""
}

func emailBody(startDate, endDate string) string {
	rangeText := ""
	if startDate != "" && endDate != "" {
		rangeText = fmt.Sprintf(" from %s to %s", startDate, endDate)
	}
	return fmt.Sprintf(`Hello!

Please find attached your bill report%s.

This email contains:
- Excel report with all bills and summary
- Individual bill images

Best regards,
BillBot`, rangeText)
}
