package fakebackend

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-medassist-client/apimodel"
	"github.com/jrsteele09/go-medassist-client/internal/utils"
)

var reminderTime = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

func (s *Server) GetUserHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		u, ok := s.userLocked(userIDFrom(r))
		if !ok {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		writeJSON(w, http.StatusOK, u)
	}
}

func (s *Server) UpdateUserHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req apimodel.UpdateUserRequest
		if err := decode(r, &req); err != nil || strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Email) == "" {
			writeError(w, http.StatusBadRequest, "Name and email are required")
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		a := s.accounts[userIDFrom(r)]
		oldKey := strings.ToLower(a.user.Email)
		newKey := strings.ToLower(strings.TrimSpace(req.Email))
		if owner, taken := s.byEmail[newKey]; taken && owner != a.user.ID {
			writeError(w, http.StatusBadRequest, "User with this email already exists")
			return
		}
		delete(s.byEmail, oldKey)
		s.byEmail[newKey] = a.user.ID
		a.user.Name = req.Name
		a.user.Email = req.Email
		a.user.UpdatedAt = utils.Ptr(NowTimeFunc().UTC())
		writeJSON(w, http.StatusOK, a.user)
	}
}

func (s *Server) UpdateTimeZoneHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req apimodel.UpdateTimeZoneRequest
		if err := decode(r, &req); err != nil || req.TimeZoneID == "" {
			writeError(w, http.StatusBadRequest, "timeZoneId is required")
			return
		}
		if _, err := time.LoadLocation(req.TimeZoneID); err != nil {
			writeError(w, http.StatusBadRequest, "Unknown time zone")
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		a := s.accounts[userIDFrom(r)]
		a.user.TimeZoneID = req.TimeZoneID
		a.user.UpdatedAt = utils.Ptr(NowTimeFunc().UTC())
		writeJSON(w, http.StatusOK, a.user)
	}
}

func (s *Server) TelegramLinkTokenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tok := randomToken(32)
		writeJSON(w, http.StatusOK, apimodel.TelegramLinkTokenResponse{
			Token:            tok,
			DeepLink:         fmt.Sprintf("https://t.me/%s?start=link_%s", s.opts.BotName, tok),
			ExpiresInMinutes: int(s.opts.TicketTTL / time.Minute),
		})
	}
}

func (s *Server) UnlinkTelegramHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		a := s.accounts[userIDFrom(r)]
		if a.user.TelegramUserID != nil {
			delete(s.telegramLinks, *a.user.TelegramUserID)
		}
		a.user.TelegramUserID = nil
		a.user.TelegramUsername = nil
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) ListMedicationsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		list := append([]apimodel.Medication{}, s.medications[userIDFrom(r)]...)
		writeJSON(w, http.StatusOK, list)
	}
}

func (s *Server) CreateMedicationHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req apimodel.CreateMedicationRequest
		if err := decode(r, &req); err != nil || strings.TrimSpace(req.Name) == "" {
			writeError(w, http.StatusBadRequest, "Name is required")
			return
		}

		userID := userIDFrom(r)
		m := apimodel.Medication{
			ID:          uuid.NewString(),
			UserID:      userID,
			Name:        req.Name,
			Description: req.Description,
			Dosage:      req.Dosage,
			CreatedAt:   NowTimeFunc().UTC(),
		}
		s.mu.Lock()
		s.medications[userID] = append(s.medications[userID], m)
		s.mu.Unlock()
		writeJSON(w, http.StatusCreated, m)
	}
}

func (s *Server) GetMedicationHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		i := s.medicationIndexLocked(userIDFrom(r), r.PathValue("id"))
		if i < 0 {
			writeError(w, http.StatusNotFound, "Medication not found")
			return
		}
		writeJSON(w, http.StatusOK, s.medications[userIDFrom(r)][i])
	}
}

func (s *Server) UpdateMedicationHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req apimodel.UpdateMedicationRequest
		if err := decode(r, &req); err != nil || strings.TrimSpace(req.Name) == "" {
			writeError(w, http.StatusBadRequest, "Name is required")
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		userID := userIDFrom(r)
		i := s.medicationIndexLocked(userID, r.PathValue("id"))
		if i < 0 {
			writeError(w, http.StatusNotFound, "Medication not found")
			return
		}
		m := &s.medications[userID][i]
		m.Name = req.Name
		m.Description = req.Description
		m.Dosage = req.Dosage
		m.UpdatedAt = utils.Ptr(NowTimeFunc().UTC())
		writeJSON(w, http.StatusOK, *m)
	}
}

func (s *Server) DeleteMedicationHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		userID := userIDFrom(r)
		i := s.medicationIndexLocked(userID, r.PathValue("id"))
		if i < 0 {
			writeError(w, http.StatusNotFound, "Medication not found")
			return
		}
		s.medications[userID] = append(s.medications[userID][:i], s.medications[userID][i+1:]...)
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) medicationIndexLocked(userID, id string) int {
	for i, m := range s.medications[userID] {
		if m.ID == id {
			return i
		}
	}
	return -1
}

func (s *Server) ListIntakesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var from, to time.Time
		var err error
		if v := q.Get("fromDate"); v != "" {
			if from, err = apimodel.ParseTimestamp(v); err != nil {
				writeError(w, http.StatusBadRequest, "Invalid fromDate")
				return
			}
		}
		if v := q.Get("toDate"); v != "" {
			if to, err = apimodel.ParseTimestamp(v); err != nil {
				writeError(w, http.StatusBadRequest, "Invalid toDate")
				return
			}
		}
		medID := q.Get("medicationId")

		s.mu.Lock()
		defer s.mu.Unlock()
		list := []apimodel.Intake{}
		for _, in := range s.intakes[userIDFrom(r)] {
			if !from.IsZero() && in.IntakeTime.Before(from) {
				continue
			}
			if !to.IsZero() && in.IntakeTime.After(to) {
				continue
			}
			if medID != "" && in.MedicationID != medID {
				continue
			}
			list = append(list, in)
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func (s *Server) CreateIntakeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req apimodel.CreateIntakeRequest
		if err := decode(r, &req); err != nil || req.MedicationID == "" {
			writeError(w, http.StatusBadRequest, "medicationId is required")
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		userID := userIDFrom(r)
		mi := s.medicationIndexLocked(userID, req.MedicationID)
		if mi < 0 {
			writeError(w, http.StatusNotFound, "Medication not found")
			return
		}
		now := NowTimeFunc().UTC()
		at := now
		if req.IntakeTime != nil {
			at = req.IntakeTime.UTC()
		}
		in := apimodel.Intake{
			ID:             uuid.NewString(),
			UserID:         userID,
			MedicationID:   req.MedicationID,
			MedicationName: s.medications[userID][mi].Name,
			IntakeTime:     at,
			Notes:          req.Notes,
			CreatedAt:      now,
		}
		s.intakes[userID] = append(s.intakes[userID], in)
		writeJSON(w, http.StatusCreated, in)
	}
}

func (s *Server) GetIntakeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		i := s.intakeIndexLocked(userIDFrom(r), r.PathValue("id"))
		if i < 0 {
			writeError(w, http.StatusNotFound, "Intake not found")
			return
		}
		writeJSON(w, http.StatusOK, s.intakes[userIDFrom(r)][i])
	}
}

func (s *Server) UpdateIntakeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req apimodel.UpdateIntakeRequest
		if err := decode(r, &req); err != nil || req.IntakeTime.IsZero() {
			writeError(w, http.StatusBadRequest, "intakeTime is required")
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		userID := userIDFrom(r)
		i := s.intakeIndexLocked(userID, r.PathValue("id"))
		if i < 0 {
			writeError(w, http.StatusNotFound, "Intake not found")
			return
		}
		in := &s.intakes[userID][i]
		in.IntakeTime = req.IntakeTime.UTC()
		in.Notes = req.Notes
		in.UpdatedAt = utils.Ptr(NowTimeFunc().UTC())
		writeJSON(w, http.StatusOK, *in)
	}
}

func (s *Server) DeleteIntakeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		userID := userIDFrom(r)
		i := s.intakeIndexLocked(userID, r.PathValue("id"))
		if i < 0 {
			writeError(w, http.StatusNotFound, "Intake not found")
			return
		}
		s.intakes[userID] = append(s.intakes[userID][:i], s.intakes[userID][i+1:]...)
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) intakeIndexLocked(userID, id string) int {
	for i, in := range s.intakes[userID] {
		if in.ID == id {
			return i
		}
	}
	return -1
}

func (s *Server) ListRemindersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		list := append([]apimodel.Reminder{}, s.reminders[userIDFrom(r)]...)
		writeJSON(w, http.StatusOK, list)
	}
}

func (s *Server) CreateReminderHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req apimodel.CreateReminderRequest
		if err := decode(r, &req); err != nil || req.MedicationID == "" || !reminderTime.MatchString(req.Time) {
			writeError(w, http.StatusBadRequest, "medicationId and time (HH:mm) are required")
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		userID := userIDFrom(r)
		mi := s.medicationIndexLocked(userID, req.MedicationID)
		if mi < 0 {
			writeError(w, http.StatusNotFound, "Medication not found")
			return
		}
		med := s.medications[userID][mi]
		rem := apimodel.Reminder{
			ID:             uuid.NewString(),
			UserID:         userID,
			TelegramUserID: req.TelegramUserID,
			MedicationID:   med.ID,
			MedicationName: med.Name,
			Dosage:         med.Dosage,
			Time:           req.Time,
			IsActive:       true,
			CreatedAt:      NowTimeFunc().UTC(),
		}
		s.reminders[userID] = append(s.reminders[userID], rem)
		writeJSON(w, http.StatusCreated, rem)
	}
}

func (s *Server) GetReminderHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		for _, rem := range s.reminders[userIDFrom(r)] {
			if rem.ID == r.PathValue("id") {
				writeJSON(w, http.StatusOK, rem)
				return
			}
		}
		writeError(w, http.StatusNotFound, "Reminder not found")
	}
}

func (s *Server) DeleteReminderHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		userID := userIDFrom(r)
		for i, rem := range s.reminders[userID] {
			if rem.ID == r.PathValue("id") {
				s.reminders[userID] = append(s.reminders[userID][:i], s.reminders[userID][i+1:]...)
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		writeError(w, http.StatusNotFound, "Reminder not found")
	}
}
