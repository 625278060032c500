package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/shaiso/etlflows/internal/engine"
)

// maxRecordSize — максимальный размер документа для /validate.
const maxRecordSize = 1 << 20

// Validate прогоняет ядро ETL на присланном JSON документе:
// flatten → схема → правила → clean → aggregate. Ничего не сохраняет.
// POST /api/v1/validate?min_stars=N
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	minStars := h.minStars
	if v := r.URL.Query().Get("min_stars"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			BadRequest(w, "min_stars must be a non-negative integer")
			return
		}
		minStars = n
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRecordSize))
	if err != nil {
		BadRequest(w, "request body too large")
		return
	}

	resp, err := ValidateRecord(body, minStars, time.Now())
	if err != nil {
		var transformErr *engine.TransformError
		if errors.As(err, &transformErr) {
			Error(w, http.StatusUnprocessableEntity, ErrCodeInvalidRecord, err.Error())
			return
		}
		BadRequest(w, err.Error())
		return
	}

	Success(w, resp)
}

// ValidateRecord выполняет ядро на сыром документе.
// Отклонение записи — не ошибка: оно возвращается в ответе с valid=false.
func ValidateRecord(doc []byte, minStars int64, now time.Time) (*ValidateResponse, error) {
	raw, err := engine.DecodeRaw(doc)
	if err != nil {
		return nil, fmt.Errorf("invalid record: %w", err)
	}

	flat := engine.Flatten(raw)
	outcome := engine.Validate(flat, engine.MinStars(minStars))

	resp := &ValidateResponse{
		Outcome:   string(outcome.Kind()),
		Valid:     outcome.Valid(),
		Reason:    outcome.Reason,
		MinStars:  minStars,
		Flattened: flat,
	}
	if !outcome.Valid() {
		return resp, nil
	}

	cleaned := engine.Clean(outcome.Stats)
	agg, err := engine.Aggregate(cleaned, now)
	if err != nil {
		return nil, err
	}

	resp.Cleaned = &cleaned
	resp.Aggregate = &agg
	return resp, nil
}

// Schema возвращает JSON Schema записи RepoStats.
// GET /api/v1/schema
func (h *Handler) Schema(w http.ResponseWriter, _ *http.Request) {
	Success(w, engine.RepoStatsSchema())
}
