package httpapi

import (
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"calltrack/internal/audit"
	"calltrack/internal/auth"
	"calltrack/internal/billing"
	"calltrack/internal/calls"
	"calltrack/internal/forwarding"
	"calltrack/internal/numbers"
	"calltrack/internal/reporting"
	"calltrack/internal/whisper"

	"github.com/gin-gonic/gin"
)

const defaultMaxAudioBytes = 5 << 20

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Numbers    *numbers.Service
	Forwarding *forwarding.Service
	Whisper    *whisper.Service
	Calls      *calls.Tracker
	Billing    *billing.Service
	Reports    *reporting.Service
	Audit      *audit.Service

	// MaxAudioBytes caps multipart whisper uploads before they reach the service.
	MaxAudioBytes int64
}

// userID is set by auth.RequireAccessToken; rbac.RequireUser guarantees it.
func userID(c *gin.Context) (string, bool) {
	id, err := auth.UserID(c.Request.Context())
	if err != nil || id == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user_id required"})
		return "", false
	}
	return id, true
}

func page(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.Query("limit"))
	offset, _ = strconv.Atoi(c.Query("offset"))
	return limit, offset
}

// timeRange reads RFC3339 from/to; the default is the current UTC month.
func timeRange(c *gin.Context, now time.Time) (time.Time, time.Time, bool) {
	now = now.UTC()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	if raw := c.Query("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			badRequest(c, "from must be RFC3339")
			return time.Time{}, time.Time{}, false
		}
		from = t
	}
	if raw := c.Query("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			badRequest(c, "to must be RFC3339")
			return time.Time{}, time.Time{}, false
		}
		to = t
	}
	return from, to, true
}

// --- Numbers ---

func (h Handlers) ListNumbers(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	out, err := h.Numbers.List(c.Request.Context(), uid)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"numbers": out})
}

func (h Handlers) PurchaseNumber(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	var req numbers.PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	n, err := h.Numbers.Purchase(c.Request.Context(), uid, req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, n)
}

func (h Handlers) GetNumber(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	n, err := h.Numbers.Get(c.Request.Context(), uid, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, n)
}

func (h Handlers) UpdateNumber(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	var req numbers.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	n, err := h.Numbers.Update(c.Request.Context(), uid, c.Param("id"), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, n)
}

func (h Handlers) ReleaseNumber(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	if err := h.Numbers.Release(c.Request.Context(), uid, c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// --- Forwarding ---

func (h Handlers) GetForwarding(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	r, err := h.Forwarding.Get(c.Request.Context(), uid, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h Handlers) PutForwarding(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	var req forwarding.UpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	r, err := h.Forwarding.Upsert(c.Request.Context(), uid, c.Param("id"), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h Handlers) DeleteForwarding(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	if err := h.Forwarding.Delete(c.Request.Context(), uid, c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// --- Whisper ---

func (h Handlers) GetWhisper(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	w, err := h.Whisper.Get(c.Request.Context(), uid, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, w)
}

func (h Handlers) PutWhisper(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	var req whisper.UpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	w, err := h.Whisper.Upsert(c.Request.Context(), uid, c.Param("id"), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, w)
}

func (h Handlers) DeleteWhisper(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	if err := h.Whisper.Delete(c.Request.Context(), uid, c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UploadWhisperAudio accepts multipart field "audio".
func (h Handlers) UploadWhisperAudio(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	fh, err := c.FormFile("audio")
	if err != nil {
		badRequest(c, "multipart field audio required")
		return
	}
	f, err := fh.Open()
	if err != nil {
		badRequest(c, "unreadable upload")
		return
	}
	defer f.Close()

	limit := h.MaxAudioBytes
	if limit <= 0 {
		limit = defaultMaxAudioBytes
	}
	// Read one byte past the cap so the service can report the overflow.
	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		badRequest(c, "unreadable upload")
		return
	}

	mediaType := fh.Header.Get("Content-Type")
	if mediaType == "" || mediaType == "application/octet-stream" {
		if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(fh.Filename))); byExt != "" {
			mediaType = byExt
		} else {
			mediaType = http.DetectContentType(data)
		}
	}

	w, err := h.Whisper.UploadAudio(c.Request.Context(), uid, c.Param("id"), mediaType, data)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, w)
}

// --- Calls ---

func (h Handlers) ListCalls(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	limit, offset := page(c)
	out, err := h.Calls.List(c.Request.Context(), uid, limit, offset)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"calls": out})
}

func (h Handlers) GetCall(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	rec, err := h.Calls.Get(c.Request.Context(), uid, c.Param("sid"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// StartCall places a click-to-call.
func (h Handlers) StartCall(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	var req calls.OutboundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	rec, err := h.Calls.StartOutbound(c.Request.Context(), uid, req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, rec)
}

func (h Handlers) ListRecordings(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	limit, offset := page(c)
	out, err := h.Calls.ListRecordings(c.Request.Context(), uid, limit, offset)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recordings": out})
}

// --- Usage ---

func (h Handlers) GetUsage(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	s, err := h.Billing.Summary(c.Request.Context(), uid)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h Handlers) ListCharges(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	from, to, ok := timeRange(c, time.Now())
	if !ok {
		return
	}
	out, err := h.Billing.Charges(c.Request.Context(), uid, from, to)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"charges": out})
}

func (h Handlers) CallsReport(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	from, to, ok := timeRange(c, time.Now())
	if !ok {
		return
	}
	out, err := h.Reports.CallsSummary(c.Request.Context(), reporting.CallsSummaryRequest{
		UserID: uid,
		Range:  reporting.TimeRange{From: from, To: to},
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) ListAudit(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	limit, _ := page(c)
	out, err := h.Audit.ListByUser(c.Request.Context(), uid, limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": out})
}

// --- Admin ---

// AdminCredit tops up a user's pay-as-you-go balance. RBAC: admin.
func (h Handlers) AdminCredit(c *gin.Context) {
	var req billing.CreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	s, err := h.Billing.Credit(c.Request.Context(), c.Param("user_id"), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}
