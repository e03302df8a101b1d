package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/assessly/assessly-backend/internal/delivery"
	"github.com/assessly/assessly-backend/internal/middleware"
	"github.com/assessly/assessly-backend/internal/model"
	"github.com/assessly/assessly-backend/internal/service"
	ws "github.com/assessly/assessly-backend/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler runs live attempt channels. Each connection owns one
// delivery session: server-side countdown, answer validation, violation
// log, and exactly-once submit.
type WSHandler struct {
	attemptService *service.AttemptService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(attemptService *service.AttemptService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		attemptService: attemptService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// expiryNotifier wraps the persistence sink so the client hears about a
// countdown auto-submit without polling.
type expiryNotifier struct {
	delivery.Sink
	onTimeout func(*model.Attempt)
}

func (n *expiryNotifier) SaveAttempt(ctx context.Context, attempt *model.Attempt) error {
	err := n.Sink.SaveAttempt(ctx, attempt)
	if err == nil && attempt.Status == model.AttemptStatusTimedOut {
		n.onTimeout(attempt)
	}
	return err
}

// AttemptChannel godoc
// WS /ws/v1/student/assessments/:assessment_id/attempt
// Upgrades to WebSocket and drives a live attempt session. Requires an
// attempt started over HTTP; autosaved answers and the remaining time
// carry over, so a reconnect resumes instead of restarting.
func (h *WSHandler) AttemptChannel(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	assessmentID, err := uuid.Parse(c.Param("assessment_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid assessment ID"})
		return
	}

	rawConn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	conn := ws.NewConn(rawConn)
	defer conn.Close()

	ctx := context.Background()
	userID := claims.UserID

	// SECURITY: the channel only opens onto an attempt the student
	// already started.
	if _, err := h.attemptService.VerifyActiveAttempt(ctx, assessmentID, userID); err != nil {
		conn.WriteError("no active attempt for this assessment")
		return
	}

	state, err := h.attemptService.GetState(ctx, assessmentID, userID)
	if err != nil {
		conn.WriteError("failed to load attempt state")
		return
	}

	// Same per-attempt question order the HTTP paper endpoint serves, so
	// SelectQuestion indexes line up with what the client renders.
	payload, err := h.attemptService.GetPaper(ctx, assessmentID, userID)
	if err != nil {
		conn.WriteError("assessment is not available")
		return
	}

	wsLog := h.log.With().
		Str("user_id", userID.String()).
		Str("assessment_id", assessmentID.String()).
		Logger()

	signals := delivery.NewSignalFeed()
	session, err := delivery.NewSession(delivery.Config{
		Payload:   payload,
		UserID:    userID,
		Scheduler: delivery.TickerScheduler{},
		Signals:   signals,
		Logger:    wsLog,
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Sink: &expiryNotifier{
			Sink: h.attemptService,
			onTimeout: func(attempt *model.Attempt) {
				resp := ws.ExpiredResponse{Event: ws.EventExpired, Status: string(attempt.Status)}
				if attempt.Score != nil {
					resp.Score = *attempt.Score
				}
				if attempt.Passed != nil {
					resp.Passed = *attempt.Passed
				}
				conn.WriteTyped(resp)
			},
		},
		RemainingSeconds: int(state.RemainingSeconds),
	})
	if err != nil {
		wsLog.Error().Err(err).Msg("Failed to start delivery session")
		conn.WriteError("failed to start attempt session")
		return
	}
	defer session.Close()

	// Carry over autosaved answers so a reconnect never loses work.
	for qidStr, value := range state.AutosavedAnswers {
		qid, err := uuid.Parse(qidStr)
		if err != nil {
			continue
		}
		if err := session.SetAnswerFor(qid, value); err != nil {
			wsLog.Warn().Err(err).Str("question_id", qidStr).Msg("Dropping carried-over answer")
		}
	}

	wsLog.Info().Int("remaining", session.RemainingSeconds()).Msg("Attempt channel connected")

	for {
		var msg ws.RequestPayload
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		switch msg.Action {
		case ws.ActionAutosave:
			h.handleAutosave(ctx, conn, session, assessmentID, userID, &msg)
		case ws.ActionSelect:
			idx := session.SelectQuestion(msg.Index)
			conn.WriteTyped(ws.SelectedResponse{Event: ws.EventSuccess, Index: idx})
		case ws.ActionViolation:
			h.handleViolation(conn, signals, session, &msg)
		case ws.ActionSubmit:
			h.handleSubmit(ctx, conn, wsLog, session)
			return
		case ws.ActionPing:
			conn.WriteTyped(ws.PongResponse{Event: ws.EventPong, Remaining: session.RemainingSeconds()})
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			conn.WriteError("unknown action: " + string(msg.Action))
		}

		if session.Status() != model.AttemptStatusInProgress {
			// Countdown hit zero; the expired push already went out.
			return
		}
	}
}

// handleAutosave validates and stores one answer in the session, then
// mirrors it into the Redis autosave hash so an HTTP reload sees it too.
func (h *WSHandler) handleAutosave(
	ctx context.Context,
	conn *ws.Conn,
	session *delivery.Session,
	assessmentID, userID uuid.UUID,
	msg *ws.RequestPayload,
) {
	if msg.QID == "" || len(msg.Value) == 0 {
		conn.WriteError("q_id and value are required")
		return
	}

	qid, err := uuid.Parse(msg.QID)
	if err != nil {
		conn.WriteError("invalid q_id format")
		return
	}

	var value model.AnswerValue
	if err := json.Unmarshal(msg.Value, &value); err != nil {
		conn.WriteError("invalid value shape")
		return
	}

	if err := session.SetAnswerFor(qid, value); err != nil {
		conn.WriteError(err.Error())
		return
	}

	if err := h.attemptService.SaveAnswer(ctx, assessmentID, userID, qid, value); err != nil {
		// The session still holds the answer; submit persists it.
		h.log.Warn().Err(err).Str("question_id", msg.QID).Msg("Autosave mirror failed")
	}

	conn.WriteTyped(ws.SavedResponse{Event: ws.EventSuccess, Status: "saved"})
}

// handleViolation pushes the reported signal into the session's feed.
// Whether it lands in the log depends on the assessment's security
// settings; either way the attempt keeps running.
func (h *WSHandler) handleViolation(conn *ws.Conn, signals *delivery.SignalFeed, session *delivery.Session, msg *ws.RequestPayload) {
	var sig delivery.Signal
	switch model.ViolationType(msg.Type) {
	case model.ViolationTabSwitch:
		sig = delivery.SignalHidden
	case model.ViolationRightClick:
		sig = delivery.SignalRightClick
	case model.ViolationFullscreenExit:
		sig = delivery.SignalFullscreenExit
	default:
		conn.WriteError("unknown violation type: " + msg.Type)
		return
	}

	before := len(session.Violations())
	signals.Emit(sig)
	recorded := len(session.Violations()) > before

	conn.WriteTyped(ws.ViolationResponse{Event: ws.EventSuccess, Recorded: recorded})
}

// handleSubmit finishes the attempt, grading in RAM before the response
// goes out. The sink retries are the session's concern; a failed persist
// keeps the attempt in memory for the next submit.
func (h *WSHandler) handleSubmit(ctx context.Context, conn *ws.Conn, wsLog zerolog.Logger, session *delivery.Session) {
	attempt, err := session.Submit(ctx)
	if err != nil {
		if errors.Is(err, delivery.ErrAttemptFinished) {
			conn.WriteError("attempt already finished")
			return
		}
		wsLog.Error().Err(err).Msg("Submit persist failed")
		conn.WriteError("submit failed, try again")
		return
	}

	resp := ws.GradedResponse{Event: ws.EventGraded, Status: string(attempt.Status)}
	if attempt.Score != nil {
		resp.Score = *attempt.Score
	}
	if attempt.Passed != nil {
		resp.Passed = *attempt.Passed
	}

	wsLog.Info().Float64("score", resp.Score).Bool("passed", resp.Passed).Msg("Attempt submitted and graded")
	conn.WriteTyped(resp)
}
