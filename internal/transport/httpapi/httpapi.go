// Package httpapi exposes the session sync core over JSON HTTP, with SSE
// and WebSocket streams for live events.
package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/mhersch/gametable/internal/character"
	"github.com/mhersch/gametable/internal/decision"
	"github.com/mhersch/gametable/internal/gateway"
	"github.com/mhersch/gametable/internal/membership"
	"github.com/mhersch/gametable/internal/notification"
	platformerrors "github.com/mhersch/gametable/internal/platform/errors"
)

// participantHeader carries the caller identity resolved by the edge proxy.
const participantHeader = "X-Participant-ID"

// Handler bundles the gateway with the secondary read/write surfaces.
type Handler struct {
	gateway       *gateway.Service
	characters    *character.Service
	notifications *notification.Service
}

// NewHandler builds the HTTP routes for the sync core.
func NewHandler(gw *gateway.Service, characters *character.Service, notifications *notification.Service) http.Handler {
	h := &Handler{gateway: gw, characters: characters, notifications: notifications}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /up", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	mux.HandleFunc("POST /v1/sessions/{session}/members", h.handleJoin)
	mux.HandleFunc("GET /v1/sessions/{session}/members", h.handleListMembers)
	mux.HandleFunc("GET /v1/sessions/{session}/members/{member}", h.handleGetMember)

	mux.HandleFunc("GET /v1/sessions/{session}/state", h.handleSnapshot)
	mux.HandleFunc("POST /v1/sessions/{session}/turn", h.handleSetTurn)
	mux.HandleFunc("POST /v1/sessions/{session}/dice", h.handleRollDice)
	mux.HandleFunc("POST /v1/sessions/{session}/hp/init", h.handleInitHP)
	mux.HandleFunc("POST /v1/sessions/{session}/hp", h.handleUpdateHP)

	mux.HandleFunc("POST /v1/sessions/{session}/decisions", h.handleCreateDecision)
	mux.HandleFunc("GET /v1/sessions/{session}/decisions", h.handleListDecisions)
	mux.HandleFunc("GET /v1/sessions/{session}/decisions/{decision}", h.handleGetDecision)
	mux.HandleFunc("PATCH /v1/sessions/{session}/decisions/{decision}", h.handleUpdateDecision)
	mux.HandleFunc("DELETE /v1/sessions/{session}/decisions/{decision}", h.handleDeleteDecision)
	mux.HandleFunc("POST /v1/sessions/{session}/decisions/{decision}/votes", h.handleCastVote)

	mux.HandleFunc("POST /v1/sessions/{session}/character/submit", h.handleSubmitCharacter)
	mux.HandleFunc("POST /v1/sessions/{session}/character/approve", h.handleApproveCharacter)
	mux.HandleFunc("POST /v1/sessions/{session}/character/reject", h.handleRejectCharacter)
	mux.HandleFunc("POST /v1/sessions/{session}/character/resubmit", h.handleResubmitCharacter)

	mux.HandleFunc("POST /v1/characters", h.handleCreateCharacter)
	mux.HandleFunc("GET /v1/characters", h.handleListCharacters)
	mux.HandleFunc("GET /v1/characters/{character}", h.handleGetCharacter)

	mux.HandleFunc("GET /v1/notifications", h.handleListNotifications)
	mux.HandleFunc("POST /v1/notifications/{notification}/read", h.handleMarkNotificationRead)

	mux.HandleFunc("GET /v1/sessions/{session}/events", h.handleSSE)
	mux.Handle("GET /v1/sessions/{session}/ws", h.wsHandler())

	return mux
}

func participantID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(participantHeader))
}

type errorBody struct {
	Code     string            `json:"code"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func httpStatusOf(code codes.Code) int {
	switch code {
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.NotFound:
		return http.StatusNotFound
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.AlreadyExists, codes.FailedPrecondition:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders a domain error through its gRPC status form so the
// ErrorInfo detail (machine code, domain, metadata) is the single source
// of what crosses the boundary.
func writeError(w http.ResponseWriter, err error) {
	var coded *platformerrors.Error
	if !errors.As(err, &coded) {
		log.Printf("httpapi: internal error: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Code: string(platformerrors.CodeUnknown), Message: "internal error"})
		return
	}

	st := status.Convert(coded.ToGRPCStatus())
	body := errorBody{Code: string(coded.Code), Message: st.Message()}
	for _, detail := range st.Details() {
		if info, ok := detail.(*errdetails.ErrorInfo); ok {
			body.Code = info.Reason
			body.Metadata = info.Metadata
		}
	}
	httpStatus := httpStatusOf(st.Code())
	if httpStatus == http.StatusInternalServerError {
		log.Printf("httpapi: internal error: %v", err)
	}
	writeJSON(w, httpStatus, body)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("httpapi: encode response: %v", err)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, into any) bool {
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(into); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Code: "MALFORMED_BODY", Message: "request body is not valid JSON for this endpoint"})
		return false
	}
	return true
}

type membershipResponse struct {
	ID             string `json:"id"`
	SessionID      string `json:"session_id"`
	ParticipantID  string `json:"participant_id"`
	DisplayName    string `json:"display_name"`
	Role           string `json:"role"`
	ApprovalStatus string `json:"approval_status"`
	CharacterID    string `json:"character_id,omitempty"`
	ReviewNotes    string `json:"review_notes,omitempty"`
	JoinedAt       string `json:"joined_at"`
	UpdatedAt      string `json:"updated_at"`
}

func toMembershipResponse(m membership.Membership) membershipResponse {
	return membershipResponse{
		ID:             m.ID,
		SessionID:      m.SessionID,
		ParticipantID:  m.ParticipantID,
		DisplayName:    m.DisplayName,
		Role:           m.Role.String(),
		ApprovalStatus: m.Approval.Status.String(),
		CharacterID:    m.Approval.CharacterID,
		ReviewNotes:    m.Approval.ReviewNotes,
		JoinedAt:       m.JoinedAt.UTC().Format(time.RFC3339),
		UpdatedAt:      m.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *Handler) handleJoin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		DisplayName string `json:"display_name"`
		Role        string `json:"role"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	m, err := h.gateway.Join(r.Context(), membership.JoinInput{
		SessionID:     r.PathValue("session"),
		ParticipantID: participantID(r),
		DisplayName:   body.DisplayName,
		Role:          membership.RoleFromString(body.Role),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMembershipResponse(m))
}

func (h *Handler) handleListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.gateway.Members(r.Context(), r.PathValue("session"))
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]membershipResponse, 0, len(members))
	for _, m := range members {
		out = append(out, toMembershipResponse(m))
	}
	writeJSON(w, http.StatusOK, map[string]any{"members": out})
}

func (h *Handler) handleGetMember(w http.ResponseWriter, r *http.Request) {
	m, err := h.gateway.Member(r.Context(), r.PathValue("session"), r.PathValue("member"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMembershipResponse(m))
}

func (h *Handler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.gateway.Snapshot(r.Context(), r.PathValue("session"))
	if err != nil {
		writeError(w, err)
		return
	}
	response := map[string]any{
		"turn_holder_id": snapshot.TurnHolderID,
		"hp":             snapshot.HP,
		"max_hp":         snapshot.MaxHP,
	}
	if snapshot.LastRoll != nil {
		response["last_roll"] = map[string]any{
			"participant_id":   snapshot.LastRoll.ParticipantID,
			"participant_name": snapshot.LastRoll.ParticipantName,
			"dice_kind":        snapshot.LastRoll.DiceKind,
			"result":           snapshot.LastRoll.Result,
			"rolled_at":        snapshot.LastRoll.RolledAt.UTC().Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, response)
}

func (h *Handler) handleSetTurn(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TurnHolderID string `json:"turn_holder_id"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if err := h.gateway.SetTurn(r.Context(), r.PathValue("session"), participantID(r), body.TurnHolderID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"turn_holder_id": body.TurnHolderID})
}

func (h *Handler) handleRollDice(w http.ResponseWriter, r *http.Request) {
	var body struct {
		DiceKind string `json:"dice_kind"`
		Result   int    `json:"result"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	roll, err := h.gateway.RollDice(r.Context(), gateway.RollDiceInput{
		SessionID:     r.PathValue("session"),
		ParticipantID: participantID(r),
		DiceKind:      body.DiceKind,
		Result:        body.Result,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"participant_id":   roll.ParticipantID,
		"participant_name": roll.ParticipantName,
		"dice_kind":        roll.DiceKind,
		"result":           roll.Result,
		"rolled_at":        roll.RolledAt.UTC().Format(time.RFC3339),
	})
}

func (h *Handler) handleInitHP(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ParticipantID string `json:"participant_id"`
		HP            int    `json:"hp"`
		MaxHP         int    `json:"max_hp"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	target := body.ParticipantID
	if target == "" {
		target = participantID(r)
	}
	if err := h.gateway.InitHP(r.Context(), r.PathValue("session"), participantID(r), target, body.HP, body.MaxHP); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"participant_id": target, "hp": body.HP, "max_hp": body.MaxHP})
}

func (h *Handler) handleUpdateHP(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ParticipantID string `json:"participant_id"`
		Delta         int    `json:"delta"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	target := body.ParticipantID
	if target == "" {
		target = participantID(r)
	}
	current, maxHP, err := h.gateway.UpdateHP(r.Context(), r.PathValue("session"), participantID(r), target, body.Delta)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"participant_id": target, "hp": current, "max_hp": maxHP})
}

type decisionResponse struct {
	ID                string   `json:"id"`
	SessionID         string   `json:"session_id"`
	Title             string   `json:"title"`
	Description       string   `json:"description,omitempty"`
	OrderIndex        int      `json:"order_index"`
	Status            string   `json:"status"`
	YesVotes          int      `json:"yes_votes"`
	NoVotes           int      `json:"no_votes"`
	EligibleVoters    int      `json:"eligible_voters"`
	VotedParticipants []string `json:"voted_participants"`
	OutcomeSummary    string   `json:"outcome_summary,omitempty"`
	CreatedAt         string   `json:"created_at"`
	ResolvedAt        string   `json:"resolved_at,omitempty"`
}

func toDecisionResponse(d decision.Decision) decisionResponse {
	response := decisionResponse{
		ID:                d.ID,
		SessionID:         d.SessionID,
		Title:             d.Title,
		Description:       d.Description,
		OrderIndex:        d.OrderIndex,
		Status:            d.Status.String(),
		YesVotes:          d.YesVotes,
		NoVotes:           d.NoVotes,
		EligibleVoters:    d.EligibleVoters,
		VotedParticipants: d.VotedParticipants,
		OutcomeSummary:    d.OutcomeSummary,
		CreatedAt:         d.CreatedAt.UTC().Format(time.RFC3339),
	}
	if d.ResolvedAt != nil {
		response.ResolvedAt = d.ResolvedAt.UTC().Format(time.RFC3339)
	}
	return response
}

func (h *Handler) handleCreateDecision(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		OrderIndex  int    `json:"order_index"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	d, err := h.gateway.CreateDecision(r.Context(), gateway.CreateDecisionInput{
		SessionID:   r.PathValue("session"),
		CallerID:    participantID(r),
		Title:       body.Title,
		Description: body.Description,
		OrderIndex:  body.OrderIndex,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDecisionResponse(d))
}

func (h *Handler) handleListDecisions(w http.ResponseWriter, r *http.Request) {
	list, err := h.gateway.ListDecisions(r.Context(), r.PathValue("session"))
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]decisionResponse, 0, len(list))
	for _, d := range list {
		out = append(out, toDecisionResponse(d))
	}
	writeJSON(w, http.StatusOK, map[string]any{"decisions": out})
}

func (h *Handler) handleGetDecision(w http.ResponseWriter, r *http.Request) {
	d, err := h.gateway.GetDecision(r.Context(), r.PathValue("session"), r.PathValue("decision"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDecisionResponse(d))
}

func (h *Handler) handleUpdateDecision(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title       *string `json:"title"`
		Description *string `json:"description"`
		OrderIndex  *int    `json:"order_index"`
		Resolve     bool    `json:"resolve"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	d, err := h.gateway.UpdateDecision(r.Context(), gateway.UpdateDecisionInput{
		SessionID:   r.PathValue("session"),
		CallerID:    participantID(r),
		DecisionID:  r.PathValue("decision"),
		Title:       body.Title,
		Description: body.Description,
		OrderIndex:  body.OrderIndex,
		Resolve:     body.Resolve,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDecisionResponse(d))
}

func (h *Handler) handleDeleteDecision(w http.ResponseWriter, r *http.Request) {
	err := h.gateway.DeleteDecision(r.Context(), r.PathValue("session"), participantID(r), r.PathValue("decision"))
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCastVote(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Vote string `json:"vote"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	var vote decision.Vote
	switch strings.ToLower(body.Vote) {
	case "yes":
		vote = decision.VoteYes
	case "no":
		vote = decision.VoteNo
	}
	d, err := h.gateway.CastVote(r.Context(), r.PathValue("session"), participantID(r), r.PathValue("decision"), vote)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDecisionResponse(d))
}

func (h *Handler) handleSubmitCharacter(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CharacterID string `json:"character_id"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	m, err := h.gateway.SubmitCharacter(r.Context(), r.PathValue("session"), participantID(r), body.CharacterID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMembershipResponse(m))
}

func (h *Handler) handleApproveCharacter(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ParticipantID string `json:"participant_id"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	m, err := h.gateway.ApproveCharacter(r.Context(), r.PathValue("session"), participantID(r), body.ParticipantID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMembershipResponse(m))
}

func (h *Handler) handleRejectCharacter(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ParticipantID string `json:"participant_id"`
		Notes         string `json:"notes"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	m, err := h.gateway.RejectCharacter(r.Context(), r.PathValue("session"), participantID(r), body.ParticipantID, body.Notes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMembershipResponse(m))
}

func (h *Handler) handleResubmitCharacter(w http.ResponseWriter, r *http.Request) {
	m, err := h.gateway.ResubmitCharacter(r.Context(), r.PathValue("session"), participantID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMembershipResponse(m))
}

type characterResponse struct {
	ID                 string `json:"id"`
	OwnerParticipantID string `json:"owner_participant_id"`
	Name               string `json:"name"`
	Class              string `json:"class,omitempty"`
	Level              int    `json:"level"`
	CreatedAt          string `json:"created_at"`
}

func toCharacterResponse(c character.Character) characterResponse {
	return characterResponse{
		ID:                 c.ID,
		OwnerParticipantID: c.OwnerParticipantID,
		Name:               c.Name,
		Class:              c.Class,
		Level:              c.Level,
		CreatedAt:          c.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *Handler) handleCreateCharacter(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name  string `json:"name"`
		Class string `json:"class"`
		Level int    `json:"level"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	caller := participantID(r)
	if caller == "" {
		writeError(w, platformerrors.New(platformerrors.CodeParticipantIDRequired, "participant id is required"))
		return
	}
	c, err := h.characters.Create(r.Context(), character.CreateInput{
		OwnerParticipantID: caller,
		Name:               body.Name,
		Class:              body.Class,
		Level:              body.Level,
	})
	if err != nil {
		writeError(w, translateCharacterError(err))
		return
	}
	writeJSON(w, http.StatusCreated, toCharacterResponse(c))
}

func (h *Handler) handleListCharacters(w http.ResponseWriter, r *http.Request) {
	caller := participantID(r)
	if caller == "" {
		writeError(w, platformerrors.New(platformerrors.CodeParticipantIDRequired, "participant id is required"))
		return
	}
	list, err := h.characters.ListByOwner(r.Context(), caller)
	if err != nil {
		writeError(w, translateCharacterError(err))
		return
	}
	out := make([]characterResponse, 0, len(list))
	for _, c := range list {
		out = append(out, toCharacterResponse(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"characters": out})
}

func (h *Handler) handleGetCharacter(w http.ResponseWriter, r *http.Request) {
	c, err := h.characters.Get(r.Context(), r.PathValue("character"))
	if err != nil {
		writeError(w, translateCharacterError(err))
		return
	}
	writeJSON(w, http.StatusOK, toCharacterResponse(c))
}

func translateCharacterError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, character.ErrNotFound):
		return platformerrors.Wrap(platformerrors.CodeCharacterNotFound, "character not found", err)
	case errors.Is(err, character.ErrEmptyName), errors.Is(err, character.ErrEmptyOwner):
		return platformerrors.Wrap(platformerrors.CodeCharacterIDRequired, "character name and owner are required", err)
	default:
		return platformerrors.Wrap(platformerrors.CodeInternal, "character operation failed", err)
	}
}

type notificationResponse struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	Title       string `json:"title"`
	Body        string `json:"body,omitempty"`
	SessionID   string `json:"session_id,omitempty"`
	CharacterID string `json:"character_id,omitempty"`
	CreatedAt   string `json:"created_at"`
	ReadAt      string `json:"read_at,omitempty"`
}

func toNotificationResponse(n notification.Notification) notificationResponse {
	response := notificationResponse{
		ID:          n.ID,
		Kind:        string(n.Kind),
		Title:       n.Title,
		Body:        n.Body,
		SessionID:   n.SessionID,
		CharacterID: n.CharacterID,
		CreatedAt:   n.CreatedAt.UTC().Format(time.RFC3339),
	}
	if n.ReadAt != nil {
		response.ReadAt = n.ReadAt.UTC().Format(time.RFC3339)
	}
	return response
}

func (h *Handler) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	caller := participantID(r)
	if caller == "" {
		writeError(w, platformerrors.New(platformerrors.CodeParticipantIDRequired, "participant id is required"))
		return
	}
	list, err := h.notifications.ListByRecipient(r.Context(), caller)
	if err != nil {
		writeError(w, platformerrors.Wrap(platformerrors.CodeInternal, "list notifications", err))
		return
	}
	out := make([]notificationResponse, 0, len(list))
	for _, n := range list {
		out = append(out, toNotificationResponse(n))
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": out})
}

func (h *Handler) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.notifications.MarkRead(r.Context(), r.PathValue("notification"))
	if err != nil {
		if errors.Is(err, notification.ErrNotFound) {
			writeError(w, platformerrors.Wrap(platformerrors.CodeNotificationNotFound, "notification not found", err))
			return
		}
		writeError(w, platformerrors.Wrap(platformerrors.CodeInternal, "mark notification read", err))
		return
	}
	writeJSON(w, http.StatusOK, toNotificationResponse(n))
}
