// Package httpapi serves the JSON REST surface of the gateway: signup and
// profiles, the confession feed, comments and reactions, subscriptions,
// and content reports. The random chat flow stays on the WebSocket side.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/silentcircle/backend/internal/auth"
	"github.com/silentcircle/backend/internal/chat"
	"github.com/silentcircle/backend/internal/comment"
	"github.com/silentcircle/backend/internal/confession"
	"github.com/silentcircle/backend/internal/entitlement"
	"github.com/silentcircle/backend/internal/metrics"
	"github.com/silentcircle/backend/internal/moderation"
	"github.com/silentcircle/backend/internal/profile"
	"github.com/silentcircle/backend/internal/ratelimit"
	"github.com/silentcircle/backend/internal/reaction"
	"github.com/silentcircle/backend/internal/report"
	"github.com/silentcircle/backend/internal/room"
	"github.com/silentcircle/backend/internal/session"
)

const requestTimeout = 5 * time.Second

// API bundles the stores behind the REST endpoints.
type API struct {
	verifier    *auth.Verifier
	profiles    *profile.Store
	confessions *confession.Store
	comments    *comment.Store
	reactions   *reaction.Store
	ents        *entitlement.Store
	reports     *report.Store
	rooms       *room.Store
	chats       *chat.Store
	sessions    *session.Store
	limiter     *ratelimit.Limiter
	filter      *moderation.Filter
	onPosted    func(c *confession.Confession)
}

// SetOnConfessionPosted installs a hook invoked after a confession is
// stored, used to fan the new post out to connected clients.
func (a *API) SetOnConfessionPosted(fn func(c *confession.Confession)) {
	a.onPosted = fn
}

// New creates the API. Every dependency is required except limiter and
// filter, which may be nil in tests.
func New(
	verifier *auth.Verifier,
	profiles *profile.Store,
	confessions *confession.Store,
	comments *comment.Store,
	reactions *reaction.Store,
	ents *entitlement.Store,
	reports *report.Store,
	rooms *room.Store,
	chats *chat.Store,
	sessions *session.Store,
	limiter *ratelimit.Limiter,
	filter *moderation.Filter,
) *API {
	return &API{
		verifier:    verifier,
		profiles:    profiles,
		confessions: confessions,
		comments:    comments,
		reactions:   reactions,
		ents:        ents,
		reports:     reports,
		rooms:       rooms,
		chats:       chats,
		sessions:    sessions,
		limiter:     limiter,
		filter:      filter,
	}
}

// Register attaches every route to the mux.
func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/signup", a.handleSignup)

	authed := a.verifier.Middleware
	mux.HandleFunc("GET /api/me", authed(a.handleGetMe))
	mux.HandleFunc("PATCH /api/me", authed(a.handleUpdateMe))
	mux.HandleFunc("POST /api/me/gender", authed(a.handleSetGender))
	mux.HandleFunc("GET /api/online", authed(a.handleOnline))

	mux.HandleFunc("GET /api/rooms/{id}/messages", authed(a.handleRoomMessages))

	mux.HandleFunc("GET /api/confessions", authed(a.handleFeed))
	mux.HandleFunc("POST /api/confessions", authed(a.handlePostConfession))
	mux.HandleFunc("GET /api/confessions/search", authed(a.handleSearch))
	mux.HandleFunc("GET /api/confessions/random-voice", authed(a.handleRandomVoice))
	mux.HandleFunc("GET /api/confessions/{id}", authed(a.handleGetConfession))
	mux.HandleFunc("DELETE /api/confessions/{id}", authed(a.handleDeleteConfession))
	mux.HandleFunc("POST /api/confessions/{id}/reactions", authed(a.handleReactConfession))
	mux.HandleFunc("GET /api/confessions/{id}/comments", authed(a.handleListComments))
	mux.HandleFunc("POST /api/confessions/{id}/comments", authed(a.handlePostComment))

	mux.HandleFunc("DELETE /api/comments/{id}", authed(a.handleDeleteComment))
	mux.HandleFunc("POST /api/comments/{id}/reactions", authed(a.handleReactComment))

	mux.HandleFunc("GET /api/plans", a.handlePlans)
	mux.HandleFunc("GET /api/subscription", authed(a.handleCurrentSubscription))
	mux.HandleFunc("POST /api/subscription", authed(a.handleSubscribe))
	mux.HandleFunc("DELETE /api/subscription", authed(a.handleCancelSubscription))

	mux.HandleFunc("POST /api/reports", authed(a.handleReport))
}

// --- helpers ---------------------------------------------------------------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[api] encode response failed: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return false
	}
	return true
}

// allow applies a rate limit rule keyed by user, answering 429 on refusal.
func (a *API) allow(w http.ResponseWriter, r *http.Request, rule ratelimit.Rule) bool {
	if a.limiter == nil {
		return true
	}
	ok, err := a.limiter.Allow(r.Context(), auth.UserID(r.Context()), rule)
	if err != nil {
		log.Printf("[api] rate limit check failed: %v", err)
		return true
	}
	if !ok {
		writeError(w, http.StatusTooManyRequests, "rate_limited")
		return false
	}
	return true
}

func reqContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), requestTimeout)
}

// --- signup and profile ---------------------------------------------------

type signupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Gender   string `json:"gender"`
	Country  string `json:"country"`
}

func (a *API) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Username == "" {
		writeError(w, http.StatusBadRequest, "username_required")
		return
	}
	if a.filter != nil {
		if res := a.filter.Check(req.Username); res.Blocked {
			writeError(w, http.StatusUnprocessableEntity, "username_not_allowed")
			return
		}
	}

	u := &profile.User{
		Username: req.Username,
		Email:    req.Email,
		Gender:   req.Gender,
		Country:  req.Country,
	}

	ctx, cancel := reqContext(r)
	defer cancel()
	if err := a.profiles.Create(ctx, u); err != nil {
		switch {
		case errors.Is(err, profile.ErrUsernameTaken):
			writeError(w, http.StatusConflict, "username_taken")
		case errors.Is(err, profile.ErrInvalidGender):
			writeError(w, http.StatusBadRequest, "invalid_gender")
		default:
			log.Printf("[api] signup failed: %v", err)
			writeError(w, http.StatusInternalServerError, "internal")
		}
		return
	}

	token, err := a.verifier.Issue(u.ID)
	if err != nil {
		log.Printf("[api] token issue failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"user":  userView(u),
		"token": token,
	})
}

func userView(u *profile.User) map[string]any {
	return map[string]any{
		"id":          u.ID,
		"username":    u.Username,
		"gender":      u.Gender,
		"country":     u.Country,
		"avatar_url":  u.AvatarURL,
		"is_verified": u.IsVerified,
		"plan":        u.SubscriptionType,
		"language":    u.LanguagePreference,
		"created_at":  u.CreatedAt,
	}
}

func (a *API) handleGetMe(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := reqContext(r)
	defer cancel()

	u, err := a.profiles.Get(ctx, auth.UserID(r.Context()))
	if err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}
		log.Printf("[api] get profile failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal")
		return
	}
	writeJSON(w, http.StatusOK, userView(u))
}

type updateMeRequest struct {
	Gender    *string `json:"gender"`
	Country   *string `json:"country"`
	AvatarURL *string `json:"avatar_url"`
	Language  *string `json:"language"`
}

func (a *API) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	var req updateMeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ctx, cancel := reqContext(r)
	defer cancel()

	u, err := a.profiles.Get(ctx, auth.UserID(r.Context()))
	if err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal")
		return
	}

	if req.Gender != nil {
		u.Gender = *req.Gender
	}
	if req.Country != nil {
		u.Country = *req.Country
	}
	if req.AvatarURL != nil {
		u.AvatarURL = *req.AvatarURL
	}
	if req.Language != nil {
		u.LanguagePreference = *req.Language
	}

	if err := a.profiles.Update(ctx, u); err != nil {
		if errors.Is(err, profile.ErrInvalidGender) {
			writeError(w, http.StatusBadRequest, "invalid_gender")
			return
		}
		log.Printf("[api] update profile failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal")
		return
	}
	writeJSON(w, http.StatusOK, userView(u))
}

// handleSetGender is the onboarding step: gender is picked once, before
// the first filtered search.
func (a *API) handleSetGender(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Gender string `json:"gender"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	ctx, cancel := reqContext(r)
	defer cancel()
	if err := a.profiles.SetGender(ctx, auth.UserID(r.Context()), req.Gender); err != nil {
		switch {
		case errors.Is(err, profile.ErrInvalidGender):
			writeError(w, http.StatusBadRequest, "invalid_gender")
		case errors.Is(err, profile.ErrNotFound):
			writeError(w, http.StatusNotFound, "not_found")
		default:
			log.Printf("[api] set gender failed: %v", err)
			writeError(w, http.StatusInternalServerError, "internal")
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- room history ----------------------------------------------------------

type messageView struct {
	ID        string         `json:"id"`
	Mine      bool           `json:"mine"`
	Type      string         `json:"type"`
	Text      string         `json:"text,omitempty"`
	AudioURL  string         `json:"audio_url,omitempty"`
	Reactions map[string]int `json:"reactions,omitempty"`
	SentAt    time.Time      `json:"sent_at"`
}

// handleRoomMessages is the polling fallback and session-resume read for
// clients without a live subscription. Only participants may read a room.
func (a *API) handleRoomMessages(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := reqContext(r)
	defer cancel()

	viewerID := auth.UserID(r.Context())
	rm, err := a.rooms.Get(ctx, r.PathValue("id"))
	if err != nil {
		if errors.Is(err, room.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}
		log.Printf("[api] get room failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal")
		return
	}
	if !rm.IsParticipant(viewerID) {
		writeError(w, http.StatusForbidden, "not_participant")
		return
	}

	var after time.Time
	if v := r.URL.Query().Get("after"); v != "" {
		after, err = time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_after")
			return
		}
	}
	limit, _ := parsePage(r)
	if limit <= 0 || limit > 200 {
		limit = 200
	}

	list, err := a.chats.ListSince(ctx, rm.ID, after, limit)
	if err != nil {
		log.Printf("[api] room history failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal")
		return
	}

	views := make([]messageView, 0, len(list))
	for _, m := range list {
		views = append(views, messageView{
			ID:        m.ID,
			Mine:      m.SenderID == viewerID,
			Type:      m.Type,
			Text:      m.Text,
			AudioURL:  m.AudioURL,
			Reactions: m.Reactions,
			SentAt:    m.SentAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"messages": views,
		"active":   rm.IsActive,
	})
}

func (a *API) handleOnline(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := reqContext(r)
	defer cancel()

	count, err := a.sessions.OnlineCount(ctx)
	if err != nil {
		log.Printf("[api] online count failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"online": count})
}

// --- confessions ----------------------------------------------------------

type confessionView struct {
	ID                string    `json:"id"`
	Type              string    `json:"type"`
	Title             string    `json:"title,omitempty"`
	Content           string    `json:"content,omitempty"`
	Category          string    `json:"category"`
	AudioURL          string    `json:"audio_url,omitempty"`
	RecordingDuration int       `json:"recording_duration,omitempty"`
	IsBoosted         bool      `json:"is_boosted"`
	Mine              bool      `json:"mine"`
	CreatedAt         time.Time `json:"created_at"`
}

func toConfessionView(c *confession.Confession, viewerID string) confessionView {
	return confessionView{
		ID:                c.ID,
		Type:              c.Type,
		Title:             c.Title,
		Content:           c.Content,
		Category:          c.Category,
		AudioURL:          c.AudioURL,
		RecordingDuration: c.RecordingDuration,
		IsBoosted:         c.IsBoosted,
		Mine:              c.UserID == viewerID,
		CreatedAt:         c.CreatedAt,
	}
}

func parsePage(r *http.Request) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (a *API) handleFeed(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePage(r)
	category := r.URL.Query().Get("category")

	ctx, cancel := reqContext(r)
	defer cancel()

	list, err := a.confessions.Feed(ctx, category, limit, offset)
	if err != nil {
		if errors.Is(err, confession.ErrInvalidCategory) {
			writeError(w, http.StatusBadRequest, "invalid_category")
			return
		}
		log.Printf("[api] feed failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal")
		return
	}

	viewerID := auth.UserID(r.Context())
	views := make([]confessionView, 0, len(list))
	for _, c := range list {
		views = append(views, toConfessionView(c, viewerID))
	}
	writeJSON(w, http.StatusOK, map[string]any{"confessions": views})
}

type postConfessionRequest struct {
	Type              string `json:"type"`
	Title             string `json:"title"`
	Content           string `json:"content"`
	Category          string `json:"category"`
	AudioURL          string `json:"audio_url"`
	AudioQuality      string `json:"audio_quality"`
	RecordingDuration int    `json:"recording_duration"`
}

func (a *API) handlePostConfession(w http.ResponseWriter, r *http.Request) {
	if !a.allow(w, r, ratelimit.RulePost) {
		return
	}

	var req postConfessionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if a.filter != nil {
		if res := a.filter.CheckAll(req.Title, req.Content); res.Blocked {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
				"error":  "content_blocked",
				"reason": res.Reason,
			})
			return
		}
	}

	c := &confession.Confession{
		UserID:            auth.UserID(r.Context()),
		Type:              req.Type,
		Title:             req.Title,
		Content:           req.Content,
		Category:          req.Category,
		AudioURL:          req.AudioURL,
		AudioQuality:      req.AudioQuality,
		RecordingDuration: req.RecordingDuration,
	}
	if c.Type == "" {
		c.Type = confession.TypeText
	}

	ctx, cancel := reqContext(r)
	defer cancel()
	if err := a.confessions.Create(ctx, c); err != nil {
		switch {
		case errors.Is(err, confession.ErrInvalidCategory):
			writeError(w, http.StatusBadRequest, "invalid_category")
		case errors.Is(err, confession.ErrEmptyContent):
			writeError(w, http.StatusBadRequest, "empty_content")
		case errors.Is(err, confession.ErrContentTooLong):
			writeError(w, http.StatusBadRequest, "content_too_long")
		default:
			log.Printf("[api] post confession failed: %v", err)
			writeError(w, http.StatusInternalServerError, "internal")
		}
		return
	}

	metrics.ConfessionsTotal.WithLabelValues(c.Type).Inc()
	if a.onPosted != nil {
		a.onPosted(c)
	}

	writeJSON(w, http.StatusCreated, toConfessionView(c, c.UserID))
}

func (a *API) handleGetConfession(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := reqContext(r)
	defer cancel()

	c, err := a.confessions.Get(ctx, r.PathValue("id"))
	if err != nil {
		if errors.Is(err, confession.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}
		log.Printf("[api] get confession failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal")
		return
	}

	counts, err := a.reactions.ConfessionCounts(ctx, c.ID)
	if err != nil {
		log.Printf("[api] reaction counts failed: %v", err)
		counts = map[string]int{}
	}
	commentCount, err := a.comments.Count(ctx, c.ID)
	if err != nil {
		log.Printf("[api] comment count failed: %v", err)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"confession": toConfessionView(c, auth.UserID(r.Context())),
		"reactions":  counts,
		"comments":   commentCount,
	})
}

func (a *API) handleDeleteConfession(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := reqContext(r)
	defer cancel()

	c, err := a.confessions.Get(ctx, r.PathValue("id"))
	if err != nil {
		if errors.Is(err, confession.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal")
		return
	}
	if c.UserID != auth.UserID(r.Context()) {
		writeError(w, http.StatusForbidden, "not_owner")
		return
	}

	if err := a.confessions.SoftDelete(ctx, c.ID); err != nil {
		log.Printf("[api] delete confession failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleSearch(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("q")
	if term == "" {
		writeError(w, http.StatusBadRequest, "query_required")
		return
	}
	limit, _ := parsePage(r)

	ctx, cancel := reqContext(r)
	defer cancel()

	list, err := a.confessions.Search(ctx, term, limit)
	if err != nil {
		log.Printf("[api] search failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal")
		return
	}

	viewerID := auth.UserID(r.Context())
	views := make([]confessionView, 0, len(list))
	for _, c := range list {
		views = append(views, toConfessionView(c, viewerID))
	}
	writeJSON(w, http.StatusOK, map[string]any{"confessions": views})
}

func (a *API) handleRandomVoice(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := reqContext(r)
	defer cancel()

	c, err := a.confessions.RandomVoice(ctx, auth.UserID(r.Context()))
	if err != nil {
		if errors.Is(err, confession.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no_voice_confessions")
			return
		}
		log.Printf("[api] random voice failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal")
		return
	}
	writeJSON(w, http.StatusOK, toConfessionView(c, auth.UserID(r.Context())))
}

// --- reactions ------------------------------------------------------------

type reactRequest struct {
	Type string `json:"type"`
}

func (a *API) handleReactConfession(w http.ResponseWriter, r *http.Request) {
	a.handleReact(w, r, true)
}

func (a *API) handleReactComment(w http.ResponseWriter, r *http.Request) {
	a.handleReact(w, r, false)
}

func (a *API) handleReact(w http.ResponseWriter, r *http.Request, onConfession bool) {
	var req reactRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ctx, cancel := reqContext(r)
	defer cancel()

	userID := auth.UserID(r.Context())
	contentID := r.PathValue("id")

	var (
		added bool
		err   error
	)
	if onConfession {
		added, err = a.reactions.ToggleConfession(ctx, contentID, userID, req.Type)
	} else {
		added, err = a.reactions.ToggleComment(ctx, contentID, userID, req.Type)
	}
	if err != nil {
		if errors.Is(err, reaction.ErrInvalidType) {
			writeError(w, http.StatusBadRequest, "invalid_reaction")
			return
		}
		log.Printf("[api] toggle reaction failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"added": added})
}

// --- comments -------------------------------------------------------------

type commentView struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Mine      bool      `json:"mine"`
	CreatedAt time.Time `json:"created_at"`
}

func (a *API) handleListComments(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePage(r)

	ctx, cancel := reqContext(r)
	defer cancel()

	list, err := a.comments.List(ctx, r.PathValue("id"), limit, offset)
	if err != nil {
		log.Printf("[api] list comments failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal")
		return
	}

	viewerID := auth.UserID(r.Context())
	views := make([]commentView, 0, len(list))
	for _, c := range list {
		views = append(views, commentView{
			ID:        c.ID,
			Content:   c.Content,
			Mine:      c.UserID == viewerID,
			CreatedAt: c.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"comments": views})
}

type postCommentRequest struct {
	Content string `json:"content"`
}

func (a *API) handlePostComment(w http.ResponseWriter, r *http.Request) {
	if !a.allow(w, r, ratelimit.RuleComment) {
		return
	}

	var req postCommentRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if a.filter != nil {
		if res := a.filter.Check(req.Content); res.Blocked {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
				"error":  "content_blocked",
				"reason": res.Reason,
			})
			return
		}
	}

	c := &comment.Comment{
		ConfessionID: r.PathValue("id"),
		UserID:       auth.UserID(r.Context()),
		Content:      req.Content,
	}

	ctx, cancel := reqContext(r)
	defer cancel()
	if err := a.comments.Create(ctx, c); err != nil {
		switch {
		case errors.Is(err, comment.ErrEmptyContent):
			writeError(w, http.StatusBadRequest, "empty_content")
		case errors.Is(err, comment.ErrTooLong):
			writeError(w, http.StatusBadRequest, "content_too_long")
		default:
			log.Printf("[api] post comment failed: %v", err)
			writeError(w, http.StatusInternalServerError, "internal")
		}
		return
	}

	writeJSON(w, http.StatusCreated, commentView{
		ID:        c.ID,
		Content:   c.Content,
		Mine:      true,
		CreatedAt: c.CreatedAt,
	})
}

func (a *API) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := reqContext(r)
	defer cancel()

	err := a.comments.SoftDelete(ctx, r.PathValue("id"), auth.UserID(r.Context()))
	if err != nil {
		if errors.Is(err, comment.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}
		log.Printf("[api] delete comment failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- subscriptions --------------------------------------------------------

func (a *API) handlePlans(w http.ResponseWriter, r *http.Request) {
	country := r.URL.Query().Get("country")

	type planView struct {
		Type     string  `json:"type"`
		Days     int     `json:"days"`
		Price    float64 `json:"price"`
		Currency string  `json:"currency"`
	}

	views := make([]planView, 0, len(entitlement.Plans))
	for _, p := range entitlement.Plans {
		price, currency := p.PriceFor(country)
		views = append(views, planView{
			Type:     p.Type,
			Days:     int(p.Duration.Hours() / 24),
			Price:    price,
			Currency: currency,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"plans": views})
}

func subscriptionView(sub *entitlement.Subscription) map[string]any {
	return map[string]any{
		"id":         sub.ID,
		"plan":       sub.PlanType,
		"status":     sub.Status,
		"starts_at":  sub.StartsAt,
		"expires_at": sub.ExpiresAt,
		"amount":     sub.Amount,
		"currency":   sub.Currency,
	}
}

func (a *API) handleCurrentSubscription(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := reqContext(r)
	defer cancel()

	sub, err := a.ents.Current(ctx, auth.UserID(r.Context()))
	if err != nil {
		if errors.Is(err, entitlement.ErrNoActivePlan) {
			writeError(w, http.StatusNotFound, "no_subscription")
			return
		}
		log.Printf("[api] current subscription failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal")
		return
	}
	writeJSON(w, http.StatusOK, subscriptionView(sub))
}

type subscribeRequest struct {
	PlanType      string `json:"plan_type"`
	Country       string `json:"country"`
	PaymentMethod string `json:"payment_method"`
	PaymentID     string `json:"payment_id"`
}

func (a *API) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ctx, cancel := reqContext(r)
	defer cancel()

	sub, err := a.ents.Activate(ctx, auth.UserID(r.Context()), req.PlanType, req.Country, req.PaymentMethod, req.PaymentID)
	if err != nil {
		if errors.Is(err, entitlement.ErrUnknownPlan) {
			writeError(w, http.StatusBadRequest, "unknown_plan")
			return
		}
		log.Printf("[api] subscribe failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal")
		return
	}
	writeJSON(w, http.StatusCreated, subscriptionView(sub))
}

func (a *API) handleCancelSubscription(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := reqContext(r)
	defer cancel()

	err := a.ents.Cancel(ctx, auth.UserID(r.Context()))
	if err != nil {
		if errors.Is(err, entitlement.ErrNoActivePlan) {
			writeError(w, http.StatusNotFound, "no_subscription")
			return
		}
		log.Printf("[api] cancel subscription failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- reports --------------------------------------------------------------

type reportRequest struct {
	ContentType string `json:"content_type"`
	ContentID   string `json:"content_id"`
	Reason      string `json:"reason"`
}

func (a *API) handleReport(w http.ResponseWriter, r *http.Request) {
	if !a.allow(w, r, ratelimit.RuleReport) {
		return
	}

	var req reportRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ctx, cancel := reqContext(r)
	defer cancel()

	rep, err := a.reports.File(ctx, req.ContentType, req.ContentID, req.Reason, auth.UserID(r.Context()), nil)
	if err != nil {
		switch {
		case errors.Is(err, report.ErrInvalidReason), errors.Is(err, report.ErrInvalidContent):
			writeError(w, http.StatusBadRequest, "invalid_report")
		default:
			log.Printf("[api] file report failed: %v", err)
			writeError(w, http.StatusInternalServerError, "internal")
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"id": rep.ID, "status": rep.Status})
}
