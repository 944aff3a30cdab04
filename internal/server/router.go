package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/localizd/localizd/backend/internal/access"
	"github.com/localizd/localizd/backend/internal/branches"
)

const userIDContextKey = "localizd_user_id"

var (
	errMissingTokenManager  = errors.New("token manager dependency required")
	errMissingBranchService = errors.New("branch service dependency required")
	errInvalidAuthorization = errors.New("authorization header missing or invalid")
)

// TokenManager validates API bearer tokens.
type TokenManager interface {
	ValidateToken(token string) (string, error)
}

// AccessVerifier guards the per-project event stream.
type AccessVerifier interface {
	VerifyAccess(ctx context.Context, userID, projectID string, requiredRoles ...access.Role) (access.Role, error)
}

// Dependencies wires the HTTP surface to its collaborators.
type Dependencies struct {
	TokenManager  TokenManager
	BranchService *branches.Service
	Access        AccessVerifier
	Dispatcher    *EventDispatcher
	Logger        *zap.Logger
}

// NewHTTPHandler builds the gin router for the diff/merge API.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.TokenManager == nil {
		return nil, errMissingTokenManager
	}
	if deps.BranchService == nil {
		return nil, errMissingBranchService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		tokens:        deps.TokenManager,
		branchService: deps.BranchService,
		accessCheck:   deps.Access,
		dispatcher:    deps.Dispatcher,
		logger:        logger,
	}

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.POST("/branches/diff", handler.handleBranchDiff)
	protected.POST("/branches/merge", handler.handleBranchMerge)
	protected.GET("/projects/:projectID/events", handler.handleProjectEvents)

	return router, nil
}

type httpHandler struct {
	tokens        TokenManager
	branchService *branches.Service
	accessCheck   AccessVerifier
	dispatcher    *EventDispatcher
	logger        *zap.Logger
}

type branchRefPayload struct {
	BranchID string `json:"branch_id"`
	Name     string `json:"name"`
}

type diffRequestPayload struct {
	SourceBranchID string `json:"source_branch_id"`
	TargetBranchID string `json:"target_branch_id"`
}

type addedKeyPayload struct {
	Namespace    string            `json:"namespace"`
	Name         string            `json:"name"`
	Translations map[string]string `json:"translations"`
}

type deletedKeyPayload struct {
	Namespace             string            `json:"namespace"`
	Name                  string            `json:"name"`
	LastKnownTranslations map[string]string `json:"last_known_translations"`
}

type valueChangePayload struct {
	Namespace   string `json:"namespace"`
	Name        string `json:"name"`
	Language    string `json:"language"`
	SourceValue string `json:"source_value"`
	TargetValue string `json:"target_value"`
}

type diffResponsePayload struct {
	Source    branchRefPayload     `json:"source"`
	Target    branchRefPayload     `json:"target"`
	Added     []addedKeyPayload    `json:"added"`
	Modified  []valueChangePayload `json:"modified"`
	Deleted   []deletedKeyPayload  `json:"deleted"`
	Conflicts []valueChangePayload `json:"conflicts"`
}

type resolutionPayload struct {
	Namespace     string `json:"namespace"`
	Name          string `json:"name"`
	Language      string `json:"language"`
	Choice        string `json:"choice"`
	OverrideValue string `json:"override_value"`
}

type mergeRequestPayload struct {
	SourceBranchID     string              `json:"source_branch_id"`
	TargetBranchID     string              `json:"target_branch_id"`
	Resolutions        []resolutionPayload `json:"resolutions"`
	PropagateDeletions bool                `json:"propagate_deletions"`
}

type mergeResponsePayload struct {
	KeysAdded           int `json:"keys_added"`
	TranslationsUpdated int `json:"translations_updated"`
	KeysDeleted         int `json:"keys_deleted"`
	ConflictsResolved   int `json:"conflicts_resolved"`
}

type conflictRefPayload struct {
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
	Language  string `json:"language"`
}

func (h *httpHandler) handleBranchDiff(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}

	var request diffRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	sourceID, targetID, ok := parseBranchPair(c, request.SourceBranchID, request.TargetBranchID)
	if !ok {
		return
	}

	diff, err := h.branchService.ComputeDiff(c.Request.Context(), caller, sourceID, targetID)
	if err != nil {
		h.respondBranchError(c, "diff_failed", err)
		return
	}

	c.JSON(http.StatusOK, diffResponse(diff))
}

func (h *httpHandler) handleBranchMerge(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}

	var request mergeRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	sourceID, targetID, ok := parseBranchPair(c, request.SourceBranchID, request.TargetBranchID)
	if !ok {
		return
	}

	resolutions := make([]branches.Resolution, 0, len(request.Resolutions))
	for _, payload := range request.Resolutions {
		choice, err := branches.ParseResolutionChoice(payload.Choice)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_resolution_choice"})
			return
		}
		language, err := branches.NewLanguageCode(payload.Language)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_language"})
			return
		}
		resolutions = append(resolutions, branches.Resolution{
			Identity:      branches.KeyIdentity{Namespace: payload.Namespace, Name: payload.Name},
			Language:      language,
			Choice:        choice,
			OverrideValue: payload.OverrideValue,
		})
	}

	result, err := h.branchService.MergeBranches(
		c.Request.Context(),
		caller,
		sourceID,
		targetID,
		resolutions,
		branches.MergeOptions{PropagateDeletions: request.PropagateDeletions},
	)
	if err != nil {
		h.respondBranchError(c, "merge_failed", err)
		return
	}

	c.JSON(http.StatusOK, mergeResponsePayload{
		KeysAdded:           result.KeysAdded,
		TranslationsUpdated: result.TranslationsUpdated,
		KeysDeleted:         result.KeysDeleted,
		ConflictsResolved:   result.ConflictsResolved,
	})
}

func (h *httpHandler) handleProjectEvents(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	if h.dispatcher == nil || h.accessCheck == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "events_unavailable"})
		return
	}

	projectID := strings.TrimSpace(c.Param("projectID"))
	if projectID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_project_id"})
		return
	}
	if _, err := h.accessCheck.VerifyAccess(c.Request.Context(), caller.String(), projectID, access.RoleViewer); err != nil {
		h.respondBranchError(c, "events_failed", err)
		return
	}

	stream, cancel := h.dispatcher.Subscribe(c.Request.Context(), projectID)
	defer cancel()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Stream(func(w io.Writer) bool {
		select {
		case event, open := <-stream:
			if !open {
				return false
			}
			c.SSEvent(mergeEventStream, gin.H{
				"source_branch_id":     event.SourceBranchID,
				"target_branch_id":     event.TargetBranchID,
				"actor_id":             event.ActorID,
				"keys_added":           event.Counts.KeysAdded,
				"translations_updated": event.Counts.TranslationsUpdated,
				"keys_deleted":         event.Counts.KeysDeleted,
				"conflicts_resolved":   event.Counts.ConflictsResolved,
				"occurred_at":          event.OccurredAt.UTC().Format(time.RFC3339),
			})
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	subject, err := h.tokens.ValidateToken(token)
	if err != nil {
		h.logger.Warn("token validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(userIDContextKey, subject)
	c.Next()
}

func (h *httpHandler) caller(c *gin.Context) (branches.UserID, bool) {
	caller, err := branches.NewUserID(c.GetString(userIDContextKey))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return "", false
	}
	return caller, true
}

// respondBranchError maps the engine's error taxonomy onto HTTP statuses.
func (h *httpHandler) respondBranchError(c *gin.Context, fallback string, err error) {
	var validation *branches.ValidationError
	switch {
	case errors.Is(err, branches.ErrBranchNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "branch_not_found"})
	case errors.Is(err, access.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.As(err, &validation):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":      "invalid_resolutions",
			"missing":    conflictRefs(validation.Missing),
			"extraneous": conflictRefs(validation.Extraneous),
		})
	default:
		h.logger.Error("branch request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}

func parseBranchPair(c *gin.Context, rawSource, rawTarget string) (branches.BranchID, branches.BranchID, bool) {
	sourceID, err := branches.NewBranchID(rawSource)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_source_branch_id"})
		return "", "", false
	}
	targetID, err := branches.NewBranchID(rawTarget)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_target_branch_id"})
		return "", "", false
	}
	return sourceID, targetID, true
}

func diffResponse(diff branches.BranchDiffResult) diffResponsePayload {
	response := diffResponsePayload{
		Source:    branchRefPayload{BranchID: diff.Source.BranchID, Name: diff.Source.Name},
		Target:    branchRefPayload{BranchID: diff.Target.BranchID, Name: diff.Target.Name},
		Added:     make([]addedKeyPayload, 0, len(diff.Added)),
		Modified:  make([]valueChangePayload, 0, len(diff.Modified)),
		Deleted:   make([]deletedKeyPayload, 0, len(diff.Deleted)),
		Conflicts: make([]valueChangePayload, 0, len(diff.Conflicts)),
	}
	for _, added := range diff.Added {
		response.Added = append(response.Added, addedKeyPayload{
			Namespace:    added.Identity.Namespace,
			Name:         added.Identity.Name,
			Translations: languageValues(added.Translations),
		})
	}
	for _, change := range diff.Modified {
		response.Modified = append(response.Modified, valueChange(change))
	}
	for _, deleted := range diff.Deleted {
		response.Deleted = append(response.Deleted, deletedKeyPayload{
			Namespace:             deleted.Identity.Namespace,
			Name:                  deleted.Identity.Name,
			LastKnownTranslations: languageValues(deleted.LastKnownTranslations),
		})
	}
	for _, change := range diff.Conflicts {
		response.Conflicts = append(response.Conflicts, valueChange(change))
	}
	return response
}

func valueChange(change branches.ValueChange) valueChangePayload {
	return valueChangePayload{
		Namespace:   change.Identity.Namespace,
		Name:        change.Identity.Name,
		Language:    change.Language.String(),
		SourceValue: change.SourceValue,
		TargetValue: change.TargetValue,
	}
}

func languageValues(values map[branches.LanguageCode]string) map[string]string {
	out := make(map[string]string, len(values))
	for language, value := range values {
		out[language.String()] = value
	}
	return out
}

func conflictRefs(refs []branches.ConflictRef) []conflictRefPayload {
	out := make([]conflictRefPayload, 0, len(refs))
	for _, ref := range refs {
		out = append(out, conflictRefPayload{
			Namespace: ref.Identity.Namespace,
			Name:      ref.Identity.Name,
			Language:  ref.Language.String(),
		})
	}
	return out
}
