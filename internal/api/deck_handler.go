package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/phrazzld/scry-decks/internal/api/shared"
	"github.com/phrazzld/scry-decks/internal/domain"
	"github.com/phrazzld/scry-decks/internal/platform/logger"
	"github.com/phrazzld/scry-decks/internal/service/deckgen"
	"github.com/phrazzld/scry-decks/internal/store"
)

const (
	// multipartMemory is how much of an upload is buffered in memory before
	// spilling to temporary files.
	multipartMemory = 8 << 20

	// multipartOverhead allows for form fields and part headers on top of
	// the document itself.
	multipartOverhead = 1 << 20

	// jsonEnvelopeOverhead covers the JSON fields around a base64 source.
	jsonEnvelopeOverhead = 1 << 20

	docxMIME = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// DeckGenerator runs the generation pipeline. *deckgen.Pipeline satisfies it.
type DeckGenerator interface {
	Run(ctx context.Context, userID uuid.UUID, req domain.GenerationRequest) (*domain.GeneratedDeck, error)
	GenerateAndStore(ctx context.Context, userID uuid.UUID, req domain.GenerationRequest) (*domain.Deck, error)
}

var _ DeckGenerator = (*deckgen.Pipeline)(nil)

// DeckHandlerConfig tunes request handling for the deck routes.
type DeckHandlerConfig struct {
	// ExposeErrorDetails includes raw model output in error bodies.
	ExposeErrorDetails bool

	// MaxUploadBytes bounds multipart document uploads.
	MaxUploadBytes int64
}

// DeckHandler handles deck generation and saved-deck requests.
type DeckHandler struct {
	generator      DeckGenerator
	decks          store.DeckStore
	exposeDetails  bool
	maxUploadBytes int64
	maxJSONBytes   int64
	logger         *slog.Logger
}

// jsonBodyLimit sizes the JSON generate route so a base64 document as large as
// a multipart upload still fits, with room for the other fields.
func jsonBodyLimit(maxUpload int64) int64 {
	limit := int64(base64.StdEncoding.EncodedLen(int(maxUpload))) + jsonEnvelopeOverhead
	return max(limit, shared.MaxJSONBodyBytes)
}

// NewDeckHandler creates a new DeckHandler.
func NewDeckHandler(generator DeckGenerator, decks store.DeckStore, cfg DeckHandlerConfig, logger *slog.Logger) *DeckHandler {
	if logger == nil {
		logger = slog.Default()
	}
	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}
	return &DeckHandler{
		generator:      generator,
		decks:          decks,
		exposeDetails:  cfg.ExposeErrorDetails,
		maxUploadBytes: maxUpload,
		maxJSONBytes:   jsonBodyLimit(maxUpload),
		logger:         logger.With("component", "deck_handler"),
	}
}

// GenerateDeck handles POST /api/generate-deck.
//
// The source arrives either as JSON or as a multipart upload. With
// ?save=true the generated deck is also stored and 201 is returned.
func (h *DeckHandler) GenerateDeck(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	req, err := h.decodeGenerateRequest(w, r)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			shared.RespondWithError(w, r, http.StatusRequestEntityTooLarge, "The uploaded source is too large.",
				shared.WithKind(string(domain.KindInvalidRequest)))
			return
		}
		respondWithPipelineError(w, r, requestFailure(err), h.exposeDetails)
		return
	}

	save := false
	if v := r.URL.Query().Get("save"); v != "" {
		if save, err = strconv.ParseBool(v); err != nil {
			respondWithPipelineError(w, r, requestFailure(domain.NewRequestError("save", "save must be true or false")),
				h.exposeDetails)
			return
		}
	}

	log.Debug("deck generation requested",
		slog.String("user_id", userID.String()),
		slog.String("source_kind", string(req.SourceKind)),
		slog.Bool("save", save))

	if save {
		deck, err := h.generator.GenerateAndStore(r.Context(), userID, req)
		if err != nil {
			respondWithPipelineError(w, r, err, h.exposeDetails)
			return
		}
		shared.RespondWithJSON(w, r, http.StatusCreated, newSavedDeckResponse(deck))
		return
	}

	deck, err := h.generator.Run(r.Context(), userID, req)
	if err != nil {
		respondWithPipelineError(w, r, err, h.exposeDetails)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, newGeneratedDeckResponse(deck))
}

func (h *DeckHandler) decodeGenerateRequest(w http.ResponseWriter, r *http.Request) (domain.GenerationRequest, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		return h.decodeMultipart(w, r)
	}

	var body GenerateDeckRequest
	if err := shared.DecodeJSONWithLimit(w, r, &body, h.maxJSONBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return domain.GenerationRequest{}, err
		}
		return domain.GenerationRequest{}, domain.NewRequestError("body", "request body must be a JSON object")
	}
	return body.ToDomain(), nil
}

func (h *DeckHandler) decodeMultipart(w http.ResponseWriter, r *http.Request) (domain.GenerationRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return domain.GenerationRequest{}, err
		}
		return domain.GenerationRequest{}, domain.NewRequestError("body", "malformed multipart form")
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	body := GenerateDeckRequest{
		SourceKind:    r.FormValue("sourceKind"),
		SourceContent: r.FormValue("sourceContent"),
		DeckTitle:     r.FormValue("deckTitle"),
	}
	if opts := strings.TrimSpace(r.FormValue("options")); opts != "" {
		if err := json.Unmarshal([]byte(opts), &body.Options); err != nil {
			return domain.GenerationRequest{}, domain.NewRequestError("options", "options must be a JSON object")
		}
	}

	file, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return body.ToDomain(), nil
	}
	if err != nil {
		return domain.GenerationRequest{}, domain.NewRequestError("file", "file could not be read")
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(io.LimitReader(file, h.maxUploadBytes+1))
	if err != nil {
		return domain.GenerationRequest{}, domain.NewRequestError("file", "file could not be read")
	}
	if int64(len(data)) > h.maxUploadBytes {
		return domain.GenerationRequest{}, &http.MaxBytesError{Limit: h.maxUploadBytes}
	}

	if strings.TrimSpace(body.SourceKind) == "" {
		body.SourceKind = string(inferSourceKind(data))
	}
	if strings.TrimSpace(body.DeckTitle) == "" && header != nil {
		body.DeckTitle = strings.TrimSuffix(filepath.Base(header.Filename), filepath.Ext(header.Filename))
	}

	req := body.ToDomain()
	if kind, err := domain.ParseSourceKind(body.SourceKind); err == nil && kind == domain.SourceText {
		req.SourceKind = kind
		req.SourceContent = string(data)
	} else {
		req.SourceBytes = data
	}
	return req, nil
}

// inferSourceKind guesses the kind of an upload from its content. An empty
// result leaves the request to fail validation.
func inferSourceKind(data []byte) domain.SourceKind {
	mt := mimetype.Detect(data)
	switch {
	case mt.Is("application/pdf"):
		return domain.SourcePDF
	case mt.Is(docxMIME):
		return domain.SourceDOCX
	}
	for m := mt; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return domain.SourceText
		}
	}
	return ""
}

// requestFailure converts a decoding or validation failure into a
// pipeline error so it is reported like any other generation failure.
func requestFailure(err error) *deckgen.PipelineError {
	kind, ok := domain.KindOf(err)
	if !ok {
		kind = domain.KindInvalidRequest
	}
	pe := &deckgen.PipelineError{Kind: kind, Message: "The request is invalid.", Err: err}
	var reqErr *domain.RequestError
	if errors.As(err, &reqErr) {
		pe.Message = reqErr.Reason
		pe.Details = map[string]any{deckgen.DetailField: reqErr.Field}
	}
	return pe
}

// ListDecks handles GET /api/decks.
func (h *DeckHandler) ListDecks(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	decks, err := h.decks.ListDecks(r.Context(), userID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	resp := make([]DeckResponse, 0, len(decks))
	for _, d := range decks {
		resp = append(resp, newDeckResponse(d, false))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// GetDeck handles GET /api/decks/{id}.
func (h *DeckHandler) GetDeck(w http.ResponseWriter, r *http.Request) {
	userID, deckID, ok := handleUserIDAndPathUUID(w, r, "id")
	if !ok {
		return
	}

	deck, err := h.decks.GetDeck(r.Context(), userID, deckID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, newDeckResponse(deck, true))
}

// CreateDeck handles POST /api/decks with a client-supplied deck.
func (h *DeckHandler) CreateDeck(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req CreateDeckRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return
	}

	deck, err := domain.NewDeck(userID, req.Title, req.Description, req.Tags, req.IsPublic, req.cards())
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid deck data", err)
		return
	}

	if err := h.decks.CreateDeck(r.Context(), deck); err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	log.Info("deck created",
		slog.String("user_id", userID.String()),
		slog.String("deck_id", deck.ID.String()),
		slog.Int("card_count", len(deck.Cards)))
	shared.RespondWithJSON(w, r, http.StatusCreated, newDeckResponse(deck, true))
}

// DeleteDeck handles DELETE /api/decks/{id}.
func (h *DeckHandler) DeleteDeck(w http.ResponseWriter, r *http.Request) {
	userID, deckID, ok := handleUserIDAndPathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.decks.DeleteDeck(r.Context(), userID, deckID); err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
