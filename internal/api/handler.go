// Package api exposes the ledger operations over HTTP under /api/v1.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledgercore/internal/accounting"
	"github.com/odyssey-erp/ledgercore/internal/accounting/periods"
	"github.com/odyssey-erp/ledgercore/internal/assets"
	"github.com/odyssey-erp/ledgercore/internal/budget"
	"github.com/odyssey-erp/ledgercore/internal/money"
	"github.com/odyssey-erp/ledgercore/internal/platform/httpx"
	"github.com/odyssey-erp/ledgercore/internal/sequence"
	"github.com/odyssey-erp/ledgercore/internal/shared"
	"github.com/odyssey-erp/ledgercore/internal/subledger"
)

// Request headers.
const (
	HeaderInstitution = "X-Institution-ID"
	HeaderActor       = "X-Actor-ID"
	HeaderIdempotency = "Idempotency-Key"
)

// IdempotencyStore claims request keys. Both stores satisfy it.
type IdempotencyStore interface {
	CheckAndInsert(ctx context.Context, institutionID uuid.UUID, key, module string) error
	Delete(ctx context.Context, institutionID uuid.UUID, key string) error
}

// ErrorObserver is told about every failed command.
type ErrorObserver interface {
	ObserveError(err error)
}

// Deps groups the services served by the handler.
type Deps struct {
	Engine      *accounting.Engine
	Sequences   *sequence.Generator
	Periods     *periods.Service
	Ledgers     []*subledger.Ledger
	Assets      *assets.Service
	Guard       *budget.Guard
	Idempotency IdempotencyStore
	Errors      ErrorObserver
	Logger      *slog.Logger
	Now         func() time.Time
}

// Handler serves the ledger API.
type Handler struct {
	deps     Deps
	ledgers  map[subledger.Kind]*subledger.Ledger
	validate *validator.Validate
	logger   *slog.Logger
	now      func() time.Time
}

// NewHandler constructs the handler.
func NewHandler(deps Deps) *Handler {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	ledgers := make(map[subledger.Kind]*subledger.Ledger, len(deps.Ledgers))
	for _, l := range deps.Ledgers {
		ledgers[l.Kind()] = l
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Handler{deps: deps, ledgers: ledgers, validate: v, logger: logger, now: now}
}

// MountRoutes registers the API on r. Callers mount it under /api/v1.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.principal)
	r.Use(h.idempotent)

	r.Route("/accounts", func(r chi.Router) {
		r.Get("/", h.listAccounts)
		r.Post("/", h.createAccount)
		r.Get("/{id}", h.getAccount)
		r.Put("/{id}/active", h.setAccountActive)
	})
	r.Route("/journals", func(r chi.Router) {
		r.Post("/", h.postJournal)
		r.Get("/{id}", h.getJournal)
		r.Post("/{id}/reverse", h.reverseJournal)
	})
	r.Get("/ledger/reconcile", h.reconcile)
	r.Route("/sequences/{type}", func(r chi.Router) {
		r.Put("/", h.configureSequence)
		r.Post("/allocate", h.allocateReference)
	})
	r.Route("/periods", func(r chi.Router) {
		r.Post("/", h.createPeriod)
		r.Get("/{id}", h.getPeriod)
		r.Put("/{id}/status", h.transitionPeriod)
	})
	r.Route("/documents/{kind}", func(r chi.Router) {
		r.Post("/", h.issueDocument)
		r.Get("/aging", h.aging)
		r.Get("/{id}", h.getDocument)
		r.Get("/{id}/payments", h.listPayments)
		r.Post("/{id}/payments", h.applyPayment)
	})
	r.Route("/assets", func(r chi.Router) {
		r.Get("/", h.listAssets)
		r.Post("/", h.registerAsset)
		r.Get("/{id}", h.getAsset)
		r.Post("/{id}/depreciation", h.runDepreciation)
		r.Post("/{id}/dispose", h.disposeAsset)
	})
	r.Route("/budget", func(r chi.Router) {
		r.Post("/check", h.checkBudget)
		r.Get("/policy", h.getPolicy)
		r.Put("/policy", h.setPolicy)
	})
}

var (
	errInstitutionHeader = shared.Validation("INSTITUTION_REQUIRED", "X-Institution-ID", "X-Institution-ID header must be a uuid")
	errActorHeader       = shared.Validation("ACTOR_REQUIRED", "X-Actor-ID", "X-Actor-ID header must be a positive integer")
)

func (h *Handler) principal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inst, err := uuid.Parse(r.Header.Get(HeaderInstitution))
		if err != nil || inst == uuid.Nil {
			h.fail(w, errInstitutionHeader)
			return
		}
		actor, err := strconv.ParseInt(r.Header.Get(HeaderActor), 10, 64)
		if err != nil || actor <= 0 {
			h.fail(w, errActorHeader)
			return
		}
		ctx := shared.ContextWithPrincipal(r.Context(), shared.Principal{InstitutionID: inst, ActorID: actor})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// idempotent claims the Idempotency-Key of a POST before it runs and releases
// it again when the command fails, so only successful commands are deduplicated.
func (h *Handler) idempotent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(HeaderIdempotency)
		if r.Method != http.MethodPost || key == "" || h.deps.Idempotency == nil {
			next.ServeHTTP(w, r)
			return
		}
		p := principalFrom(r.Context())
		if err := h.deps.Idempotency.CheckAndInsert(r.Context(), p.InstitutionID, key, r.URL.Path); err != nil {
			h.fail(w, err)
			return
		}
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		if ww.Status() >= http.StatusBadRequest {
			if err := h.deps.Idempotency.Delete(context.WithoutCancel(r.Context()), p.InstitutionID, key); err != nil {
				h.logger.Warn("release idempotency key", slog.String("key", key), slog.Any("error", err))
			}
		}
	})
}

func principalFrom(ctx context.Context) shared.Principal {
	p, _ := shared.PrincipalFromContext(ctx)
	return p
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	if h.deps.Errors != nil {
		h.deps.Errors.ObserveError(err)
	}
	if shared.KindOf(err) == "" {
		h.logger.Error("ledger command failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

// bind decodes and validates the request body into dst.
func (h *Handler) bind(r *http.Request, dst any) error {
	if err := httpx.DecodeJSON(r, dst); err != nil {
		return httpx.ErrMalformedRequest.Wrap(err)
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			field := strings.SplitN(fe.Namespace(), ".", 2)
			name := fe.Field()
			if len(field) == 2 {
				name = field[1]
			}
			return shared.Validation("INVALID_REQUEST", name, fmt.Sprintf("%s failed %q validation", name, fe.Tag()))
		}
		return httpx.ErrMalformedRequest.Wrap(err)
	}
	return nil
}

func pathID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, shared.Validation("INVALID_ID", name, name+" must be a uuid")
	}
	return id, nil
}

// parseUUID converts a validated uuid field; empty yields uuid.Nil.
func parseUUID(s string) uuid.UUID {
	id, _ := uuid.Parse(s)
	return id
}

// parseDate converts a validated date field.
func parseDate(s string) time.Time {
	t, _ := time.Parse(dateLayout, s)
	return t
}

func parseAmount(field, s string) (money.Amount, error) {
	amt, err := money.Parse(s)
	if err != nil {
		return 0, shared.Validation("INVALID_AMOUNT", field, "amount must be a decimal with at most two fractional digits")
	}
	return amt, nil
}

func parseOptionalAmount(field, s string) (*money.Amount, error) {
	if s == "" {
		return nil, nil
	}
	amt, err := parseAmount(field, s)
	if err != nil {
		return nil, err
	}
	return &amt, nil
}

func parseOptionalDecimal(field, s string) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, shared.Validation("INVALID_DECIMAL", field, field+" must be a decimal")
	}
	return &d, nil
}

func (h *Handler) ledgerFor(r *http.Request) (*subledger.Ledger, error) {
	kind := subledger.Kind(strings.ToUpper(chi.URLParam(r, "kind")))
	l, ok := h.ledgers[kind]
	if !ok {
		return nil, shared.NotFound("UNKNOWN_DOCUMENT_KIND", chi.URLParam(r, "kind"), "unknown document kind")
	}
	return l, nil
}
