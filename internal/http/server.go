package http

import (
	"net/http"

	"SchoolPayments/internal/auth"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Server struct {
	Router *chi.Mux
}

type Options struct {
	Verifier      *auth.Verifier
	RateRPS       float64
	RateBurst     int
	WebhookSecret string
}

func NewServer(handler *Handler, opts Options) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(cors)

	limiter := newIPRateLimiter(opts.RateRPS, opts.RateBurst)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/payment", func(r chi.Router) {
		r.With(limiter.Middleware).Post("/create-payment", handler.CreatePayment)
		r.With(limiter.Middleware, webhookSignature(opts.WebhookSecret)).Post("/webhook", handler.Webhook)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth(opts.Verifier, false))
			r.Get("/transactions", handler.ListTransactions)
			r.Get("/transactions/school/{schoolId}", handler.TransactionsBySchool)
			r.Get("/transaction-status/{customOrderId}", handler.TransactionStatus)
		})
		r.With(requireAuth(opts.Verifier, true)).Get("/transaction-status/{customOrderId}/ws", handler.StreamTransactionStatus)
	})

	return &Server{Router: r}
}
