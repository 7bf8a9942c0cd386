package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/offsetgrid/backend/internal/balance"
	"github.com/offsetgrid/backend/internal/cart"
	"github.com/offsetgrid/backend/internal/catalog"
	"github.com/offsetgrid/backend/internal/checkout"
	"github.com/offsetgrid/backend/internal/middleware"
	"github.com/offsetgrid/backend/internal/registry"
	"github.com/offsetgrid/backend/internal/retirement"
	"github.com/offsetgrid/backend/internal/session"
)

// New returns an http.Handler serving the API under /api/v1. Read-only
// catalog and certificate lookups are public; everything touching a buyer's
// cart, holdings or orders sits behind the session middleware.
func New(
	sessions session.Service,
	sessionHandler *session.Handler,
	catalogHandler *catalog.Handler,
	balanceHandler *balance.Handler,
	cartHandler *cart.Handler,
	checkoutHandler *checkout.Handler,
	retirementHandler *retirement.Handler,
	reg registry.Port,
) http.Handler {
	mux := http.NewServeMux()
	base := "/api/v1"
	auth := middleware.Auth(sessions)

	mux.HandleFunc("POST "+base+"/auth/login", sessionHandler.Login)

	mux.HandleFunc("GET "+base+"/projects", catalogHandler.ListProjects)
	mux.HandleFunc("GET "+base+"/projects/{id}", catalogHandler.GetProject)
	mux.HandleFunc("GET "+base+"/classes", catalogHandler.ListClasses)
	mux.HandleFunc("GET "+base+"/classes/{id}", catalogHandler.GetClass)

	mux.Handle("GET "+base+"/holdings", auth(http.HandlerFunc(balanceHandler.ListHoldings)))

	mux.Handle("GET "+base+"/cart", auth(http.HandlerFunc(cartHandler.Get)))
	mux.Handle("POST "+base+"/cart/lines", auth(http.HandlerFunc(cartHandler.AddLine)))
	mux.Handle("PATCH "+base+"/cart/lines/{classId}", auth(http.HandlerFunc(cartHandler.SetQuantity)))
	mux.Handle("DELETE "+base+"/cart/lines/{classId}", auth(http.HandlerFunc(cartHandler.RemoveLine)))
	mux.Handle("DELETE "+base+"/cart", auth(http.HandlerFunc(cartHandler.Clear)))

	mux.Handle("POST "+base+"/checkout", auth(http.HandlerFunc(checkoutHandler.Checkout)))
	mux.Handle("GET "+base+"/orders", auth(http.HandlerFunc(checkoutHandler.ListOrders)))
	mux.Handle("GET "+base+"/orders/{id}", auth(http.HandlerFunc(checkoutHandler.GetOrder)))

	mux.Handle("POST "+base+"/retirements", auth(http.HandlerFunc(retirementHandler.Retire)))
	mux.Handle("GET "+base+"/retirements", auth(http.HandlerFunc(retirementHandler.ListCertificates)))
	mux.HandleFunc("GET "+base+"/retirements/{certificateId}", retirementHandler.GetCertificate)

	mux.HandleFunc("GET /healthz", healthHandler(reg))

	return mux
}

// healthHandler reports whether the registry answers a cheap read.
func healthHandler(reg registry.Port) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		_, err := reg.ListProjects(ctx, "")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]bool{
			"ok":       true,
			"registry": err == nil,
		})
	}
}
