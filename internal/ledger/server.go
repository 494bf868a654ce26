package ledger

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/lockstate/paywall/internal/cache"
	"github.com/lockstate/paywall/internal/logger"
	"github.com/spf13/viper"
)

// API hosts the ledger service's HTTP routes.
type API struct{}

// NewAPI returns the ledger service API.
func NewAPI() *API {
	return &API{}
}

// CORSMiddleware allows the configured origin to call the service
func (a *API) CORSMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		allowedOrigin := viper.GetString("allowed_origin")
		w.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	}
}

// BearerMiddleware guards write routes with a JWT bearer token signed by
// the configured secret. An empty secret disables the check, which is the
// development default.
func (a *API) BearerMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		secret := viper.GetString("ledger_api_secret")
		if secret == "" {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			http.Error(w, "Unauthorized: Invalid token format", http.StatusUnauthorized)
			return
		}
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")

		token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			logger.Error("Rejected ledger write with invalid token:", err)
			http.Error(w, "Unauthorized: Invalid token", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	}
}

// TransactionsHandler serves GET /transactions?for=&recipient[]=&createdAfter=
func (a *API) TransactionsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Invalid request method", http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query()
	forAddress := cache.Normalize(query.Get("for"))
	if forAddress == "" {
		http.Error(w, "Missing for parameter", http.StatusBadRequest)
		return
	}

	var recipients []string
	for _, recipient := range query["recipient[]"] {
		recipients = append(recipients, cache.Normalize(recipient))
	}

	var createdAfter time.Time
	if raw := query.Get("createdAfter"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, "Invalid createdAfter parameter", http.StatusBadRequest)
			return
		}
		createdAfter = parsed
	}

	stored, err := FindTransactions(forAddress, recipients, createdAfter)
	if err != nil {
		logger.Error("Failed to query ledger:", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	records := make([]Record, 0, len(stored))
	for _, row := range stored {
		records = append(records, Record{
			TransactionHash: row.TransactionHash,
			Sender:          row.Sender,
			Recipient:       row.Recipient,
			For:             row.ForAddress,
			Data:            row.Data,
			Chain:           row.Chain,
			CreatedAt:       row.CreatedAt,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(transactionsResponse{Transactions: records}); err != nil {
		logger.Error("Failed to encode ledger response:", err)
	}
}

// RecordTransactionHandler serves POST /transaction
func (a *API) RecordTransactionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Invalid request method", http.StatusMethodNotAllowed)
		return
	}

	var rec Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	rec.Sender = cache.Normalize(rec.Sender)
	rec.Recipient = cache.Normalize(rec.Recipient)
	rec.For = cache.Normalize(rec.For)

	if err := SaveTransaction(rec); err != nil {
		logger.Error("Failed to save ledger record:", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	logger.Infof("Recorded submission %s for %s", rec.TransactionHash, rec.For)
	w.WriteHeader(http.StatusOK)
}

// HealthHandler serves GET /health
func (a *API) HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// Start registers the routes and serves until the listener fails.
func (a *API) Start(port int) error {
	http.HandleFunc("/transactions", a.CORSMiddleware(a.TransactionsHandler))
	http.HandleFunc("/transaction", a.CORSMiddleware(a.BearerMiddleware(a.RecordTransactionHandler)))
	http.HandleFunc("/health", a.CORSMiddleware(a.HealthHandler))

	addr := fmt.Sprintf(":%d", port)
	logger.Infof("Ledger service listening on %s", addr)

	if viper.GetBool("use_https") {
		return http.ListenAndServeTLS(addr, viper.GetString("cert_file"), viper.GetString("key_file"), nil)
	}
	return http.ListenAndServe(addr, nil)
}
