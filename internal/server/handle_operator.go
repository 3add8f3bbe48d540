package server

import (
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// operatorAuth guards operator routes with a shared key checked against a
// bcrypt hash from configuration.
func operatorAuth(keyHash string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || key == "" {
				writeError(w, http.StatusUnauthorized, "operator key required")
				return
			}
			if bcrypt.CompareHashAndPassword([]byte(keyHash), []byte(key)) != nil {
				writeError(w, http.StatusUnauthorized, "invalid operator key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func handleLedgerReset(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := d.Ledger.Reset(r.Context()); err != nil {
			d.Logger.Error("resetting ledger", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		d.Logger.Info("visited place ledger reset")
		writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
	}
}
