package handlers

import "net/http"

// CreditsBalance returns the authenticated owner's credit balance.
func (a *App) CreditsBalance(w http.ResponseWriter, r *http.Request) {
	ownerID := a.currentOwnerID(r)
	if ownerID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing owner context")
		return
	}
	balance, err := a.Credits.Balance(r.Context(), ownerID)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to load balance")
		return
	}
	a.json(w, http.StatusOK, map[string]int64{"balance": balance})
}
