package Web

import (
	"fmt"
	"net/http"

	"github.com/Emil-Frisk/Final-Project/src/inter"
)

// userListHandler renders the operator roster (admin only).
func (ws *webServer) userListHandler(w http.ResponseWriter, r *http.Request) {
	users, err := ws.dataStore.ListUsers()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	ws.templates["user_list.html"].Execute(w, users)
}

// updateUserPermissionHandler changes an operator's permission level.
func (ws *webServer) updateUserPermissionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	username := r.FormValue("username")
	permStr := r.FormValue("permission")

	var permInt int
	fmt.Sscanf(permStr, "%d", &permInt)
	perm := inter.PermissionType(permInt)

	if err := ws.dataStore.UpdateUserPermission(username, perm); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	ws.handleActionResponse(w, r, ws.userListHandler, "user-list")
}

// updateUserAssignedUnitHandler sets which rig unit an operator's console
// defaults to after login.
func (ws *webServer) updateUserAssignedUnitHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	username := r.FormValue("username")
	uuid := r.FormValue("uuid")

	if err := ws.dataStore.UpdateUserAssignedUnit(username, uuid); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	ws.handleActionResponse(w, r, ws.userListHandler, "user-list")
}
