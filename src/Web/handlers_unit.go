package Web

import (
	"fmt"
	"net/http"
	"time"

	"github.com/Emil-Frisk/Final-Project/src/inter"
)

// UnitListView 用于单元列表页面的视图数据
type UnitListView struct {
	inter.UnitRecord
	Status       string
	StatusString string
}

// unitListHandler 单元列表页面处理
func (ws *webServer) unitListHandler(w http.ResponseWriter, r *http.Request) {
	units, err := ws.dataStore.ListUnits(1, 100)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var viewData []UnitListView
	for _, d := range units {
		if d.Meta.AuthenticateStatus == inter.AuthenticatePending || d.Meta.AuthenticateStatus == inter.AuthenticateRefuse {
			continue
		}

		status, _ := ws.unitManager.QueryUnitStatus(d.UUID)
		statusStr := "离线"
		statusClass := "text-secondary"

		switch status {
		case inter.StatusOnline:
			statusStr = "在线"
			statusClass = "text-success"
		case inter.StatusDelayed:
			statusStr = "延迟"
			statusClass = "text-warning"
		case inter.StatusOffline:
			statusStr = "离线"
			statusClass = "text-danger"
		}

		viewData = append(viewData, UnitListView{
			UnitRecord: d,
			Status:       statusClass,
			StatusString: statusStr,
		})
	}

	ws.templates["unit_list.html"].Execute(w, viewData)
}

// pendingListHandler 待审核单元页面处理
func (ws *webServer) pendingListHandler(w http.ResponseWriter, r *http.Request) {
	units, err := ws.dataStore.ListUnits(1, 100)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var pendingUnits []inter.UnitRecord
	for _, d := range units {
		if d.Meta.AuthenticateStatus == inter.AuthenticatePending {
			pendingUnits = append(pendingUnits, d)
		}
	}

	ws.templates["pending_list.html"].Execute(w, pendingUnits)
}

// blacklistHandler 黑名单页面处理
func (ws *webServer) blacklistHandler(w http.ResponseWriter, r *http.Request) {
	units, err := ws.dataStore.ListUnits(1, 100)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var blacklistedUnits []inter.UnitRecord
	for _, d := range units {
		if d.Meta.AuthenticateStatus == inter.AuthenticateRefuse {
			blacklistedUnits = append(blacklistedUnits, d)
		}
	}

	ws.templates["blacklist.html"].Execute(w, blacklistedUnits)
}

// handleActionResponse 处理 HTMX 动作响应辅助函数
func (ws *webServer) handleActionResponse(w http.ResponseWriter, r *http.Request, listHandler http.HandlerFunc, targetID string) {
	if r.Header.Get("HX-Target") == targetID {
		listHandler(w, r)
	} else if r.Header.Get("HX-Target") == "main-view" {
		if targetID == "user-list" {
			ws.userListHandler(w, r)
			return
		}
		w.Header().Set("HX-Location", "/")
		w.WriteHeader(http.StatusOK)
	} else {
		w.Header().Set("HX-Location", "/")
		w.WriteHeader(http.StatusOK)
	}
}

// pendingPageHandler 待审核表格局部视图处理
func (ws *webServer) pendingPageHandler(w http.ResponseWriter, r *http.Request) {
	units, err := ws.dataStore.ListUnits(1, 100)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	var pendingUnits []inter.UnitRecord
	for _, d := range units {
		if d.Meta.AuthenticateStatus == inter.AuthenticatePending {
			pendingUnits = append(pendingUnits, d)
		}
	}
	ws.templates["pending_table.html"].Execute(w, pendingUnits)
}

// blacklistPageHandler 黑名单表格局部视图处理
func (ws *webServer) blacklistPageHandler(w http.ResponseWriter, r *http.Request) {
	units, err := ws.dataStore.ListUnits(1, 100)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	var blacklistedUnits []inter.UnitRecord
	for _, d := range units {
		if d.Meta.AuthenticateStatus == inter.AuthenticateRefuse {
			blacklistedUnits = append(blacklistedUnits, d)
		}
	}
	ws.templates["blacklist_table.html"].Execute(w, blacklistedUnits)
}

// unblockHandler 解除屏蔽操作处理
func (ws *webServer) unblockHandler(w http.ResponseWriter, r *http.Request) {
	uuid := r.URL.Query().Get("uuid")
	meta, err := ws.dataStore.LoadConfig(uuid)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	meta.AuthenticateStatus = inter.AuthenticatePending
	ws.dataStore.SaveMetadata(uuid, meta)

	if r.Header.Get("HX-Target") == "main-view" {
		ws.blacklistPageHandler(w, r)
	} else {
		ws.handleActionResponse(w, r, ws.blacklistHandler, "blacklist-view")
	}
}

// approveHandler 通过审核操作处理
func (ws *webServer) approveHandler(w http.ResponseWriter, r *http.Request) {
	uuid := r.URL.Query().Get("uuid")
	meta, err := ws.dataStore.LoadConfig(uuid)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	meta.AuthenticateStatus = inter.Authenticated
	ws.dataStore.SaveMetadata(uuid, meta)

	if r.Header.Get("HX-Target") == "main-view" {
		ws.pendingPageHandler(w, r)
	} else {
		ws.handleActionResponse(w, r, ws.pendingListHandler, "pending-list")
	}
}

// revokeHandler 拒绝/吊销操作处理
func (ws *webServer) revokeHandler(w http.ResponseWriter, r *http.Request) {
	uuid := r.URL.Query().Get("uuid")
	meta, err := ws.dataStore.LoadConfig(uuid)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	meta.AuthenticateStatus = inter.AuthenticateRefuse
	ws.dataStore.SaveMetadata(uuid, meta)

	if r.Header.Get("HX-Target") == "main-view" {
		ws.pendingPageHandler(w, r)
	} else {
		ws.handleActionResponse(w, r, ws.pendingListHandler, "pending-list")
	}
}

// deleteHandler 删除单元操作处理
func (ws *webServer) deleteHandler(w http.ResponseWriter, r *http.Request) {
	uuid := r.URL.Query().Get("uuid")
	ws.dataStore.DestroyUnit(uuid)

	w.Header().Set("HX-Location", "/")
}

// refreshTokenHandler 刷新 Token 操作处理
func (ws *webServer) refreshTokenHandler(w http.ResponseWriter, r *http.Request) {
	uuid := r.URL.Query().Get("uuid")
	newToken := fmt.Sprintf("tk-%d-%s", time.Now().Unix(), uuid[:8])
	ws.dataStore.UpdateToken(uuid, newToken)

	w.Header().Set("HX-Trigger", "refreshMetrics")
	http.Redirect(w, r, "/metrics/"+uuid, http.StatusSeeOther)
}
