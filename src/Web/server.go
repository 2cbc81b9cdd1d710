package Web

import (
	"html/template"
	"log"
	"net/http"

	"github.com/aarondl/authboss/v3"
	"github.com/Emil-Frisk/Final-Project/src/inter"
)

type webServer struct {
	dataStore       inter.DataStore
	unitManager   inter.UnitManager
	identityManager inter.IdentityManager
	api             inter.Api
	templates       map[string]*template.Template
	htmlDir         string
	authboss        *authboss.Authboss
	turnstile       RegistrationGate
	addr            string
}

// NewWebServer 创建一个新的 Web 服务器实例
func NewWebServer(ds inter.DataStore, dm inter.UnitManager, im inter.IdentityManager, api inter.Api, htmlDir string, ab *authboss.Authboss, addr string) inter.WebServer {
	if addr == "" {
		addr = ":8080"
	}
	return &webServer{
		dataStore:       ds,
		unitManager:   dm,
		identityManager: im,
		api:             api,
		templates:       loadTemplates(htmlDir),
		htmlDir:         htmlDir,
		authboss:        ab,
		turnstile:       &LocalCaptcha{},
		addr:            addr,
	}
}

// Start 启动标准 HTTP 服务器
func (ws *webServer) Start() {
	addr := ws.addr

	mux := http.NewServeMux()
	ws.registerRoutes(mux)

	log.Printf("正在启动 Web 服务器 (HTTP) 于 %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("Web 服务器启动失败: %v", err)
	}
}
