package Web

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/dchest/captcha"
)

// RegistrationGate guards the operator-account registration form on the
// ground station console so a scripted client can't mint accounts that
// would be granted rig control. Swappable so a deployment can pick the
// locally-rendered challenge or an externally-hosted one.
type RegistrationGate interface {
	// GetTemplateData returns the data the registration template needs
	// to render the challenge (e.g. CaptchaId or SiteKey).
	GetTemplateData() map[string]interface{}
	// Verify checks the challenge response on an incoming registration
	// request, logging the attempted username on failure for the
	// operator-access audit trail.
	Verify(r *http.Request) bool
	// Type returns "local" or "turnstile".
	Type() string
}

// LocalCaptcha renders and checks an image challenge entirely on the
// ground station itself, for deployments with no outbound internet
// access (e.g. a rig-link console running on an isolated shop network).
type LocalCaptcha struct{}

func (l *LocalCaptcha) GetTemplateData() map[string]interface{} {
	return map[string]interface{}{
		"CaptchaType": "local",
		"CaptchaId":   captcha.New(),
	}
}

func (l *LocalCaptcha) Verify(r *http.Request) bool {
	ok := captcha.VerifyString(r.FormValue("captchaId"), r.FormValue("captchaSolution"))
	if !ok {
		log.Printf("Web: 操作员注册验证码校验失败 (用户名: %q, 来源: %s)", r.FormValue("username"), r.RemoteAddr)
	}
	return ok
}

func (l *LocalCaptcha) Type() string {
	return "local"
}

// CloudflareTurnstile delegates the challenge to Cloudflare, the usual
// choice when the console is reachable from the public internet.
type CloudflareTurnstile struct {
	SiteKey   string
	SecretKey string

	client *http.Client
}

func (c *CloudflareTurnstile) httpClient() *http.Client {
	if c.client == nil {
		c.client = &http.Client{Timeout: 5 * time.Second}
	}
	return c.client
}

func (c *CloudflareTurnstile) GetTemplateData() map[string]interface{} {
	return map[string]interface{}{
		"CaptchaType": "turnstile",
		"SiteKey":     c.SiteKey,
	}
}

type turnstileResponse struct {
	Success bool `json:"success"`
}

func (c *CloudflareTurnstile) Verify(r *http.Request) bool {
	token := r.FormValue("cf-turnstile-response")
	ip := r.RemoteAddr
	username := r.FormValue("username")

	resp, err := c.httpClient().PostForm("https://challenges.cloudflare.com/turnstile/v0/siteverify", map[string][]string{
		"secret":   {c.SecretKey},
		"response": {token},
		"remoteip": {ip},
	})
	if err != nil {
		log.Printf("Web: Turnstile 校验请求失败 (操作员注册, 用户名: %q): %v", username, err)
		return false
	}
	defer resp.Body.Close()

	var result turnstileResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		log.Printf("Web: Turnstile 响应解析失败 (操作员注册, 用户名: %q): %v", username, err)
		return false
	}
	if !result.Success {
		log.Printf("Web: 操作员注册 Turnstile 校验未通过 (用户名: %q, 来源: %s)", username, ip)
	}
	return result.Success
}

func (c *CloudflareTurnstile) Type() string {
	return "turnstile"
}
