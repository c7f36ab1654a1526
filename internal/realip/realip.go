package realip

import (
	"net"
	"net/http"
	"strings"
)

// FromRequest возвращает адрес клиента: первый адрес из X-Forwarded-For,
// если запрос прошёл через прокси, иначе хост из RemoteAddr.
func FromRequest(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "0.0.0.0"
}
