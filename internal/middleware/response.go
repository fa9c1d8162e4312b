package middleware

import (
	"net"
	"net/http"

	"github.com/prepwise/partner-server-go/internal/httputil"
)

func writeError(w http.ResponseWriter, err error) {
	httputil.WriteError(w, err)
}

// clientIP returns the host part of RemoteAddr, which chi's RealIP has
// already rewritten when the server sits behind a proxy.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
