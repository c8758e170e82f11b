package server

import (
	"net/http"
	"strings"

	"github.com/rs/cors"
)

// originPolicy decides which browser origins may call the API.
type originPolicy struct {
	any     bool
	allowed map[string]struct{}
}

func newOriginPolicy(origins []string) originPolicy {
	p := originPolicy{allowed: make(map[string]struct{})}
	for _, o := range origins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		switch o {
		case "":
		case "*":
			p.any = true
		default:
			p.allowed[strings.ToLower(o)] = struct{}{}
		}
	}
	if len(p.allowed) == 0 {
		p.any = true
	}
	return p
}

func (p originPolicy) allows(origin string) bool {
	if p.any {
		return true
	}
	_, ok := p.allowed[strings.ToLower(origin)]
	return ok
}

// checkRequest is the websocket origin check. Requests without an Origin
// header are not from a browser and are accepted.
func (p originPolicy) checkRequest(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	return origin == "" || p.allows(origin)
}

// handler wraps next with CORS handling for browser clients of the REST
// endpoints. Preflight requests are answered with 204.
func (p originPolicy) handler(next http.Handler) http.Handler {
	opts := cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         600,
	}
	if p.any {
		opts.AllowedOrigins = []string{"*"}
	} else {
		opts.AllowOriginFunc = p.allows
	}
	return cors.New(opts).Handler(next)
}
