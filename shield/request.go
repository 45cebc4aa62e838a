package shield

import "net/http"

// MaxBody caps request bodies at maxBytes. Reads past the cap fail, which
// the JSON decoders of the handlers report as a bad request.
func MaxBody(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// HeadToGet rewrites HEAD to GET so routes registered with r.Get answer
// HEAD probes (download existence checks) instead of 405. net/http drops
// the body of HEAD responses itself.
func HeadToGet(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			r.Method = http.MethodGet
		}
		next.ServeHTTP(w, r)
	})
}
