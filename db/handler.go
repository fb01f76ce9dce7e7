package db

import (
	"log"
	"net/http"
)

// HandleHealth reports whether the database answers a ping.
func (d *DB) HandleHealth(w http.ResponseWriter, r *http.Request) {
	err := d.Ping(r.Context())
	if err != nil {
		log.Printf("health check failed: %v", err.Error())
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, err = w.Write([]byte("ok"))
	if err != nil {
		log.Printf("error during writing health response: %v", err.Error())
	}
}
