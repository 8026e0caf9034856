package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	mcrouter "github.com/filipenf/mcrouter"
	"github.com/filipenf/mcrouter/reply"
)

const headerResponseTime = "Response-Time"

type httpServer struct {
	proxy *mcrouter.Proxy
}

// replyView is the admin-facing rendering of a reduced reply.
type replyView struct {
	Result string `json:"result"`
	Dest   string `json:"dest,omitempty"`
	Flags  uint64 `json:"flags,omitempty"`
	Value  string `json:"value,omitempty"`
}

func view(r *reply.Reply) *replyView {
	v := &replyView{
		Result: r.Result().String(),
		Flags:  r.Flags(),
	}
	if d := r.Destination(); d != nil {
		v.Dest = d.String()
	}
	if r.HasValue() {
		v.Value = string(r.ValueRangeSlow())
	}
	return v
}

func (hs *httpServer) handleData(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	key := []byte(r.URL.Path[1:])
	if len(key) == 0 {
		return nil, fmt.Errorf("key required")
	}

	start := time.Now()
	defer func() {
		w.Header().Set(headerResponseTime, fmt.Sprintf("%fms",
			float64(time.Since(start).Microseconds())/1000))
	}()

	switch r.Method {
	case "GET":
		return view(hs.proxy.Get(r.Context(), key)), nil

	case "POST":
		b, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, err
		}
		r.Body.Close()
		return view(hs.proxy.Set(r.Context(), key, b, nil)), nil

	case "DELETE":
		return view(hs.proxy.Delete(r.Context(), key)), nil
	}

	return nil, fmt.Errorf("method not allowed")
}

func (hs *httpServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var (
		data interface{}
		err  error
	)

	switch {
	case r.URL.Path == "/tko":
		data = hs.proxy.Tracker().Snapshot()

	case strings.HasPrefix(r.URL.Path, "/spool"):
		if al := hs.proxy.AsyncLog(); al != nil {
			var n int
			if n, err = al.Count(); err == nil {
				data = map[string]int{"spooled": n}
			}
		} else {
			data = map[string]int{"spooled": 0}
		}

	default:
		data, err = hs.handleData(w, r)
	}

	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}
	json.NewEncoder(w).Encode(data)
}
