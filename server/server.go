// Package server implements the deposit service's REST API. It accepts
// protocol deposits, drives the content handlers against the repository,
// and serves the cached entry documents and service documents.
package server

import (
	"expvar"
	"fmt"
	"io/ioutil"
	"log"
	"net/http"
	_ "net/http/pprof" // for pprof server
	"os"
	"path/filepath"

	"github.com/facebookgo/httpdown"
	raven "github.com/getsentry/raven-go"
	"github.com/julienschmidt/httprouter"

	"github.com/ndlib/fedsword/fedora"
	"github.com/ndlib/fedsword/handler"
	"github.com/ndlib/fedsword/store"
)

// Version of the service. Overwritten at build time.
var Version = "devel"

// RESTServer holds the configuration for a deposit API server.
//
// Set the public fields and then call Run. Run will listen on the given
// port and handle requests. Do not change any fields after calling Run.
//
// It should be enough to set Fedora, CacheDir, and Policy. The other
// fields are exposed to allow more customization.
type RESTServer struct {
	// Port number to listen on. Defaults to 14000.
	PortNumber string
	PProfPort  string

	// Fedora hands out repository connections. Run panics if it is nil.
	Fedora fedora.Source

	// Policy decides which users may deposit into which collections, and
	// supplies the collection list for the service document. If nil,
	// every authenticated user may deposit anywhere.
	Policy Policy

	// CacheDir is where cached entry documents and the embedded audit
	// database live. If empty, both are kept in memory.
	CacheDir string

	// Pass in a dial command to use a MySQL server for the audit log.
	// Otherwise a lightweight internal database is used, placed inside
	// the CacheDir directory (or memory if there is no CacheDir).
	// e.g. "user:password@tcp(localhost:5555)/dbname"
	MySQL string

	// ExternalURL is this service's public base URL, used to build the
	// edit links handed back in entry documents. Defaults to
	// "http://localhost:<PortNumber>".
	ExternalURL string

	// Treatment is the statement echoed in every deposit response.
	Treatment string

	// --- The following fields are more advanced and only need to be
	// set in special situations. ---

	// Handlers is the content handler lineup. Defaults to the stock one.
	Handlers *handler.Registry

	// Entries is the entry document cache. Defaults to one inside
	// CacheDir, or in memory.
	Entries *EntryCache

	// Audit records every executed operation. Defaults to the QL or
	// MySQL database per the MySQL field.
	Audit AuditDB

	server httpdown.Server // used to close our listening socket
}

// Run initializes the server and then blocks listening for and handling
// http requests.
func (s *RESTServer) Run() error {
	log.Println("==========")
	log.Printf("Starting SWORD Deposit Server version %s", Version)
	log.Printf("CacheDir = %s", s.CacheDir)

	if s.Fedora == nil {
		panic("No repository given. Fedora is nil.")
	}
	if s.PortNumber == "" {
		s.PortNumber = "14000"
	}
	if s.ExternalURL == "" {
		s.ExternalURL = "http://localhost:" + s.PortNumber
	}
	if s.Policy == nil {
		log.Println("No deposit policy given. Allowing all users.")
		s.Policy = OpenPolicy{}
	}
	if s.Handlers == nil {
		s.Handlers = handler.DefaultRegistry()
	}

	// init audit database
	if s.Audit == nil {
		var err error
		if s.MySQL != "" {
			log.Printf("Using MySQL for the audit log")
			s.Audit, err = NewMysqlAudit(s.MySQL)
		} else {
			path := "memory"
			if s.CacheDir != "" {
				path = filepath.Join(s.CacheDir, "fedsword.ql")
			}
			log.Printf("Using internal audit database at %s", path)
			s.Audit, err = NewQlAudit(path)
		}
		if s.Audit == nil || err != nil {
			panic("problem setting up the audit database")
		}
	}

	// init entry cache
	if s.Entries == nil {
		if s.CacheDir == "" {
			log.Println("Keeping entry documents in memory")
			s.Entries = NewEntryCacheMemory()
		} else {
			path := filepath.Join(s.CacheDir, "entries")
			os.MkdirAll(path, 0755)
			s.Entries = NewEntryCache(func(collection string) (store.Store, error) {
				return store.NewFileSystem(filepath.Join(path, collection))
			})
		}
	}

	// for pprof
	if s.PProfPort != "" {
		log.Println("Starting PProf on port", s.PProfPort)
		go func() {
			log.Println(http.ListenAndServe(":"+s.PProfPort, nil))
		}()
	}
	log.Println("Listening on", s.PortNumber)

	var err error
	h := httpdown.HTTP{}
	s.server, err = h.ListenAndServe(&http.Server{
		Addr:    ":" + s.PortNumber,
		Handler: s.addRoutes(),
	})
	if err != nil {
		log.Println(err)
		return err
	}
	return s.server.Wait()
}

// Stop shuts down the listening socket and returns once all in-flight
// requests have finished.
func (s *RESTServer) Stop() error {
	return s.server.Stop()
}

func (s *RESTServer) addRoutes() http.Handler {
	var routes = []struct {
		method  string
		route   string
		handler httprouter.Handle
	}{
		{"GET", "/sword/servicedocument", s.ServiceDocumentHandler},
		{"GET", "/sword/servicedocument/:collection", s.ServiceDocumentHandler},
		{"POST", "/sword/deposit/:collection", s.DepositHandler},
		{"GET", "/sword/edit/:collection/:id", s.EntryHandler},
		{"PUT", "/sword/edit/:collection/:id", s.UpdateHandler},
		{"DELETE", "/sword/edit/:collection/:id", s.DeleteHandler},

		{"GET", "/audit/:pid", s.AuditHandler},

		// other
		{"GET", "/", WelcomeHandler},
		{"GET", "/debug/vars", VarHandler}, // standard route for expvars data
	}

	r := httprouter.New()
	for _, route := range routes {
		r.Handle(route.method,
			route.route,
			logWrapper(recoverWrapper(route.handler)))
	}
	return r
}

// General route handlers and convenience functions

// WelcomeHandler identifies the service.
func WelcomeHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	fmt.Fprintf(w, "SWORD Deposit Service (%s)\n", Version)
}

// VarHandler adapts the expvar default handler to the httprouter three
// parameter handler.
func VarHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	// this code is taken from the stdlib expvar package.
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	fmt.Fprintf(w, "{\n")
	first := true
	expvar.Do(func(kv expvar.KeyValue) {
		if !first {
			fmt.Fprintf(w, ",\n")
		}
		first = false
		fmt.Fprintf(w, "%q: %s", kv.Key, kv.Value)
	})
	fmt.Fprintf(w, "\n}\n")
}

// NotImplementedHandler will return a 501 not implemented error.
func NotImplementedHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	w.WriteHeader(http.StatusNotImplemented)
	fmt.Fprintf(w, "Not Implemented\n")
}

// logWrapper takes a handler and returns a handler which does the same
// thing, after first logging the request URL.
func logWrapper(handler httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		log.Println(r.Method, r.URL)
		handler(w, r, ps)
	}
}

// recoverWrapper catches panics in the wrapped handler, reports them, and
// turns them into a 500.
func recoverWrapper(handler httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		defer func() {
			if p := recover(); p != nil {
				log.Println("panic:", r.Method, r.URL, p)
				raven.CaptureMessage(fmt.Sprint("panic: ", p),
					map[string]string{"Method": r.Method, "URL": r.URL.String()})
				w.WriteHeader(500)
				fmt.Fprintln(w, "Internal Server Error")
			}
		}()
		handler(w, r, ps)
	}
}

// scratch returns a fresh request-scoped temp directory.
func scratch() (string, error) {
	return ioutil.TempDir("", "fedsword-")
}
