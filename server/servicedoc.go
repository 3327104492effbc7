package server

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/ndlib/fedsword/handler"
	"github.com/ndlib/fedsword/sword"
)

// contentTypes advertised for every collection. Anything else still
// reaches the catch-all handler, but these are the ones clients should
// prefer.
var acceptedTypes = []string{
	"application/zip",
	"image/jpeg",
	"text/xml",
	"application/xml",
	"application/octet-stream",
}

// ServiceDocumentHandler describes the collections the requesting user
// may deposit into. With a :collection parameter only that collection is
// described.
func (s *RESTServer) ServiceDocumentHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	user, pass, ok := r.BasicAuth()
	if !ok {
		w.Header().Set("WWW-Authenticate", `Basic realm="SWORD deposit"`)
		w.WriteHeader(401)
		return
	}
	repo := s.Fedora.As(user, pass)
	if err := repo.Authenticate(); err != nil {
		s.writeError(w, err)
		return
	}
	actor := user
	if behalf := r.Header.Get("X-On-Behalf-Of"); behalf != "" {
		actor = behalf
	}

	only := ps.ByName("collection")
	doc := sword.NewServiceDocument()
	workspace := sword.Workspace{Title: "SWORD Deposit Service"}
	for _, c := range s.Policy.Collections() {
		if only != "" && c != only {
			continue
		}
		if s.Policy.Authorize(actor, c) != nil {
			continue
		}
		workspace.Collections = append(workspace.Collections, sword.ServiceCollection{
			Href:      s.ExternalURL + "/sword/deposit/" + c,
			Title:     c,
			Accepts:   acceptedTypes,
			Packaging: []string{handler.PackagingMETS},
			Treatment: s.Treatment,
			Mediation: true,
		})
	}
	doc.Workspaces = []sword.Workspace{workspace}
	body, err := doc.Encode()
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/atomsvc+xml; charset=utf-8")
	w.Write(body)
}
