package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/vmihailenco/msgpack/v5"

	"gihan9a/patchstore/internal/documents"
	"gihan9a/patchstore/pkg/braidproto"
	"gihan9a/patchstore/pkg/patch"
	"gihan9a/patchstore/pkg/store"
)

// maxBodyBytes bounds request bodies
const maxBodyBytes = 8 << 20

// HistoryView is the body of GET /history
type HistoryView struct {
	Done   []*store.CommandRecord `json:"done" msgpack:"done"`
	Undone []*store.CommandRecord `json:"undone" msgpack:"undone"`
}

// ReplayResult is the body of undo and redo responses
type ReplayResult struct {
	Applied  bool `json:"applied"`
	Undoable bool `json:"undoable"`
	Redoable bool `json:"redoable"`
}

// handleList returns the document ids
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.catalog.IDs())
}

// handleGet returns a document, or streams its changes when the request
// subscribes
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	resourceID := mux.Vars(r)["id"]

	// Set common headers
	w.Header().Set("Range-Request-Allow-Methods", "PATCH, PUT")
	w.Header().Set("Range-Request-Allow-Units", "json")
	w.Header().Set("Content-Type", "application/json")

	if strings.EqualFold(r.Header.Get("Subscribe"), "true") {
		s.serveSubscription(w, r, resourceID)
		return
	}

	value, err := s.sess.Snapshot(resourceID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	body, version, err := encode(value)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Version", version)
	w.Header().Set("Parents", "")
	w.Write(body)
}

func (s *Server) serveSubscription(w http.ResponseWriter, r *http.Request, resourceID string) {
	// Ensure we can flush the response
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	sub, initial, err := s.AddSubscription(resourceID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	defer s.RemoveSubscription(sub)

	// Set headers for streaming
	w.Header().Set("Subscribe", "true")
	w.Header().Set("Cache-Control", "no-cache, no-transform")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(braidproto.StatusSubscribed)

	if _, err := initial.WriteTo(w); err != nil {
		return
	}
	flusher.Flush()

	// Keep the connection open until client disconnects
	for {
		select {
		case <-r.Context().Done():
			return
		case <-sub.done:
			return
		case update := <-sub.updates:
			if _, err := update.WriteTo(w); err != nil {
				s.logger.Debug("subscription write failed", "subscription", sub.ID, "error", err)
				return
			}
			flusher.Flush()
		}
	}
}

// handlePatch applies an RFC 6902 patch as an undoable command
func (s *Server) handlePatch(w http.ResponseWriter, r *http.Request) {
	resourceID := mux.Vars(r)["id"]

	var set patch.Set
	if err := decodeBody(w, r, &set); err != nil {
		writeBodyError(w, err)
		return
	}

	_, err := store.Execute(s.sess, s.catalog.PatchCommand(), documents.PatchRequest{ID: resourceID, Patches: set})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeDocument(w, resourceID)
}

// handlePut replaces a document as an undoable command
func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	resourceID := mux.Vars(r)["id"]

	var value any
	if err := decodeBody(w, r, &value); err != nil {
		writeBodyError(w, err)
		return
	}

	_, err := store.Execute(s.sess, s.catalog.ReplaceCommand(), documents.ReplaceRequest{ID: resourceID, Value: value})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeDocument(w, resourceID)
}

// handleHistory lists the undoable and redoable records, as JSON or, with
// ?format=msgpack, as MessagePack
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	view := HistoryView{Done: s.sess.Done(), Undone: s.sess.Undone()}

	if r.URL.Query().Get("format") != "msgpack" {
		writeJSON(w, http.StatusOK, view)
		return
	}
	data, err := msgpack.Marshal(view)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/msgpack")
	w.Write(data)
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	s.replay(w, s.sess.Undo)
}

func (s *Server) handleRedo(w http.ResponseWriter, r *http.Request) {
	s.replay(w, s.sess.Redo)
}

func (s *Server) replay(w http.ResponseWriter, step func() (bool, error)) {
	applied, err := step()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ReplayResult{
		Applied:  applied,
		Undoable: s.sess.Undoable(),
		Redoable: s.sess.Redoable(),
	})
}

// writeDocument answers a successful edit with the new value and version
func (s *Server) writeDocument(w http.ResponseWriter, resourceID string) {
	value, err := s.sess.Snapshot(resourceID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	body, version, err := encode(value)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Version", version)
	w.Write(body)
}

// writeError maps store and patch errors to status codes
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrUnknownContainer):
		status = http.StatusNotFound
	case errors.Is(err, patch.ErrPathNotFound),
		errors.Is(err, patch.ErrTestFailed),
		errors.Is(err, patch.ErrInvalidOperation),
		errors.Is(err, patch.ErrInvalidPointer):
		status = http.StatusUnprocessableEntity
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	http.Error(w, err.Error(), status)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("error reading body: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// writeBodyError reports an unreadable body, 413 when it was too large
func writeBodyError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
		return
	}
	http.Error(w, err.Error(), http.StatusBadRequest)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
