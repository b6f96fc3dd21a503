/*
Copyright © 2026 Bartłomiej Święcki (byo)

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package blockstore

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/cinode/ipfs-inline/pkg/sniffer"
	"github.com/cinode/ipfs-inline/pkg/unixfs"
	"github.com/ipfs/go-cid"
)

// GatewayPathPrefix is the url path prefix under which blocks are served
const GatewayPathPrefix = "/ipfs/"

type webErrResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

var webErrMap = map[string]error{
	"INVALID_NAME":      ErrInvalidName,
	"UNSUPPORTED_HASH":  ErrUnsupportedHash,
	"VALIDATION_FAILED": ErrValidationFailed,
	"INVALID_NODE":      unixfs.ErrInvalidNode,
	"NOT_A_FILE":        unixfs.ErrNotAFile,
	"MULTI_BLOCK_FILE":  unixfs.ErrMultiBlock,
}

func webErrToCode(err error) string {
	for code, errMatch := range webErrMap {
		if errors.Is(err, errMatch) {
			return code
		}
	}
	return ""
}

type webInterface struct {
	ds  DS
	log *slog.Logger
}

type webInterfaceOption func(i *webInterface)

func WebInterfaceOptionLogger(log *slog.Logger) webInterfaceOption {
	return func(i *webInterface) { i.log = log }
}

// WebInterface returns a read-only http handler exposing blocks of given
// store through IPFS-style gateway paths: `/ipfs/<cid>`. Content of dag-pb
// blocks is served the way a gateway serves a UnixFS file.
func WebInterface(ds DS, opts ...webInterfaceOption) http.Handler {
	ret := &webInterface{
		ds:  ds,
		log: slog.Default(),
	}

	for _, o := range opts {
		o(ret)
	}

	return ret
}

func (i *webInterface) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		i.serveGet(w, r)
	case http.MethodHead:
		i.serveHead(w, r)
	default:
		http.Error(w, "Unsupported method", http.StatusMethodNotAllowed)
	}
}

func (i *webInterface) getName(r *http.Request) (cid.Cid, error) {
	if r.URL.RawQuery != "" || !strings.HasPrefix(r.URL.Path, GatewayPathPrefix) {
		return cid.Undef, ErrInvalidName
	}
	return ParseName(r.URL.Path[len(GatewayPathPrefix):])
}

func (i *webInterface) sendError(w http.ResponseWriter, httpCode int, code string, message string) {
	w.Header().Set("Content-type", "application/json")
	w.WriteHeader(httpCode)
	json.NewEncoder(w).Encode(&webErrResponse{
		Code:    code,
		Message: message,
	})
}

func (i *webInterface) checkErr(err error, w http.ResponseWriter, r *http.Request) bool {
	if err == nil {
		return true
	}

	if errors.Is(err, ErrNotFound) {
		http.NotFound(w, r)
		return false
	}

	code := webErrToCode(err)
	if code != "" {
		i.sendError(w, http.StatusBadRequest, code, err.Error())
		return false
	}

	i.log.Error(
		"Internal error happened while processing the request",
		"err", err,
		slog.Group("req",
			slog.String("remoteAddr", r.RemoteAddr),
			slog.String("method", r.Method),
			slog.String("url", r.URL.String()),
		),
	)
	http.Error(w, "Internal server error", http.StatusInternalServerError)
	return false
}

func (i *webInterface) serveGet(w http.ResponseWriter, r *http.Request) {
	name, err := i.getName(r)
	if !i.checkErr(err, w, r) {
		return
	}

	rc, err := i.ds.Open(r.Context(), name)
	if !i.checkErr(err, w, r) {
		return
	}
	defer rc.Close()

	if name.Type() == cid.DagProtobuf {
		rc = unixfs.FileReader(rc)
	}

	br := bufio.NewReader(rc)
	prefix, err := br.Peek(sniffer.SignatureLen)
	if errors.Is(err, io.EOF) {
		err = nil
	}
	if !i.checkErr(err, w, r) {
		return
	}

	contentType := "application/octet-stream"
	if len(prefix) == sniffer.SignatureLen {
		if mimeType, err := sniffer.Classify(prefix); err == nil {
			contentType = mimeType
		}
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "public, max-age=29030400, immutable")

	_, err = io.Copy(w, br)
	if err != nil {
		// Too late to report the error through the status code, the client
		// is expected to validate the data against the CID
		i.log.Warn("Failed to send block",
			"cid", name.String(),
			"err", err,
		)
	}
}

func (i *webInterface) serveHead(w http.ResponseWriter, r *http.Request) {
	name, err := i.getName(r)
	if !i.checkErr(err, w, r) {
		return
	}

	exists, err := i.ds.Exists(r.Context(), name)
	if !i.checkErr(err, w, r) {
		return
	}

	if !exists {
		http.NotFound(w, r)
	}
}
