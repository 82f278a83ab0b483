/*
 * Post From Email - Copyright (C) 2024 Ollie Jones.
 *    Contact: oj@plumislandmedia.net
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU General Public License version 2, and only
 * version 2 as published by the Free Software Foundation.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program; if not, write to the Free Software
 * Foundation, Inc., 59 Temple Place, Suite 330, Boston, MA  02111-1307  USA
 */

// Package webhook is the push-side ingress: a pre-parsed message
// delivered over HTTP, or a remote document pulled in by URL. Both
// bypass the mailbox connector and feed the same validation and
// transformation pipeline.
//
// Responses are machine-checkable by prefix: success is a single line
// beginning "OK", failure is a human-readable explanation. A policy
// rejection is deliberately unexplained in the response; its reasons
// live in the activity log.
package webhook

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/OllieJones/post-from-email/contenttag"
	"github.com/OllieJones/post-from-email/mailparse"
	"github.com/OllieJones/post-from-email/makepost"
	"github.com/OllieJones/post-from-email/postlog"
	"github.com/OllieJones/post-from-email/profile"
	"github.com/OllieJones/post-from-email/sanitize"
	"github.com/OllieJones/post-from-email/store"
	"github.com/OllieJones/post-from-email/validate"
)

// fetchKeyPrefix prefixes the transient key caching a fetched remote
// document body. Keys are truncated to the transient key limit.
const fetchKeyPrefix = "post-from-email-ob-"

const maxUploadSize = 10 << 20

// Upload is the pre-parsed message payload for /v1/upload.
type Upload struct {
	Headers map[string]string `json:"headers"`
	HTML    string            `json:"html"`
	Plain   string            `json:"plain"`
}

// urlRequest is the payload for /v1/url.
type urlRequest struct {
	Src string `json:"src"`
}

// Handler serves the ingress endpoints.
type Handler struct {
	Profiles   map[int64]*profile.Profile
	Transform  *makepost.Transformer
	Log        *postlog.Logger
	Sanitizer  *sanitize.Sanitizer
	Transients store.TransientStore

	// Client fetches remote documents for /v1/url; nil uses the
	// sanitizer's client.
	Client *http.Client
}

// Register attaches the ingress routes.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/v1/upload", h.handleUpload)
	mux.HandleFunc("/v1/url", h.handleURL)
	mux.HandleFunc("/v1/display", h.handleDisplay)
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		fail(w, http.StatusMethodNotAllowed, "Only POST is accepted here.")
		return
	}

	profileID, err := strconv.ParseInt(r.URL.Query().Get("profile"), 10, 64)
	if err != nil {
		fail(w, http.StatusBadRequest, "The profile query parameter must name a profile.")
		return
	}

	p, ok := h.Profiles[profileID]
	if !ok {
		fail(w, http.StatusNotFound, fmt.Sprintf("No profile %d is configured.", profileID))
		return
	}
	if !p.AllowWebhook {
		fail(w, http.StatusForbidden, "This profile does not accept webhook deliveries.")
		return
	}

	var upload Upload
	if err := json.NewDecoder(io.LimitReader(r.Body, maxUploadSize)).Decode(&upload); err != nil {
		fail(w, http.StatusBadRequest, "The request body is not a valid upload object.")
		return
	}

	rawHeader := mailparse.SynthesizeHeaders(upload.Headers)
	env := &mailparse.Envelope{
		RawHeader: rawHeader,
		Headers:   mailparse.ParseHeaders(rawHeader),
		HTML:      []byte(upload.HTML),
		Plain:     []byte(upload.Plain),
	}

	entry := postlog.Entry{
		Source:  postlog.SourceWebhook,
		From:    env.Headers["from"],
		Subject: env.Headers["subject"],
		Valid:   validate.NotApplicable,
		Allowed: validate.NotApplicable,
		Signed:  validate.NotApplicable,
		ItemID:  -1,
	}
	defer func() {
		if err := h.Log.Add(profileID, entry); err != nil {
			log.WithError(err).WithField("profile", profileID).Warn("webhook_log_failed")
		}
	}()

	verdict := validate.Check(env, p)
	entry.Valid = validity(verdict)
	entry.Allowed = verdict.Allowed
	entry.Signed = verdict.Signed
	entry.Errors = verdict.Messages()

	if !verdict.OK() {
		// Reasons go to the activity log only; the response never
		// tells a sender why their message was refused.
		fail(w, http.StatusBadRequest, "The message was not accepted.")
		return
	}

	result, err := h.Transform.Process(env, p, profileID)
	if err != nil {
		entry.Errors = append(entry.Errors, err.Error())
		fail(w, http.StatusInternalServerError, "The message could not be stored.", err.Error())
		return
	}
	entry.ItemID = result.ItemID

	ok200(w, fmt.Sprintf("OK stored item %d tag %s", result.ItemID, result.Tag))
}

func (h *Handler) handleURL(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		fail(w, http.StatusMethodNotAllowed, "Only POST is accepted here.")
		return
	}

	var req urlRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxUploadSize)).Decode(&req); err != nil || req.Src == "" {
		fail(w, http.StatusBadRequest, "The request body must carry a src URL.")
		return
	}

	src, err := url.Parse(req.Src)
	if err != nil || (src.Scheme != "http" && src.Scheme != "https") {
		fail(w, http.StatusBadRequest, "The src URL must be http or https.")
		return
	}

	body, err := h.fetchDocument(req.Src)
	if err != nil {
		fail(w, http.StatusBadGateway, "The document could not be fetched.", err.Error())
		return
	}

	name := contenttag.FileNameFromURL(src.Host, src.Path)
	fileURL, err := h.Sanitizer.DocumentFile(body, name)
	if err != nil {
		h.logURLPost(req.Src, err)
		fail(w, http.StatusInternalServerError, "The document could not be sanitized.", err.Error())
		return
	}
	h.logURLPost(req.Src, nil)

	log.WithFields(log.Fields{"src": req.Src, "file": name}).Info("webhook_url_ingested")
	ok200(w, "OK "+fileURL)
}

// logURLPost records a URL ingestion attempt. URL posts have no owning
// profile; they log under profile 0.
func (h *Handler) logURLPost(src string, cause error) {
	if h.Log == nil {
		return
	}

	entry := postlog.Entry{
		Source:  postlog.SourceURLPost,
		Subject: src,
		Valid:   validate.Passed,
		Allowed: validate.NotApplicable,
		Signed:  validate.NotApplicable,
		ItemID:  -1,
	}
	if cause != nil {
		entry.Valid = validate.Failed
		entry.Errors = []string{cause.Error()}
	}
	if err := h.Log.Add(0, entry); err != nil {
		log.WithError(err).WithField("src", src).Warn("webhook_log_failed")
	}
}

// handleDisplay renders a stored item's raw message HTML for embedded
// display: either the public URL of the sanitized cached document, or
// the document body rewritten as an id-scoped fragment.
func (h *Handler) handleDisplay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		fail(w, http.StatusMethodNotAllowed, "Only GET is accepted here.")
		return
	}

	tag := r.URL.Query().Get("tag")
	if tag == "" {
		fail(w, http.StatusBadRequest, "The tag query parameter must name a content tag.")
		return
	}

	id, ok, err := h.Transform.Content.FindItemByMeta(makepost.MetaTag, []byte(tag))
	if err != nil {
		fail(w, http.StatusInternalServerError, "The item could not be looked up.", err.Error())
		return
	}
	if !ok {
		fail(w, http.StatusNotFound, fmt.Sprintf("No item carries tag %s.", tag))
		return
	}

	source, ok, err := h.Transform.Meta.GetMeta(id, makepost.MetaSource)
	if err != nil || !ok {
		fail(w, http.StatusNotFound, "The item has no stored message source.")
		return
	}

	if r.URL.Query().Get("format") == "fragment" {
		fragment, err := h.Sanitizer.Fragment(source, tag)
		if err != nil {
			fail(w, http.StatusInternalServerError, "The fragment could not be rendered.", err.Error())
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(fragment)
		return
	}

	fileURL, err := h.Sanitizer.DocumentFile(source, contenttag.FileName(tag))
	if err != nil {
		fail(w, http.StatusInternalServerError, "The document could not be sanitized.", err.Error())
		return
	}
	ok200(w, "OK "+fileURL)
}

// fetchDocument pulls a remote document, caching the body so repeated
// renders of the same source don't refetch it.
func (h *Handler) fetchDocument(src string) ([]byte, error) {
	key := fetchKey(src)
	if h.Transients != nil {
		if body, ok := h.Transients.Get(key); ok {
			return body, nil
		}
	}

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Get(src)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("fetch %s: status %d", src, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUploadSize))
	if err != nil {
		return nil, err
	}

	if h.Transients != nil {
		lifetime := sanitize.CacheLifetime
		if h.Sanitizer != nil && h.Sanitizer.Debug {
			lifetime = sanitize.DebugCacheLifetime
		}
		if err := h.Transients.Set(key, body, lifetime); err != nil {
			log.WithError(err).WithField("src", src).Warn("webhook_cache_failed")
		}
	}
	return body, nil
}

func fetchKey(src string) string {
	key := fetchKeyPrefix + src
	if len(key) > 160 {
		key = key[:160]
	}
	return key
}

// validity folds a verdict into the log's tri-state Valid field: any
// rejection reason marks the attempt invalid.
func validity(v *validate.Verdict) int {
	if v.OK() {
		return validate.Passed
	}
	return validate.Failed
}

func ok200(w http.ResponseWriter, line string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = fmt.Fprintln(w, line)
}

func fail(w http.ResponseWriter, status int, lines ...string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = fmt.Fprintln(w, strings.Join(lines, "\n"))
}
